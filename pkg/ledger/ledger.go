package ledger

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/CTAG07/Stitch/pkg/assembly"
)

// ErrNoRuns is returned by Last when nothing has been recorded for a variant.
var ErrNoRuns = errors.New("no recorded runs")

// Fragment is one manifest entry as it was applied in a recorded run.
type Fragment struct {
	Token  string
	Source string
	Digest string
	Bytes  int
	Count  int
}

// Run is a single successful build.
type Run struct {
	ID        int64
	Variant   string
	Template  string
	Output    string
	Digest    string // hex sha256 of the written output
	Bytes     int
	BuiltAt   time.Time
	Fragments []Fragment
}

// NewRun describes a finished build of plan p.
func NewRun(p assembly.Plan, res *assembly.Result, builtAt time.Time) Run {
	out := res.Document.Bytes()
	sum := sha256.Sum256(out)
	run := Run{
		Variant:   p.Name,
		Template:  p.Template,
		Output:    p.Output,
		Digest:    hex.EncodeToString(sum[:]),
		Bytes:     len(out),
		BuiltAt:   builtAt,
		Fragments: make([]Fragment, 0, len(res.Substitutions)),
	}
	for _, s := range res.Substitutions {
		run.Fragments = append(run.Fragments, Fragment{
			Token:  s.Entry.Token,
			Source: s.Entry.Source,
			Digest: s.Digest,
			Bytes:  s.Bytes,
			Count:  s.Count,
		})
	}
	return run
}

// SetupSchema creates the ledger tables. It is idempotent.
func SetupSchema(db *sql.DB) error {

	const (
		schemaRuns = `
CREATE TABLE IF NOT EXISTS build_runs (
    run_id INTEGER PRIMARY KEY,
    variant TEXT NOT NULL,
    template_path TEXT NOT NULL,
    output_path TEXT NOT NULL,
    output_digest TEXT NOT NULL,
    output_bytes INTEGER NOT NULL,
    built_at INTEGER NOT NULL
);
`
		schemaFragments = `
CREATE TABLE IF NOT EXISTS build_fragments (
    run_id INTEGER NOT NULL,
    position INTEGER NOT NULL,
    token TEXT NOT NULL,
    source TEXT NOT NULL,
    digest TEXT NOT NULL,
    bytes INTEGER NOT NULL,
    occurrences INTEGER NOT NULL,
    PRIMARY KEY (run_id, position)
);
`
		indexVariant = `CREATE INDEX IF NOT EXISTS idx_build_runs_variant ON build_runs (variant, built_at);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaRuns); err != nil {
		return fmt.Errorf("could not create runs schema: %w", err)
	}
	if _, err = tx.Exec(schemaFragments); err != nil {
		return fmt.Errorf("could not create fragments schema: %w", err)
	}
	if _, err = tx.Exec(indexVariant); err != nil {
		return fmt.Errorf("could not create index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Ledger records build runs in a SQL database set up with SetupSchema.
type Ledger struct {
	db            *sql.DB
	stmtRecent    *sql.Stmt
	stmtLast      *sql.Stmt
	stmtFragments *sql.Stmt
}

// New prepares the ledger's statements against db.
func New(db *sql.DB) (*Ledger, error) {
	l := &Ledger{db: db}
	var err error

	const runColumns = "run_id, variant, template_path, output_path, output_digest, output_bytes, built_at"

	if l.stmtRecent, err = db.Prepare("SELECT " + runColumns + " FROM build_runs ORDER BY built_at DESC, run_id DESC LIMIT ?"); err != nil {
		return nil, fmt.Errorf("prepare recent: %w", err)
	}
	if l.stmtLast, err = db.Prepare("SELECT " + runColumns + " FROM build_runs WHERE variant = ? ORDER BY built_at DESC, run_id DESC LIMIT 1"); err != nil {
		l.Close()
		return nil, fmt.Errorf("prepare last: %w", err)
	}
	if l.stmtFragments, err = db.Prepare("SELECT token, source, digest, bytes, occurrences FROM build_fragments WHERE run_id = ? ORDER BY position"); err != nil {
		l.Close()
		return nil, fmt.Errorf("prepare fragments: %w", err)
	}
	return l, nil
}

// Close releases the prepared statements. The database is left open.
func (l *Ledger) Close() {
	for _, stmt := range []*sql.Stmt{l.stmtRecent, l.stmtLast, l.stmtFragments} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// Record stores run and its fragments in one transaction and sets run.ID.
func (l *Ledger) Record(ctx context.Context, run *Run) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	resp, err := tx.ExecContext(ctx,
		"INSERT INTO build_runs (variant, template_path, output_path, output_digest, output_bytes, built_at) VALUES (?, ?, ?, ?, ?, ?)",
		run.Variant, run.Template, run.Output, run.Digest, run.Bytes, run.BuiltAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := resp.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run id: %w", err)
	}

	for i, f := range run.Fragments {
		if _, err = tx.ExecContext(ctx,
			"INSERT INTO build_fragments (run_id, position, token, source, digest, bytes, occurrences) VALUES (?, ?, ?, ?, ?, ?, ?)",
			id, i, f.Token, f.Source, f.Digest, f.Bytes, f.Count); err != nil {
			return fmt.Errorf("failed to insert fragment %d of run %d: %w", i, id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	run.ID = id
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var builtAt int64
	if err := s.Scan(&run.ID, &run.Variant, &run.Template, &run.Output, &run.Digest, &run.Bytes, &builtAt); err != nil {
		return Run{}, err
	}
	run.BuiltAt = time.Unix(0, builtAt)
	return run, nil
}

// Recent returns up to limit runs, newest first, without their fragments.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.stmtRecent.QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Last returns the newest run of variant, fragments included.
func (l *Ledger) Last(ctx context.Context, variant string) (Run, error) {
	run, err := scanRun(l.stmtLast.QueryRowContext(ctx, variant))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, fmt.Errorf("%w for variant %q", ErrNoRuns, variant)
		}
		return Run{}, err
	}
	if run.Fragments, err = l.Fragments(ctx, run.ID); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Fragments returns the fragments of a run in manifest order.
func (l *Ledger) Fragments(ctx context.Context, runID int64) ([]Fragment, error) {
	rows, err := l.stmtFragments.QueryContext(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	frags := make([]Fragment, 0)
	for rows.Next() {
		var f Fragment
		if err = rows.Scan(&f.Token, &f.Source, &f.Digest, &f.Bytes, &f.Count); err != nil {
			return nil, err
		}
		frags = append(frags, f)
	}
	return frags, rows.Err()
}
