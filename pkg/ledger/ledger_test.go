package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/CTAG07/Stitch/pkg/assembly"
	_ "modernc.org/sqlite"
)

// setupTestLedger opens a fresh database file and prepares a Ledger on it.
func setupTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	// Running it twice must be harmless.
	if err = SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema() error = %v", err)
	}

	l, err := New(db)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func testRun(t *testing.T, variant string, builtAt time.Time) Run {
	t.Helper()
	m, err := assembly.NewManifest([]assembly.Entry{
		{Token: "{{A}}", Source: "a.lua"},
		{Token: "{{B}}", Source: "b.lua"},
	})
	if err != nil {
		t.Fatalf("NewManifest() error = %v", err)
	}
	store := assembly.MapStore{"a.lua": "alpha", "b.lua": "beta"}
	res, err := assembly.NewAssembler(store, false, nil).Assemble(context.Background(), assembly.NewDocument("{{A}}/{{B}}/{{A}}"), m)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	p := assembly.Plan{Name: variant, Template: "sdk.tmp", Output: "release/sdk.rbxmx", Manifest: m}
	return NewRun(p, res, builtAt)
}

func TestNewRun(t *testing.T) {
	run := testRun(t, "release", time.Unix(100, 0))
	if run.Bytes != len("alpha/beta/alpha") {
		t.Errorf("Bytes = %d, want %d", run.Bytes, len("alpha/beta/alpha"))
	}
	if len(run.Digest) != 64 {
		t.Errorf("Digest = %q, want a hex sha256", run.Digest)
	}
	if len(run.Fragments) != 2 {
		t.Fatalf("got %d fragments, want 2", len(run.Fragments))
	}
	if run.Fragments[0].Count != 2 || run.Fragments[1].Count != 1 {
		t.Errorf("unexpected occurrence counts: %+v", run.Fragments)
	}
}

func TestRecordAndLast(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()

	older := testRun(t, "release", time.Unix(1000, 0))
	newer := testRun(t, "release", time.Unix(2000, 0))
	other := testRun(t, "studio", time.Unix(3000, 0))
	for _, run := range []*Run{&older, &newer, &other} {
		if err := l.Record(ctx, run); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if run.ID == 0 {
			t.Fatal("Record() did not set the run ID")
		}
	}

	last, err := l.Last(ctx, "release")
	if err != nil {
		t.Fatalf("Last() error = %v", err)
	}
	if last.ID != newer.ID {
		t.Errorf("Last() returned run %d, want %d", last.ID, newer.ID)
	}
	if !last.BuiltAt.Equal(newer.BuiltAt) {
		t.Errorf("BuiltAt = %v, want %v", last.BuiltAt, newer.BuiltAt)
	}
	if len(last.Fragments) != 2 || last.Fragments[0].Token != "{{A}}" || last.Fragments[1].Source != "b.lua" {
		t.Errorf("fragments not restored in manifest order: %+v", last.Fragments)
	}
	if last.Fragments[0].Digest != newer.Fragments[0].Digest {
		t.Errorf("fragment digest mismatch")
	}
}

func TestLastWithoutRuns(t *testing.T) {
	l := setupTestLedger(t)
	_, err := l.Last(context.Background(), "release")
	if !errors.Is(err, ErrNoRuns) {
		t.Fatalf("Last() error = %v, want ErrNoRuns", err)
	}
}

func TestRecent(t *testing.T) {
	l := setupTestLedger(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		run := testRun(t, "release", time.Unix(int64(i)*10, 0))
		if err := l.Record(ctx, &run); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	runs, err := l.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("Recent(3) returned %d runs", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i].BuiltAt.After(runs[i-1].BuiltAt) {
			t.Errorf("runs not ordered newest first: %v before %v", runs[i-1].BuiltAt, runs[i].BuiltAt)
		}
	}
	if runs[0].BuiltAt.Unix() != 50 {
		t.Errorf("newest run built at %v, want unix 50", runs[0].BuiltAt)
	}
}
