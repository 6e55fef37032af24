package assembly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Plan describes one assembly: where the template and fragments live, which
// entries to apply and where the result goes.
type Plan struct {
	Name        string
	Template    string
	Output      string
	FragmentDir string
	Manifest    *Manifest
	Strict      bool
}

func (p Plan) assembler(logger *slog.Logger) *Assembler {
	return NewAssembler(DirStore{Base: p.FragmentDir}, p.Strict, logger)
}

// Assemble loads the template and applies the manifest in memory. Nothing is
// written.
func (p Plan) Assemble(ctx context.Context, logger *slog.Logger) (*Result, error) {
	if p.Manifest == nil {
		return nil, fmt.Errorf("plan %q has no manifest", p.Name)
	}
	tmpl, err := LoadTemplate(p.Template)
	if err != nil {
		return nil, err
	}
	return p.assembler(logger).Assemble(ctx, tmpl, p.Manifest)
}

// Build loads the template, applies the manifest and writes the output. The
// output file is only touched once every fragment has been applied.
// Running two builds against the same output path at once is not guarded.
func Build(ctx context.Context, p Plan, logger *slog.Logger) (*Result, error) {
	res, err := p.Assemble(ctx, logger)
	if err != nil {
		return nil, err
	}
	if err = WriteOutput(p.Output, res.Document); err != nil {
		return nil, err
	}
	return res, nil
}

// Check assembles p in memory and compares the result with the current
// output file. It returns an error wrapping ErrStale when they differ or the
// output does not exist yet.
func Check(ctx context.Context, p Plan, logger *slog.Logger) (*Result, error) {
	res, err := p.Assemble(ctx, logger)
	if err != nil {
		return nil, err
	}
	current, err := os.ReadFile(p.Output)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return res, fmt.Errorf("%s: %w: file does not exist", p.Output, ErrStale)
		}
		return nil, newFileError("read output", p.Output, err)
	}
	if !bytes.Equal(current, res.Document.Bytes()) {
		return res, fmt.Errorf("%s: %w", p.Output, ErrStale)
	}
	return res, nil
}
