package assembly

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
)

// Substitution records what a single manifest entry did during assembly.
type Substitution struct {
	Entry  Entry
	Count  int    // occurrences replaced
	Bytes  int    // fragment size
	Digest string // hex sha256 of the fragment text
}

// Result is the outcome of one assembly.
type Result struct {
	Document      Document
	Substitutions []Substitution
	Warnings      []*UnusedTokenWarning
}

// Assembler applies a manifest to a template document.
type Assembler struct {
	Store  FragmentStore
	Strict bool // unused tokens are fatal
	Logger *slog.Logger
}

// NewAssembler returns an assembler reading fragments from store. A nil
// logger discards output.
func NewAssembler(store FragmentStore, strict bool, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Assembler{Store: store, Strict: strict, Logger: logger}
}

// Assemble applies every entry of m to tmpl in manifest order. It stops at
// the first fragment that cannot be loaded and returns that error unchanged.
// tmpl is not modified.
func (a *Assembler) Assemble(ctx context.Context, tmpl Document, m *Manifest) (*Result, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	doc := tmpl
	res := &Result{Substitutions: make([]Substitution, 0, m.Len())}

	for _, e := range m.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := a.Store.Load(e.Source)
		if err != nil {
			return nil, err
		}

		var n int
		doc, n = doc.Replace(e.Token, text)

		sum := sha256.Sum256([]byte(text))
		res.Substitutions = append(res.Substitutions, Substitution{
			Entry:  e,
			Count:  n,
			Bytes:  len(text),
			Digest: hex.EncodeToString(sum[:]),
		})

		if n == 0 {
			w := &UnusedTokenWarning{Token: e.Token, Source: e.Source}
			if a.Strict {
				return nil, w
			}
			logger.WarnContext(ctx, "Token not found in template", "token", e.Token, "source", e.Source)
			res.Warnings = append(res.Warnings, w)
			continue
		}
		logger.DebugContext(ctx, "Substituted fragment", "token", e.Token, "source", e.Source, "count", n, "bytes", len(text))
	}

	res.Document = doc
	return res, nil
}
