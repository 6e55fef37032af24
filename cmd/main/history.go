package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CTAG07/Stitch/pkg/ledger"
)

// history is a ledger together with the database it owns.
type history struct {
	*ledger.Ledger
	db *sql.DB
}

func openHistory(path string) (*history, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}
	db, err := initDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err = ledger.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup history schema: %w", err)
	}
	l, err := ledger.New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &history{Ledger: l, db: db}, nil
}

func (h *history) Close() {
	h.Ledger.Close()
	_ = h.db.Close()
}
