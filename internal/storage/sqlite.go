package storage

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteWriter persists finished chromosomes as sparse upper-triangle
// triplets, one row per non-zero pixel, keyed by a per-run identifier.
type SQLiteWriter struct {
	path  string
	runID string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteWriter(path string) *SQLiteWriter {
	return &SQLiteWriter{path: path, runID: uuid.NewString()}
}

func (w *SQLiteWriter) RunID() string { return w.runID }

func (w *SQLiteWriter) Init(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.path == "" {
		return errors.New("sqlite path is required")
	}
	if w.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", w.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	w.db = db
	return nil
}

func (w *SQLiteWriter) WriteChromosome(ctx context.Context, res ChromosomeResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return errors.New("writer is not initialized")
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var totContacts uint64
	var nrows, ncols int
	if res.Matrix != nil {
		totContacts = res.Matrix.TotContacts()
		nrows = res.Matrix.Nrows()
		ncols = res.Matrix.Ncols()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chromosomes (run_id, name, start, end, size, bin_size, nrows, ncols, tot_contacts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, name) DO UPDATE SET
			start = excluded.start,
			end = excluded.end,
			size = excluded.size,
			bin_size = excluded.bin_size,
			nrows = excluded.nrows,
			ncols = excluded.ncols,
			tot_contacts = excluded.tot_contacts
	`, w.runID, res.Name, res.Start, res.End, res.Size, res.BinSize, nrows, ncols, totContacts); err != nil {
		return err
	}

	if res.Matrix != nil {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pixels (run_id, chrom, bin1, bin2, count)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		var insertErr error
		res.Matrix.ForEachNonZero(func(row, col int, n uint32) {
			if insertErr != nil {
				return
			}
			_, insertErr = stmt.ExecContext(ctx, w.runID, res.Name, row, col, n)
		})
		if insertErr != nil {
			return insertErr
		}
	}
	return tx.Commit()
}

func (w *SQLiteWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.db == nil {
		return nil
	}
	err := w.db.Close()
	w.db = nil
	return err
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chromosomes (
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			start INTEGER NOT NULL,
			end INTEGER NOT NULL,
			size INTEGER NOT NULL,
			bin_size INTEGER NOT NULL,
			nrows INTEGER NOT NULL,
			ncols INTEGER NOT NULL,
			tot_contacts INTEGER NOT NULL,
			PRIMARY KEY (run_id, name)
		);
		CREATE TABLE IF NOT EXISTS pixels (
			run_id TEXT NOT NULL,
			chrom TEXT NOT NULL,
			bin1 INTEGER NOT NULL,
			bin2 INTEGER NOT NULL,
			count INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS pixels_by_chrom ON pixels (run_id, chrom);
	`)
	return err
}
