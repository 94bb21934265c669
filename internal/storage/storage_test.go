package storage

import (
	"bufio"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dakristia/modleFork/internal/cmatrix"
)

func testResult(t *testing.T) ChromosomeResult {
	t.Helper()
	m := cmatrix.New[cmatrix.Count](5, 20)
	if err := m.Set(2, 4, 7); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(10, 11, 3); err != nil {
		t.Fatal(err)
	}
	return ChromosomeResult{
		Name:    "chr1",
		Start:   0,
		End:     20_000,
		Size:    20_000,
		BinSize: 1_000,
		Matrix:  m,
	}
}

func TestSQLiteWriterRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "contacts.sqlite")
	w := NewSQLiteWriter(path)
	if err := w.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := w.WriteChromosome(ctx, testResult(t)); err != nil {
		t.Fatalf("write: %v", err)
	}
	empty := ChromosomeResult{Name: "chrKO", Start: 0, End: 1_000, Size: 1_000, BinSize: 1_000}
	if err := w.WriteChromosome(ctx, empty); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var nchroms, npixels int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chromosomes`).Scan(&nchroms); err != nil {
		t.Fatal(err)
	}
	if nchroms != 2 {
		t.Fatalf("chromosome rows = %d, want 2", nchroms)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM pixels WHERE chrom = 'chr1'`).Scan(&npixels); err != nil {
		t.Fatal(err)
	}
	if npixels != 2 {
		t.Fatalf("pixel rows = %d, want 2", npixels)
	}

	var tot uint64
	if err := db.QueryRow(`SELECT tot_contacts FROM chromosomes WHERE name = 'chr1'`).Scan(&tot); err != nil {
		t.Fatal(err)
	}
	if tot != 10 {
		t.Fatalf("tot_contacts = %d, want 10", tot)
	}

	var count uint64
	if err := db.QueryRow(`SELECT count FROM pixels WHERE chrom = 'chr1' AND bin1 = 2 AND bin2 = 4`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 7 {
		t.Fatalf("pixel (2,4) = %d, want 7", count)
	}
}

func TestTSVWriterOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.tsv")
	w, err := NewTSVWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteChromosome(context.Background(), testResult(t)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 pixels", len(lines))
	}
	if !strings.HasPrefix(lines[0], "# chr1\t") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if lines[1] != "chr1\t2000\t4000\t7" {
		t.Fatalf("unexpected pixel line: %q", lines[1])
	}
}

func TestMemoryWriterKeepsArrivalOrder(t *testing.T) {
	w := NewMemoryWriter()
	ctx := context.Background()
	if err := w.WriteChromosome(ctx, ChromosomeResult{Name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteChromosome(ctx, ChromosomeResult{Name: "b"}); err != nil {
		t.Fatal(err)
	}
	results := w.Results()
	if len(results) != 2 || results[0].Name != "a" || results[1].Name != "b" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if err := w.Close(); err != nil || !w.Closed() {
		t.Fatal("close failed")
	}
}

func TestFactory(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, "discard", ""); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if _, err := New(ctx, "memory", ""); err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, err := New(ctx, "bogus", ""); err == nil {
		t.Fatal("unknown backend accepted")
	}
	w, err := New(ctx, "sqlite", filepath.Join(t.TempDir(), "x.sqlite"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	_ = w.Close()
}
