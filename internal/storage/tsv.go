package storage

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// TSVWriter streams finished chromosomes as tab-separated triplets: chrom,
// bin1 start, bin2 start, count. Output is gzip-compressed when the path ends
// in ".gz" and plain text otherwise. Skipped chromosomes emit a header
// comment only.
type TSVWriter struct {
	mu   sync.Mutex
	file *os.File
	gz   *gzip.Writer
	buff *bufio.Writer
}

func NewTSVWriter(path string) (*TSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &TSVWriter{file: f}
	if strings.HasSuffix(path, ".gz") {
		w.gz = gzip.NewWriter(f)
		w.buff = bufio.NewWriter(w.gz)
	} else {
		w.buff = bufio.NewWriter(f)
	}
	return w, nil
}

func (w *TSVWriter) WriteChromosome(_ context.Context, res ChromosomeResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var totContacts uint64
	if res.Matrix != nil {
		totContacts = res.Matrix.TotContacts()
	}
	if _, err := fmt.Fprintf(w.buff, "# %s\t%d\t%d\t%d\t%d\n",
		res.Name, res.Start, res.End, res.Size, totContacts); err != nil {
		return err
	}
	if res.Matrix == nil {
		return nil
	}

	var writeErr error
	res.Matrix.ForEachNonZero(func(row, col int, n uint32) {
		if writeErr != nil {
			return
		}
		bin1 := res.Start + uint64(row)*res.BinSize
		bin2 := res.Start + uint64(col)*res.BinSize
		_, writeErr = fmt.Fprintf(w.buff, "%s\t%d\t%d\t%d\n", res.Name, bin1, bin2, n)
	})
	return writeErr
}

func (w *TSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.buff.Flush(); err != nil {
		return err
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			return err
		}
	}
	err := w.file.Close()
	w.file = nil
	return err
}
