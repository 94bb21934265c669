// Package progress renders simulation throughput and ETA on stderr.
package progress

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Reporter tracks per-cell completion. It renders an interactive bar when
// stderr is a TTY and falls back to plain log lines otherwise.
type Reporter struct {
	bars *mpb.Progress
	bar  *mpb.Bar
	log  *logrus.Logger

	totalCells int64
	doneCells  atomic.Int64

	extrusionEvents *atomic.Uint64
	started         time.Time
}

// New creates a reporter over totalCells simulation tasks. extrusionEvents
// is the shared counter workers bump as they extrude.
func New(log *logrus.Logger, totalCells int64, extrusionEvents *atomic.Uint64) *Reporter {
	r := &Reporter{
		log:             log,
		totalCells:      totalCells,
		extrusionEvents: extrusionEvents,
		started:         time.Now(),
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		r.bars = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		r.bar = r.bars.AddBar(totalCells,
			mpb.PrependDecorators(
				decor.Name("simulating cells: "),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: "),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}
	return r
}

// CellDone records one completed cell and the wall time it took.
func (r *Reporter) CellDone(elapsed time.Duration) {
	r.doneCells.Add(1)
	if r.bar != nil {
		r.bar.EwmaIncrBy(1, elapsed)
	}
}

// ChromosomeWritten logs a finished chromosome with its contact count.
func (r *Reporter) ChromosomeWritten(name string, totContacts uint64) {
	r.log.WithFields(logrus.Fields{
		"chrom":    name,
		"contacts": humanize.Comma(int64(totContacts)),
	}).Info("contacts written")
}

// Throughput returns extrusion events per second since the run started.
func (r *Reporter) Throughput() float64 {
	elapsed := time.Since(r.started).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(r.extrusionEvents.Load()) / elapsed
}

// Done finalizes the bar and prints the closing summary.
func (r *Reporter) Done() {
	if r.bars != nil {
		r.bars.Wait()
	}
	r.log.WithFields(logrus.Fields{
		"cells":          r.doneCells.Load(),
		"extrusion_evts": humanize.Comma(int64(r.extrusionEvents.Load())),
		"events_per_sec": humanize.CommafWithDigits(r.Throughput(), 0),
		"elapsed":        time.Since(r.started).Round(time.Millisecond).String(),
	}).Info("simulation complete")
}
