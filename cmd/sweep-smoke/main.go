// Command sweep-smoke runs a small end-to-end sweep against the configured
// result store: it registers a scalar dependent, a gridded array producer and
// a text log parameter, submits a short acquisition loop and prints the run
// summary. Storage and blob backends are selected via SWEEPCORE_* environment
// variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"sweepcore/internal/blob"
	"sweepcore/internal/core"
	"sweepcore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	points := flag.Int("points", 10, "number of sweep points")
	writePeriod := flag.Duration("write-period", 100*time.Millisecond, "flush interval")
	archive := flag.Bool("archive", false, "archive the run to the configured blob store on close")
	flag.Parse()

	if err := run(*points, *writePeriod, *archive); err != nil {
		fmt.Fprintf(os.Stderr, "sweep-smoke: %v\n", err)
		exitFunc(1)
	}
}

func run(points int, writePeriod time.Duration, archive bool) error {
	ctx := context.Background()

	m := core.NewMeasurement("smoke")
	if err := m.SetWritePeriod(writePeriod); err != nil {
		return err
	}
	if err := m.Register("gate", "Gate voltage", "V", domain.TypeNumeric, nil, nil); err != nil {
		return err
	}
	if err := m.Register("current", "Drain current", "A", domain.TypeNumeric, []string{"gate"}, nil); err != nil {
		return err
	}
	trace := core.Producer{
		Name:  "spectrum",
		Label: "Spectrum",
		Unit:  "dBm",
		Kind:  domain.KindArray,
		Axes: []core.Axis{
			{Name: "freq", Label: "Frequency", Unit: "Hz", Values: []float64{1e6, 2e6, 3e6, 4e6}},
		},
	}
	if err := m.RegisterProducer(trace, domain.TypeNumeric, nil, nil); err != nil {
		return err
	}
	if err := m.Register("note", "Operator note", "", domain.TypeText, nil, nil); err != nil {
		return err
	}

	store, err := core.OpenResultStore("smoke")
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	cfg := core.RunConfig{
		Logger:  core.NewStdLogger("sweep-smoke "),
		Metrics: core.NewExpvarMetricsRecorder("sweep_smoke_metrics"),
	}
	if archive {
		blobStore, err := blob.Open(ctx)
		if err != nil {
			return fmt.Errorf("open blob store: %w", err)
		}
		cfg.Archiver = core.NewRunArchiver(blobStore)
	}

	saver, err := m.Run(ctx, store, cfg)
	if err != nil {
		return err
	}

	for i := 0; i < points; i++ {
		gate := float64(i) * 0.1
		if err := saver.AddResult(ctx,
			core.Result{Name: "gate", Value: gate},
			core.Result{Name: "current", Value: gate * 1e-6},
		); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}
	if err := saver.AddResult(ctx, core.Result{Name: "spectrum", Value: []float64{-80, -75, -70, -65}}); err != nil {
		return fmt.Errorf("spectrum: %w", err)
	}
	if err := saver.AddResult(ctx, core.Result{Name: "note", Value: "smoke sweep complete"}); err != nil {
		return fmt.Errorf("note: %w", err)
	}

	if err := saver.Close(ctx); err != nil {
		return fmt.Errorf("close run: %w", err)
	}
	written, err := saver.PointsWritten(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %d completed: %d records written\n", saver.RunID(), written)
	return nil
}
