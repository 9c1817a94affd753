package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wesleyorama2/loadsim/internal/loader"
	"github.com/wesleyorama2/loadsim/internal/metrics"
	"github.com/wesleyorama2/loadsim/internal/output"
)

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Repeat loads and report duration percentiles",
		Long: `Repeat loads with a fixed configuration and summarize load and unit
durations with HDR histograms.

Examples:
  loadsim bench --count 100
  loadsim bench --count 500 --concurrency 16 --rate 100 --set cpu_stress.run=true`,
		Args: cobra.NoArgs,
		RunE: runBench,
	}

	addConfigFlags(cmd)
	cmd.Flags().IntP("count", "n", 10, "Number of loads to run")
	cmd.Flags().Int("concurrency", 1, "Maximum loads in flight")
	cmd.Flags().Float64("rate", 0, "Loads started per second (0 = unlimited)")
	cmd.Flags().Bool("json", false, "Output the summary as JSON")
	cmd.Flags().String("temp-dir", "", "Directory for the disk unit's temporary files (default: working directory)")

	return cmd
}

// benchOptions holds the parsed bench flags.
type benchOptions struct {
	Count       int
	Concurrency int
	Rate        float64
}

func (o benchOptions) validate() error {
	if o.Count <= 0 {
		return fmt.Errorf("--count must be positive, got %d", o.Count)
	}
	if o.Concurrency <= 0 {
		return fmt.Errorf("--concurrency must be positive, got %d", o.Concurrency)
	}
	if o.Rate < 0 {
		return fmt.Errorf("--rate must not be negative, got %g", o.Rate)
	}
	return nil
}

// runBench runs the bench and prints the summary.
func runBench(cmd *cobra.Command, args []string) error {
	opts := benchOptions{}
	opts.Count, _ = cmd.Flags().GetInt("count")
	opts.Concurrency, _ = cmd.Flags().GetInt("concurrency")
	opts.Rate, _ = cmd.Flags().GetFloat64("rate")
	tempDir, _ := cmd.Flags().GetString("temp-dir")

	if err := opts.validate(); err != nil {
		return err
	}

	log, err := newLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	engine := metrics.NewEngine()
	l := loader.New(cfg, loader.WithLogger(log), loader.WithRecorder(engine), loader.WithTempDir(tempDir))

	log.WithField("count", opts.Count).
		WithField("concurrency", opts.Concurrency).
		WithField("rate", opts.Rate).
		Info("Bench start")

	issued, wall, err := bench(cmd.Context(), l, opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	snapshot := engine.GetSnapshot()
	summary := &output.BenchSummary{
		Count:       issued,
		Concurrency: opts.Concurrency,
		Rate:        opts.Rate,
		Wall:        wall,
		Snapshot:    snapshot,
	}
	if err := newPrinter(cmd, false, false).PrintBench(summary); err != nil {
		return err
	}

	if errors.Is(err, context.Canceled) {
		return reportedError{err}
	}
	if snapshot.FailedLoads > 0 {
		return fmt.Errorf("%d of %d loads failed", snapshot.FailedLoads, snapshot.TotalLoads)
	}
	return nil
}

// bench starts opts.Count loads, at most opts.Concurrency at a time, paced
// by opts.Rate. Load failures are recorded, not returned. It returns the
// number of loads started and the wall time.
func bench(ctx context.Context, l *loader.Loader, opts benchOptions) (int, time.Duration, error) {
	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)

	start := time.Now()
	issued := 0
	var stopErr error
	for issued < opts.Count {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				stopErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		g.Go(func() error {
			// Failures reach the recorder
			_, _ = l.Load(ctx)
			return nil
		})
		issued++
	}
	_ = g.Wait()

	return issued, time.Since(start), stopErr
}
