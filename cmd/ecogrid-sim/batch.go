package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/daniacca/ecogrid/internal/ecology"
	"golang.org/x/sync/errgroup"
)

// runResult is the outcome of one replicate in a batch.
type runResult struct {
	index  int
	seed   int64
	steps  int
	viable bool
	counts map[ecology.Kind]int
}

// simulateBatch runs opts.runs independent replicates with consecutive seeds,
// at most opts.parallel at a time, and prints one line per run in seed order
// followed by an extinction summary.
func simulateBatch(ctx context.Context, opts options, out io.Writer, logger *log.Logger) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}
	if err := ecology.ValidateConfig(cfg); err != nil {
		return err
	}
	base := cfg.Seed
	if base == 0 {
		base = time.Now().UnixNano()
		logger.Info("no seed configured", "base_seed", base)
	}

	results := make([]runResult, opts.runs)
	g, ctx := errgroup.WithContext(ctx)
	if opts.parallel > 0 {
		g.SetLimit(opts.parallel)
	}

	for i := 0; i < opts.runs; i++ {
		i := i
		g.Go(func() error {
			runCfg := cfg
			runCfg.Seed = base + int64(i)
			id := ecology.SimulationID(fmt.Sprintf("%s-%d", opts.id, i+1))
			sim, err := ecology.NewSimulation(runCfg, ecology.WithID(id), ecology.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("run %d: %w", i+1, err)
			}

			taken := 0
			for taken < opts.steps {
				if err := ctx.Err(); err != nil {
					return err
				}
				if sim.RunFor(1) == 0 {
					break
				}
				taken++
			}

			stats := sim.Stats()
			counts := make(map[ecology.Kind]int, len(ecology.Kinds))
			for _, k := range ecology.Kinds {
				counts[k] = stats.Count(k)
			}
			results[i] = runResult{index: i + 1, seed: runCfg.Seed, steps: taken, viable: sim.IsViable(), counts: counts}
			logger.Debug("run finished", "run", i+1, "seed", runCfg.Seed, "steps", taken)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	printBatch(out, cfg, results)
	return nil
}

func printBatch(out io.Writer, cfg ecology.Config, results []runResult) {
	extinct := 0
	for _, r := range results {
		state := "viable"
		if !r.viable {
			state = "collapsed"
			extinct++
		}
		fmt.Fprintf(out, "run %d (seed=%d): steps=%d %s", r.index, r.seed, r.steps, state)
		for _, k := range ecology.Kinds {
			fmt.Fprintf(out, " %s=%d", k, r.counts[k])
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Batch finished (runs=%d, size=%dx%d): %d viable, %d collapsed\n",
		len(results), cfg.Width, cfg.Height, len(results)-extinct, extinct)
}
