package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/daniacca/ecogrid/internal/ecology"
)

type options struct {
	configFile  string
	steps       int
	seed        int64
	width       int
	height      int
	id          string
	reportEvery int
	snapshotIn  string
	snapshotOut string
	logLevel    string
	runs        int
	parallel    int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ecogrid-sim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configFile, "config", "", "path to a YAML or JSON simulation config (optional)")
	fs.IntVar(&opts.steps, "steps", 500, "maximum number of steps to run")
	fs.Int64Var(&opts.seed, "seed", 0, "random seed; overrides the config file when non-zero")
	fs.IntVar(&opts.width, "width", 0, "field width; overrides the config file when positive")
	fs.IntVar(&opts.height, "height", 0, "field height; overrides the config file when positive")
	fs.StringVar(&opts.id, "id", "simulation", "simulation ID")
	fs.IntVar(&opts.reportEvery, "report-every", 0, "print population counts every N steps (0 disables)")
	fs.StringVar(&opts.snapshotIn, "snapshot-in", "", "snapshot file to resume from (optional)")
	fs.StringVar(&opts.snapshotOut, "snapshot-out", "", "write a snapshot here when finished (optional)")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	fs.IntVar(&opts.runs, "runs", 1, "number of independent runs with consecutive seeds")
	fs.IntVar(&opts.parallel, "parallel", 0, "maximum concurrent runs when -runs > 1 (0 means unlimited)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.steps < 0 {
		fmt.Fprintf(stderr, "error: -steps must not be negative\n")
		return 2
	}

	if opts.runs < 1 || opts.parallel < 0 {
		fmt.Fprintf(stderr, "error: -runs must be at least 1 and -parallel must not be negative\n")
		return 2
	}
	if opts.runs > 1 && (opts.snapshotIn != "" || opts.snapshotOut != "" || opts.reportEvery > 0) {
		fmt.Fprintf(stderr, "error: -snapshot-in, -snapshot-out and -report-every only apply to a single run\n")
		return 2
	}

	logger := newLogger(stderr, opts.logLevel)
	if opts.runs > 1 {
		if err := simulateBatch(context.Background(), opts, stdout, logger); err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}
	if err := simulate(opts, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newLogger(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.WarnLevel
	}
	return log.NewWithOptions(w, log.Options{Level: lvl, Prefix: "ecogrid-sim"})
}

func buildConfig(opts options) (ecology.Config, error) {
	cfg := ecology.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := ecology.LoadConfigFile(opts.configFile)
		if err != nil {
			return ecology.Config{}, err
		}
		cfg = loaded
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
	if opts.width > 0 {
		cfg.Width = opts.width
	}
	if opts.height > 0 {
		cfg.Height = opts.height
	}
	return cfg, nil
}

func simulate(opts options, out io.Writer, logger *log.Logger) error {
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	sim, err := ecology.NewSimulation(cfg, ecology.WithID(ecology.SimulationID(opts.id)), ecology.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating simulation: %w", err)
	}

	if opts.snapshotIn != "" {
		snapshot, err := ecology.ReadSnapshotFile(opts.snapshotIn)
		if err != nil {
			return err
		}
		if err := sim.Load(snapshot); err != nil {
			return err
		}
		logger.Info("resumed from snapshot", "path", opts.snapshotIn, "step", sim.StepCount())
	}

	start := sim.StepCount()
	for i, n := 0, opts.steps; i < n; i++ {
		if sim.RunFor(1) == 0 {
			break
		}
		if opts.reportEvery > 0 && sim.StepCount()%opts.reportEvery == 0 {
			printReport(out, sim.StepCount(), sim.Stats())
		}
	}

	if opts.snapshotOut != "" {
		if err := ecology.WriteSnapshotFile(opts.snapshotOut, sim.Save()); err != nil {
			return err
		}
		logger.Info("snapshot written", "path", opts.snapshotOut)
	}

	printSummary(out, sim, sim.StepCount()-start)
	return nil
}

func printReport(out io.Writer, step int, stats ecology.PopulationStats) {
	fmt.Fprintf(out, "step %d:", step)
	for _, k := range ecology.Kinds {
		fmt.Fprintf(out, " %s=%d", k, stats.Count(k))
	}
	fmt.Fprintln(out)
}

func printSummary(out io.Writer, sim *ecology.Simulation, taken int) {
	cfg := sim.Config()
	stats := sim.Stats()

	fmt.Fprintf(out, "Simulation finished (id=%s, size=%dx%d, seed=%d, steps=%d, step=%d)\n",
		sim.ID(), cfg.Width, cfg.Height, cfg.Seed, taken, sim.StepCount())
	if sim.IsViable() {
		fmt.Fprintln(out, "Population viable")
	} else {
		fmt.Fprintln(out, "Population no longer viable")
	}
	fmt.Fprintln(out, "Species counts:")
	for _, k := range ecology.Kinds {
		fmt.Fprintf(out, "  %s: %d\n", k, stats.Count(k))
	}
}
