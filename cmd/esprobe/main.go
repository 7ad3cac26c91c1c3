// Package main provides the esprobe binary: a search-latency probe that
// repeatedly executes a fixed set of queries against a remote search
// endpoint and appends timing results to a durable CSV ledger.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/esprobe/esprobe/internal/config"
	"github.com/esprobe/esprobe/internal/executor"
	"github.com/esprobe/esprobe/internal/ledger"
	"github.com/esprobe/esprobe/internal/prober"
	"github.com/esprobe/esprobe/internal/query"
	"github.com/esprobe/esprobe/internal/stats"

	"github.com/esprobe/esprobe/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "esprobe",
		Short: "esprobe - search endpoint latency prober",
		Long: `esprobe periodically issues a fixed set of search queries against a
remote search endpoint, measures each query's latency, and appends
timestamped results to an append-only CSV ledger.

Run 'esprobe run' to start probing.
Run 'esprobe stats' to summarize a ledger offline.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(
		runCmd(),
		statsCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the probe loop",
		Long: `Start the probe loop: load the query definitions, seed running
averages from the existing ledger, then sweep the query list until the
configured test duration elapses (or indefinitely when unset).

Examples:
  esprobe run                          # Defaults + ESPROBE_* environment
  esprobe run -c esprobe.yaml          # Explicit config file
  esprobe run --queries custom.yaml    # Override the query definitions`,
		RunE:         runProbe,
		SilenceUsage: true,
	}

	cmd.Flags().String("endpoint", "", "search endpoint base URL (overrides config)")
	cmd.Flags().String("queries", "", "query-definition file (overrides config)")
	cmd.Flags().String("ledger", "", "result ledger file (overrides config)")
	cmd.Flags().Float64("interval", 0, "pacing interval in seconds, minimum 1 (overrides config)")
	cmd.Flags().Float64("duration", -1, "total test duration in seconds, 0 = indefinite (overrides config)")

	return cmd
}

func runProbe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		cfg.Endpoint = v
	}
	if v, _ := cmd.Flags().GetString("queries"); v != "" {
		cfg.QueriesFile = v
	}
	if v, _ := cmd.Flags().GetString("ledger"); v != "" {
		cfg.LedgerFile = v
	}
	if cmd.Flags().Changed("interval") {
		v, _ := cmd.Flags().GetFloat64("interval")
		if v < 1 {
			v = 1
		}
		cfg.IntervalSeconds = v
	}
	if cmd.Flags().Changed("duration") {
		if v, _ := cmd.Flags().GetFloat64("duration"); v >= 0 {
			cfg.TestDurationSeconds = v
		}
	}

	log, closeLog, err := buildLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	log.Info("starting esprobe",
		"version", version,
		"endpoint", cfg.Endpoint,
		"queries_file", cfg.QueriesFile,
		"ledger_file", cfg.LedgerFile,
	)

	specs, err := query.Load(cfg.QueriesFile)
	if err != nil {
		return fmt.Errorf("loading queries: %w", err)
	}
	log.Info("loaded query definitions", "count", len(specs))

	led, err := ledger.Open(cfg.LedgerFile)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer led.Close()

	history, err := ledger.ReadAll(cfg.LedgerFile)
	if err != nil {
		return fmt.Errorf("reading ledger history: %w", err)
	}
	agg := stats.New(history)
	if len(history) > 0 {
		log.Info("seeded running averages from ledger", "rows", len(history), "queries", len(agg.Names()))
	}

	var mirror prober.Mirror
	if cfg.RedisURL != "" {
		m, err := stats.NewRedisMirror(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting stats mirror: %w", err)
		}
		defer m.Close()
		mirror = m
		log.Info("stats mirror enabled", "redis", cfg.RedisURL)
	}

	exec := executor.New(executor.Config{
		BaseURL: cfg.Endpoint,
		APIKey:  cfg.APIKey,
		Timeout: cfg.RequestTimeout(),
	})

	p := prober.New(prober.Config{
		Interval:     cfg.Interval(),
		TestDuration: cfg.TestDuration(),
	}, specs, exec, led, agg, mirror, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return p.Run(ctx)
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a result ledger",
		Long:  `Read a result ledger and print per-query observation counts and average latency.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("ledger"); v != "" {
				cfg.LedgerFile = v
			}

			results, err := ledger.ReadAll(cfg.LedgerFile)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no results in %s\n", cfg.LedgerFile)
				return nil
			}

			agg := stats.New(results)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "QUERY\tCOUNT\tAVG SECONDS")
			for _, name := range agg.Names() {
				fmt.Fprintf(w, "%s\t%d\t%.6f\n", name, agg.Count(name), agg.Average(name))
			}
			return w.Flush()
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("ledger", "", "result ledger file (overrides config)")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("esprobe %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// buildLogger creates the process logger, honoring the configured log file.
func buildLogger(cmd *cobra.Command, cfg *config.Config) (*logger.Logger, func(), error) {
	level := cfg.Log.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}

	if cfg.Log.File != "" {
		log, f, err := logger.NewFile(level, cfg.Log.Format, cfg.Log.File)
		if err != nil {
			return nil, nil, err
		}
		return log, func() { f.Close() }, nil
	}

	return logger.New(level, cfg.Log.Format), func() {}, nil
}
