// Command slidemine drives the format-mining pipeline: crawl posts, ingest
// the reference corpus, match, score, generate drafts, and export manifests.
// Every subcommand prints a JSON summary to stdout; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/slidemine"
)

var (
	flagConfig   string
	flagDBPath   string
	flagLogLevel string
	flagSeed     int64
)

func main() {
	root := &cobra.Command{
		Use:           "slidemine",
		Short:         "Mine viral slideshow formats and generate review-only drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "slidemine.yaml", "config file path")
	root.PersistentFlags().StringVar(&flagDBPath, "db", "", "override the configured database path")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "debug, info, warn, or error")
	root.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "fixed random seed (0 = time-based)")

	root.AddCommand(
		newInitDBCmd(),
		newBackfillCmd(),
		newIngestAssetsCmd(),
		newMatchPostsCmd(),
		newScoreFormatsCmd(),
		newMakeDraftsCmd(),
		newExportDraftCmd(),
		newReportCmd(),
		newServeCmd(),
		newMCPCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("slidemine: command failed", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the stderr JSON logger and installs it as default.
func newLogger() *slog.Logger {
	var lvl slog.Level
	switch flagLogLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// openService loads config, builds the Service, and opens the database.
// The caller owns Close.
func openService(ctx context.Context, opts ...slidemine.ServiceOption) (*slidemine.Service, error) {
	logger := newLogger()
	cfg, err := slidemine.LoadConfig(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDBPath != "" {
		cfg.DBPath = flagDBPath
	}
	if flagSeed != 0 {
		opts = append(opts, slidemine.WithSeed(flagSeed))
	}
	svc := slidemine.New(cfg, logger, opts...)
	if err := svc.Open(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

// printJSON writes the command's summary to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
