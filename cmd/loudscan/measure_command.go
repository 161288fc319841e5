package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"loudscan/internal/batch"
	"loudscan/internal/config"
	"loudscan/internal/journal"
	"loudscan/internal/logging"
	"loudscan/internal/preflight"
	"loudscan/internal/resultcache"
	"loudscan/internal/scan"
)

var summaryPrinter = message.NewPrinter(language.English)

func newMeasureCommand(ctx *commandContext) *cobra.Command {
	var cacheFlag string
	var noCache bool
	var workersFlag int
	var strideFlag int

	cmd := &cobra.Command{
		Use:   "measure <path> [cache-file]",
		Short: "Measure integrated loudness for a file or directory",
		Long: `Measure decodes each audio file and reports its integrated loudness
(LUFS) and gated loudness energy. A directory target is scanned one
level deep for the configured extensions.

When a cache file is active, files whose key is already cached are
skipped and new results are persisted to the snapshot. Per-file
failures are logged and do not stop the batch.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			target, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve target: %w", err)
			}

			cachePath, err := resolveCachePath(cfg, args, cacheFlag, noCache)
			if err != nil {
				return err
			}

			if check := preflight.CheckTarget("Target", target); !check.Passed {
				return errors.New(check.Detail)
			}
			if cachePath != "" {
				if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
					return fmt.Errorf("create cache directory: %w", err)
				}
				if check := preflight.CheckWritableFile("Cache file", cachePath); !check.Passed {
					return errors.New(check.Detail)
				}
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			runID := uuid.NewString()
			logger = logger.With(logging.String(logging.FieldRunID, runID))

			if cachePath != "" {
				lock := flock.New(cachePath + ".lock")
				ok, lockErr := lock.TryLock()
				if lockErr != nil {
					return fmt.Errorf("acquire cache lock: %w", lockErr)
				}
				if !ok {
					return fmt.Errorf("cache %s is in use by another loudscan run", cachePath)
				}
				defer func() {
					if unlockErr := lock.Unlock(); unlockErr != nil {
						logging.WarnWithContext(logger, "failed to release cache lock", "cache_unlock_failed",
							logging.Error(unlockErr),
							logging.String(logging.FieldCache, cachePath),
							logging.String(logging.FieldImpact, "stale lock may block the next run"))
					}
				}()
			}

			var cache *resultcache.Cache
			if cachePath != "" {
				cache, err = resultcache.Load(cachePath, logger)
				if err != nil {
					return err
				}
			}

			files, err := scan.Resolve(target, cfg.Scan.Extensions)
			if err != nil {
				return err
			}

			workers := cfg.Measure.Workers
			if cmd.Flags().Changed("workers") {
				workers = workersFlag
			}
			stride := cfg.Measure.SnapshotStride
			if cmd.Flags().Changed("stride") {
				stride = strideFlag
			}

			runner := batch.New(cache, batch.Options{
				Workers:        workers,
				SnapshotStride: stride,
				SnapshotPath:   cachePath,
				Stdout:         cmd.OutOrStdout(),
			}, logger)

			started := time.Now().UTC()
			summary, runErr := runner.Run(cmd.Context(), files)

			recordRun(cmd.Context(), cfg, logger, journal.Run{
				ID:         runID,
				Target:     target,
				CachePath:  cachePath,
				StartedAt:  started,
				FinishedAt: started.Add(summary.Elapsed),
				Files:      summary.Total,
				Measured:   summary.Measured,
				Skipped:    summary.Skipped,
				Failed:     summary.Failed,
			})

			printSummary(cmd.OutOrStdout(), summary)
			return runErr
		},
	}

	cmd.Flags().StringVar(&cacheFlag, "cache", "", "Result cache file (overrides config and the positional argument)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Measure without reading or writing a cache file")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Concurrent measurements; 0 uses the CPU count")
	cmd.Flags().IntVar(&strideFlag, "stride", 0, "Snapshot the cache after every Nth file; 0 writes only the final snapshot")
	return cmd
}

// resolveCachePath settles the cache file from, in order, the --cache
// flag, the optional positional argument, and the configured default.
func resolveCachePath(cfg *config.Config, args []string, cacheFlag string, noCache bool) (string, error) {
	if noCache {
		if strings.TrimSpace(cacheFlag) != "" || len(args) > 1 {
			return "", errors.New("--no-cache cannot be combined with a cache file")
		}
		return "", nil
	}

	raw := strings.TrimSpace(cacheFlag)
	if raw == "" && len(args) > 1 {
		raw = strings.TrimSpace(args[1])
	}
	if raw == "" {
		raw = strings.TrimSpace(cfg.Paths.CacheFile)
	}
	if raw == "" {
		return "", nil
	}

	expanded, err := config.ExpandPath(raw)
	if err != nil {
		return "", fmt.Errorf("resolve cache path: %w", err)
	}
	return expanded, nil
}

func recordRun(ctx context.Context, cfg *config.Config, logger *slog.Logger, run journal.Run) {
	if !cfg.Journal.Enabled {
		return
	}

	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		logging.WarnWithContext(logger, "journal unavailable", "journal_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path in the config"),
			logging.String(logging.FieldImpact, "run not recorded in history"))
		return
	}
	defer func() { _ = store.Close() }()

	if err := store.Record(ctx, run); err != nil {
		logging.WarnWithContext(logger, "journal record failed", "journal_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run not recorded in history"))
	}
}

func printSummary(w io.Writer, s batch.Summary) {
	elapsed := s.Elapsed.Round(10 * time.Millisecond)
	summaryPrinter.Fprintf(w, "Measured %d of %d files (%d skipped, %d failed) in %v\n",
		s.Measured, s.Total, s.Skipped, s.Failed, elapsed)
}
