package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"loudscan/internal/logging"
	"loudscan/internal/measure"
	"loudscan/internal/resultcache"
	"loudscan/internal/scan"
)

// Options configure a batch run.
type Options struct {
	// Workers bounds the pool size; 0 uses the CPU count. The pool
	// never exceeds the file count.
	Workers int
	// SnapshotStride persists the cache after applied inserts whose
	// index is a multiple of the stride; 0 disables stride snapshots.
	SnapshotStride int
	// SnapshotPath receives stride and final snapshots. Empty disables
	// persistence entirely.
	SnapshotPath string
	// Stdout receives the per-file result lines. Defaults to os.Stdout.
	Stdout io.Writer
}

// Summary reports the outcome counts of one run.
type Summary struct {
	Total    int
	Measured int
	Skipped  int
	Failed   int
	Elapsed  time.Duration
}

// Runner coordinates measurement of a file set against a shared cache.
type Runner struct {
	cache  *resultcache.Cache
	opts   Options
	logger *slog.Logger
	out    io.Writer
}

type job struct {
	index int
	path  string
}

type outcome struct {
	index   int
	path    string
	key     string
	m       measure.Measurement
	skipped bool
	err     error
}

// New builds a runner. cache may be nil when no snapshot path is
// configured; every file is then measured and nothing is persisted.
func New(cache *resultcache.Cache, opts Options, logger *slog.Logger) *Runner {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		cache:  cache,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "batch"),
		out:    out,
	}
}

// Run measures every file, skipping keys the cache already holds, and
// reports one output line per file. Individual failures never fail the
// run; only a failed final snapshot does.
func (r *Runner) Run(ctx context.Context, files []string) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(files)}

	if len(files) > 0 {
		workers := r.opts.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		if workers > len(files) {
			workers = len(files)
		}

		jobs := make(chan job)
		outcomes := make(chan outcome)

		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for j := range jobs {
					outcomes <- r.process(ctx, j)
				}
			}()
		}

		go func() {
			defer close(jobs)
			for i, path := range files {
				select {
				case jobs <- job{index: i, path: path}:
				case <-ctx.Done():
					return
				}
			}
		}()

		go func() {
			wg.Wait()
			close(outcomes)
		}()

		// Single collector so exactly one line is emitted per file and
		// snapshots never run concurrently with each other.
		for out := range outcomes {
			switch {
			case out.err != nil:
				summary.Failed++
				r.logger.Error("measurement failed",
					logging.Error(out.err),
					logging.String(logging.FieldFile, out.path),
					logging.String(logging.FieldKey, out.key))
			case out.skipped:
				summary.Skipped++
				fmt.Fprintf(r.out, "[%d] %s: skipping\n", out.index, out.key)
			default:
				summary.Measured++
				fmt.Fprintf(r.out, "[%d] %s: \t%.2f LUFS\t%.2f energy\n",
					out.index, out.key, out.m.Loudness, out.m.Energy)
				r.maybeStrideSnapshot(out.index)
			}
		}
	}

	var runErr error
	if r.persisting() {
		if err := r.cache.Snapshot(r.opts.SnapshotPath); err != nil {
			runErr = fmt.Errorf("final snapshot: %w", err)
		} else {
			r.logger.Debug("final snapshot written",
				logging.String(logging.FieldCache, r.opts.SnapshotPath),
				logging.Int("entry_count", r.cache.Len()))
		}
	}

	summary.Elapsed = time.Since(start)
	r.logger.Info("run complete",
		logging.Int("total", summary.Total),
		logging.Int("measured", summary.Measured),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Duration("elapsed", summary.Elapsed))

	return summary, runErr
}

// process handles one file on a worker goroutine. Two workers may race
// the same key through measurement; TryInsert settles it and the loser
// reports a skip instead of a duplicate result.
func (r *Runner) process(ctx context.Context, j job) outcome {
	out := outcome{index: j.index, path: j.path, key: scan.Key(j.path)}

	if r.cache != nil && r.cache.Contains(out.key) {
		out.skipped = true
		return out
	}

	logger := r.logger.With(logging.String(logging.FieldFile, j.path))
	m, err := measure.File(ctx, j.path, logger)
	if err != nil {
		out.err = err
		return out
	}
	out.m = m

	if r.cache != nil && !r.cache.TryInsert(out.key, m) {
		out.skipped = true
	}
	return out
}

func (r *Runner) maybeStrideSnapshot(index int) {
	if !r.persisting() || r.opts.SnapshotStride <= 0 || index%r.opts.SnapshotStride != 0 {
		return
	}
	if err := r.cache.Snapshot(r.opts.SnapshotPath); err != nil {
		logging.WarnWithContext(r.logger, "stride snapshot failed", "stride_snapshot_failed",
			logging.Error(err),
			logging.String(logging.FieldCache, r.opts.SnapshotPath),
			logging.String(logging.FieldErrorHint, "check disk space and cache file permissions"),
			logging.String(logging.FieldImpact, "results stay in memory until the final snapshot"))
		return
	}
	r.logger.Debug("stride snapshot written",
		logging.Int("index", index),
		logging.String(logging.FieldCache, r.opts.SnapshotPath))
}

func (r *Runner) persisting() bool {
	return r.cache != nil && r.opts.SnapshotPath != ""
}
