package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"loudscan/internal/logging"
	"loudscan/internal/measure"
	"loudscan/internal/resultcache"
	"loudscan/internal/testsupport"
)

func writeTone(t *testing.T, path string) {
	t.Helper()
	testsupport.WriteToneWAV(t, path, testsupport.Tone{
		Freq:       997,
		DBFS:       -23,
		Seconds:    1,
		SampleRate: 48000,
		Channels:   2,
	})
}

func loadCache(t *testing.T, path string) *resultcache.Cache {
	t.Helper()
	cache, err := resultcache.Load(path, nil)
	if err != nil {
		t.Fatalf("resultcache.Load: %v", err)
	}
	return cache
}

func outputLines(buf *bytes.Buffer) []string {
	var lines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestRunMeasuresAndPersists(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeTone(t, first)
	writeTone(t, second)

	cachePath := filepath.Join(dir, "cache.json")
	cache := loadCache(t, cachePath)

	var out bytes.Buffer
	runner := New(cache, Options{
		Workers:        2,
		SnapshotStride: 10,
		SnapshotPath:   cachePath,
		Stdout:         &out,
	}, logging.NewNop())

	summary, err := runner.Run(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total != 2 || summary.Measured != 2 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want 2 measured", summary)
	}

	lines := outputLines(&out)
	if len(lines) != 2 {
		t.Fatalf("got %d output lines, want 2:\n%s", len(lines), out.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, "LUFS") {
			t.Errorf("line %q missing result fields", line)
		}
	}

	reloaded := loadCache(t, cachePath)
	if reloaded.Len() != 2 {
		t.Errorf("persisted %d entries, want 2", reloaded.Len())
	}
	for _, key := range []string{"first", "second"} {
		if !reloaded.Contains(key) {
			t.Errorf("snapshot missing key %q", key)
		}
	}
}

func TestRunSkipsCachedFiles(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeTone(t, first)
	writeTone(t, second)

	cachePath := filepath.Join(dir, "cache.json")
	cache := loadCache(t, cachePath)
	cache.TryInsert("first", measure.Measurement{Loudness: -23, Energy: 0.04})

	var out bytes.Buffer
	runner := New(cache, Options{Workers: 2, SnapshotPath: cachePath, Stdout: &out}, logging.NewNop())

	summary, err := runner.Run(context.Background(), []string{first, second})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Skipped != 1 || summary.Measured != 1 {
		t.Errorf("summary = %+v, want 1 skipped and 1 measured", summary)
	}
	if !strings.Contains(out.String(), "first: skipping") {
		t.Errorf("output missing skip line:\n%s", out.String())
	}
}

func TestRunFailuresDoNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.wav")
	good := filepath.Join(dir, "good.wav")
	testsupport.WriteFile(t, bad, 256)
	writeTone(t, good)

	cachePath := filepath.Join(dir, "cache.json")
	cache := loadCache(t, cachePath)

	var out bytes.Buffer
	runner := New(cache, Options{Workers: 2, SnapshotPath: cachePath, Stdout: &out}, logging.NewNop())

	summary, err := runner.Run(context.Background(), []string{bad, good})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 || summary.Measured != 1 {
		t.Errorf("summary = %+v, want 1 failed and 1 measured", summary)
	}

	// Failures log to the diagnostic stream, never to stdout.
	lines := outputLines(&out)
	if len(lines) != 1 {
		t.Fatalf("got %d output lines, want 1:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "good") {
		t.Errorf("line %q should report the good file", lines[0])
	}

	reloaded := loadCache(t, cachePath)
	if reloaded.Contains("bad") {
		t.Error("failed file must not be cached")
	}
	if !reloaded.Contains("good") {
		t.Error("measured file missing from snapshot")
	}
}

func TestRunWithoutCacheMeasuresEverything(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	writeTone(t, first)

	var out bytes.Buffer
	runner := New(nil, Options{Workers: 1, Stdout: &out}, logging.NewNop())

	for i := 0; i < 2; i++ {
		summary, err := runner.Run(context.Background(), []string{first})
		if err != nil {
			t.Fatalf("Run #%d: %v", i+1, err)
		}
		if summary.Measured != 1 || summary.Skipped != 0 {
			t.Errorf("run #%d summary = %+v, want 1 measured", i+1, summary)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("no-cache mode wrote files to disk: %v", entries)
	}
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeTone(t, first)
	writeTone(t, second)

	cachePath := filepath.Join(dir, "cache.json")
	files := []string{first, second}

	cache := loadCache(t, cachePath)
	var out bytes.Buffer
	runner := New(cache, Options{Workers: 2, SnapshotPath: cachePath, Stdout: &out}, logging.NewNop())
	if _, err := runner.Run(context.Background(), files); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// A fresh process loads the snapshot and should skip everything.
	cache = loadCache(t, cachePath)
	out.Reset()
	runner = New(cache, Options{Workers: 2, SnapshotPath: cachePath, Stdout: &out}, logging.NewNop())
	summary, err := runner.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Skipped != 2 || summary.Measured != 0 {
		t.Errorf("second run summary = %+v, want 2 skipped", summary)
	}
	for _, line := range outputLines(&out) {
		if !strings.Contains(line, "skipping") {
			t.Errorf("second run printed a non-skip line: %q", line)
		}
	}
}

func TestRunEmptyFileSetStillFlushes(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	cache := loadCache(t, cachePath)

	runner := New(cache, Options{SnapshotPath: cachePath, Stdout: &bytes.Buffer{}}, logging.NewNop())
	summary, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Total != 0 {
		t.Errorf("Total = %d, want 0", summary.Total)
	}
	if _, err := os.Stat(cachePath); err != nil {
		t.Errorf("final snapshot not written: %v", err)
	}
}

func TestRunFinalSnapshotFailureIsRunError(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	writeTone(t, first)

	// A regular file where the snapshot directory should go makes
	// every snapshot attempt fail.
	blocker := filepath.Join(dir, "blocker")
	testsupport.WriteFile(t, blocker, 4)
	cachePath := filepath.Join(blocker, "cache.json")

	cache := loadCache(t, filepath.Join(dir, "unused.json"))
	var out bytes.Buffer
	runner := New(cache, Options{
		Workers:        1,
		SnapshotStride: 1,
		SnapshotPath:   cachePath,
		Stdout:         &out,
	}, logging.NewNop())

	summary, err := runner.Run(context.Background(), []string{first})
	if err == nil {
		t.Fatal("Run should fail when the final snapshot cannot be written")
	}
	if !strings.Contains(err.Error(), "final snapshot") {
		t.Errorf("error = %v, want final snapshot failure", err)
	}
	// The stride snapshot failed too, but only as a warning: the file
	// was still measured and reported.
	if summary.Measured != 1 {
		t.Errorf("summary = %+v, want 1 measured despite snapshot failures", summary)
	}
	if len(outputLines(&out)) != 1 {
		t.Errorf("expected the result line despite snapshot failures:\n%s", out.String())
	}
}

func TestMaybeStrideSnapshotPolicy(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "cache.json")
	cache := loadCache(t, cachePath)
	cache.TryInsert("track", measure.Measurement{Loudness: -23, Energy: 0.04})

	runner := New(cache, Options{SnapshotStride: 10, SnapshotPath: cachePath}, logging.NewNop())

	runner.maybeStrideSnapshot(3)
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Fatal("index 3 with stride 10 should not snapshot")
	}

	runner.maybeStrideSnapshot(10)
	if _, err := os.Stat(cachePath); err != nil {
		t.Fatalf("index 10 with stride 10 should snapshot: %v", err)
	}

	if err := os.Remove(cachePath); err != nil {
		t.Fatalf("remove snapshot: %v", err)
	}
	disabled := New(cache, Options{SnapshotStride: 0, SnapshotPath: cachePath}, logging.NewNop())
	disabled.maybeStrideSnapshot(10)
	if _, err := os.Stat(cachePath); !os.IsNotExist(err) {
		t.Fatal("stride 0 must disable stride snapshots")
	}
}

func TestRunOutputLineFormat(t *testing.T) {
	dir := t.TempDir()
	tone := filepath.Join(dir, "tone.wav")
	writeTone(t, tone)

	var out bytes.Buffer
	runner := New(nil, Options{Workers: 1, Stdout: &out}, logging.NewNop())
	if _, err := runner.Run(context.Background(), []string{tone}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// A 997 Hz stereo tone at -23 dBFS reads -23.00 LUFS, and its seven
	// gated blocks sum to 0.04 energy.
	want := "[0] tone: \t-23.00 LUFS\t0.04 energy\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRunCanceledContext(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	second := filepath.Join(dir, "second.wav")
	writeTone(t, first)
	writeTone(t, second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cachePath := filepath.Join(dir, "cache.json")
	cache := loadCache(t, cachePath)
	runner := New(cache, Options{Workers: 2, SnapshotPath: cachePath, Stdout: &bytes.Buffer{}}, logging.NewNop())

	summary, err := runner.Run(ctx, []string{first, second})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Measured+summary.Skipped+summary.Failed > summary.Total {
		t.Errorf("summary counts exceed total: %+v", summary)
	}
}
