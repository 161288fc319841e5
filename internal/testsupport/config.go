package testsupport

import (
	"path/filepath"
	"testing"

	"loudscan/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheFile = filepath.Join(base, "loudness.json")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Journal.Enabled = false
	cfgVal.Journal.Path = filepath.Join(base, "history.db")
	cfgVal.Measure.Workers = 1
	cfgVal.Measure.SnapshotStride = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCacheFile overrides the cache snapshot path on the test config.
func WithCacheFile(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.CacheFile = path
	}
}

// WithWorkers sets the measurement worker count on the test config.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Measure.Workers = n
	}
}

// WithSnapshotStride sets the snapshot stride on the test config.
func WithSnapshotStride(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Measure.SnapshotStride = n
	}
}

// WithJournal enables the run journal backed by a database under the test's
// temp directory.
func WithJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = true
	}
}

// WithExtensions replaces the scan extension filter on the test config.
func WithExtensions(exts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scan.Extensions = exts
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
