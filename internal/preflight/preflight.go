package preflight

import (
	"loudscan/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Result cache (when configured)
	if cfg.Paths.CacheFile != "" {
		results = append(results, CheckWritableFile("Cache file", cfg.Paths.CacheFile))
	}

	// Log directory (when configured)
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}

	// Run history database
	if cfg.Journal.Enabled {
		results = append(results, CheckJournal("History database", cfg.Journal.Path))
	}

	return results
}

// Passed reports whether every result in the set passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
