// Package resultcache persists loudness measurements keyed by file stem.
//
// The cache makes batch runs resumable: keys already present in the
// snapshot are skipped on later runs, so a slowly growing corpus only
// pays for its new files. Workers insert concurrently, the first
// writer wins, and a key is never overwritten once present.
//
// # Storage
//
// The snapshot is a JSON object mapping each key to its measurement,
// written atomically (temp file plus rename) so an interrupted run
// leaves the previous snapshot intact. A malformed snapshot fails the
// load; loudscan refuses to run rather than clobber a file it cannot
// read.
//
// CLI commands for inspection and management:
//
//	loudscan cache list          # List all cached measurements
//	loudscan cache remove <key>  # Remove one entry
//	loudscan cache clear         # Remove all entries
package resultcache
