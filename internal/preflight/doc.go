// Package preflight provides readiness checks for the filesystem paths
// loudscan depends on.
//
// These checks run in two contexts:
//   - The measure command verifies the target and cache file before any
//     decoding starts, so permission problems fail fast instead of
//     partway through a batch.
//   - The CLI "loudscan config validate" command runs RunAll to display
//     the health of every configured path.
//
// Each check is gated by its config value -- unset paths are skipped.
package preflight
