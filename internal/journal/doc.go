// Package journal records the outcome of each batch run in a local
// SQLite database so past invocations can be reviewed with
// "loudscan history".
//
// The journal is append-only during normal operation: one row per run,
// carrying the target, the cache file in use, timing, and the
// measured/skipped/failed counts. It is entirely optional and disabled
// by default; measurement results themselves live in the JSON result
// cache, not here.
package journal
