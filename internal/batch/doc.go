// Package batch fans measurement work out over a pool of workers and
// funnels every per-file outcome through a single collector.
//
// The coordinator owns the run-level policies: skip files whose key is
// already cached, settle duplicate measurements through the cache's
// first-writer-wins insert, persist the cache every Nth applied insert
// as an amortized-durability policy, and always write one final
// snapshot so completed work survives the run. Per-file failures are
// logged and counted but never stop the batch.
package batch
