// Package logging assembles the structured slog loggers used across
// loudscan.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so measurement and cache code
// tag log lines with the same keys everywhere. A no-op logger is
// provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every
// component emits data with the same shape and routing.
package logging
