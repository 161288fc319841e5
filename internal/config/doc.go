// Package config loads, normalizes, and validates loudscan configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LOUDSCAN_CACHE_FILE. The Config type centralizes every knob the CLI
// needs, so the cache location, worker count, and journal settings are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
