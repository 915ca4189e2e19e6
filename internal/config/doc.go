// Package config loads, normalizes, and validates ultidisk configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ULTIDISK_PASSWORD. The Config type centralizes every knob the CLI needs:
// where the catalog lives, how to reach the device's REST and FTP services,
// and how wide a scan may fan out.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
