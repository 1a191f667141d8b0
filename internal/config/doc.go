// Package config loads, normalizes, and validates mediadrop configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks for secrets
// such as the WebDAV password and notification credentials. The Config type
// centralizes every knob the daemon and CLI need so the task, holding, scratch,
// and log directories are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a resolved timezone, and clear validation errors.
package config
