// Package notifications delivers pipeline events via pluggable notifiers.
//
// ntfy and Bark transports are provided; the provider is chosen in
// config.toml and the service degrades to a no-op when the chosen provider is
// not configured. Events cover the pipeline milestones so the download and
// upload stages emit consistent messages without duplicating HTTP glue.
//
// Notification delivery is never allowed to affect the pipeline: callers go
// through Dispatch, which logs and swallows delivery errors.
package notifications
