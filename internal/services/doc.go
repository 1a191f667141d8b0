// Package services defines shared utilities consumed by the download and
// upload pipelines and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task identifiers, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from yt-dlp,
//     the remote store, and the filesystem are classified consistently.
//
// The subpackages hold the collaborator clients (yt-dlp and WebDAV).
package services
