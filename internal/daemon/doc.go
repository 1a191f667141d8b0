// Package daemon coordinates the long-running mediadrop process.
//
// It ties the download orchestrator and the upload pipeline into a single
// lifecycle with flock-based locking to prevent multiple instances, writes
// the pid file, and reports a status snapshot built from the task directory
// and the event journal.
//
// Keep orchestration logic here: pipeline behavior lives in the download and
// upload packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
