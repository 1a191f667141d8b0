// Package upload pushes finished media from the holding directory to the
// remote WebDAV store.
//
// Every artifact is handled on the holding-directory watcher's dispatch
// goroutine. A failed attempt is recorded in a retry.Table and re-run from a
// retry.Scheduler after the configured delay; events for an artifact whose
// attempt is running or whose retry is pending are dropped so attempts for
// one path never overlap. The local copy is removed only after the remote
// object is confirmed.
package upload
