// Package retry provides the two pieces of upload retry bookkeeping: a Table
// of per-artifact attempt records and a Scheduler that runs delayed one-shot
// callbacks.
//
// The Table is the only shared mutable state in the upload pipeline. Every
// read-modify-write of a record happens under one mutex, which also keeps
// attempts for a single artifact strictly sequential: Begin refuses a path
// whose attempt is running or whose retry is pending.
package retry
