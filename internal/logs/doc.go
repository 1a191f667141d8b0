// Package logs reads the daemon and per-task log files for the CLI.
//
// Last returns the trailing lines of a file with bounded memory. Follow then
// streams complete lines appended after an offset, waking on fsnotify write
// events, until the context ends or the file is rotated away.
package logs
