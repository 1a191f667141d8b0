// Package download turns pending task descriptors into media files in the
// holding directory.
//
// The Orchestrator watches the urls directory. A new .txt descriptor is
// scheduled for a short settle delay, then claimed by renaming it to
// .downloading; only the claimant that wins the rename runs the task. Claimed
// tasks go to a pool of at most max_workers concurrent yt-dlp runs, each in
// its own scratch directory with its own log file. On success every produced
// file is moved into the holding directory and the descriptor becomes .ok; on
// failure the scratch directory is discarded and the descriptor becomes .fail.
//
// A task interrupted by shutdown keeps its .downloading descriptor and scratch
// directory. It is not requeued on the next start.
package download
