// Package ytdlp wraps the yt-dlp command line.
//
// Fetch runs one retrieval into a caller-provided directory and streams every
// output line to a callback as it arrives. A non-zero exit is reported as
// *ExitError carrying the exit code and the last lines of output, which is
// usually where yt-dlp prints the reason. Command execution is abstracted
// behind Executor so tests can substitute canned output.
package ytdlp
