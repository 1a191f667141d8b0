// Package preflight provides readiness checks for the directories, binaries
// and remote services mediadrop depends on.
//
// These checks run in two contexts:
//   - The daemon logs RunLocal results at startup; failures are reported but
//     do not stop the pipelines. Remote reachability is checked separately
//     when the WebDAV clients connect.
//   - The CLI "mediadrop check" command renders them as a table and exits
//     non-zero when a required check fails.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
