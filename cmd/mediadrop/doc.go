// Command mediadrop runs the download and upload daemon and provides
// operator commands for queueing tasks, inspecting state, and checking the
// environment.
package main
