// Package deps locates the external executables the download pipeline runs.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Status reports whether one external tool can be executed.
type Status struct {
	Name string
	// Command is the resolved path when the tool was found, otherwise the
	// configured name.
	Command   string
	Purpose   string
	Optional  bool
	Available bool
	Detail    string
}

// helpers are run by yt-dlp itself, never by mediadrop directly. Without them
// yt-dlp still downloads single-file formats.
var helpers = []struct{ name, purpose string }{
	{"ffmpeg", "merges separate audio/video formats and extracts audio"},
	{"ffprobe", "inspects media during yt-dlp post-processing"},
}

// Lookup resolves command on PATH (or as a path) and reports the result.
func Lookup(name, command, purpose string, optional bool) Status {
	status := Status{
		Name:     name,
		Command:  strings.TrimSpace(command),
		Purpose:  purpose,
		Optional: optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

// Check reports yt-dlp followed by its optional helpers. Bundled yt-dlp
// releases ship ffmpeg and ffprobe beside the yt-dlp executable and prefer
// them over PATH, so a sibling binary wins here too.
func Check(ytdlpBinary string) []Status {
	ytdlp := Lookup("yt-dlp", ytdlpBinary, "media retrieval tool", false)
	statuses := []Status{ytdlp}
	for _, h := range helpers {
		if ytdlp.Available {
			sibling := filepath.Join(filepath.Dir(ytdlp.Command), h.name)
			if isExecutableFile(sibling) {
				statuses = append(statuses, Status{
					Name:      h.name,
					Command:   sibling,
					Purpose:   h.purpose,
					Optional:  true,
					Available: true,
				})
				continue
			}
		}
		statuses = append(statuses, Lookup(h.name, h.name, h.purpose, true))
	}
	return statuses
}

// Missing filters statuses down to unavailable required tools.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}
