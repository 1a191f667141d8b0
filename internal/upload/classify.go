package upload

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mediadrop/internal/queue"
	"mediadrop/internal/services/webdav"
	"mediadrop/internal/textutil"
)

const dateLayout = "20060102"

var extensions = map[string]queue.Kind{
	".mp4":  queue.KindVideo,
	".mkv":  queue.KindVideo,
	".webm": queue.KindVideo,
	".mov":  queue.KindVideo,
	".mp3":  queue.KindAudio,
	".m4a":  queue.KindAudio,
	".opus": queue.KindAudio,
	".flac": queue.KindAudio,
}

// Classify returns the media kind for name's extension. ok is false for
// unsupported files.
func Classify(name string) (queue.Kind, bool) {
	kind, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return kind, ok
}

// CategoryDir returns the remote folder name for kind ("Video", "Audio").
func CategoryDir(kind queue.Kind) string {
	return cases.Title(language.English).String(string(kind))
}

// RemotePath builds <root>/[<Category>/]<YYYYMMDD>/<sanitized name> with the
// date taken from at in loc.
func RemotePath(root string, kind queue.Kind, name string, at time.Time, loc *time.Location, categoryDirs bool) string {
	if loc == nil {
		loc = time.Local
	}
	segments := []string{root}
	if categoryDirs {
		segments = append(segments, CategoryDir(kind))
	}
	segments = append(segments, at.In(loc).Format(dateLayout), textutil.SanitizeFileName(filepath.Base(name)))
	return webdav.Join(segments...)
}

func remoteDir(remotePath string) string {
	return path.Dir(remotePath)
}
