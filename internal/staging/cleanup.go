package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mediadrop/internal/logging"
)

// CleanResult contains the outcome of an expiration sweep.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// Entry describes one item in the holding directory.
type Entry struct {
	Name    string
	Path    string
	Created time.Time
	IsDir   bool
	Size    int64
}

// Age returns how long ago the entry was created relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Created)
}

// entryTime is the clock used for expiration: birth time when the platform
// exposes it, otherwise modification time.
var entryTime = func(path string, info fs.FileInfo) time.Time {
	if created, ok := birthTime(path); ok {
		return created
	}
	return info.ModTime()
}

// ExpireAfter converts upload.expire_days into a maximum age. Zero disables
// the sweep.
func ExpireAfter(days int) time.Duration {
	if days <= 0 {
		return 0
	}
	return time.Duration(days) * 24 * time.Hour
}

// CleanExpired removes entries of dir older than maxAge, directories
// recursively. A non-positive maxAge disables the sweep. Failures are logged
// and collected; the sweep continues past them.
func CleanExpired(ctx context.Context, dir string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}
	if maxAge <= 0 {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := List(dir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
		return result
	}

	now := time.Now()
	cutoff := now.Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.Created.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(entry.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: entry.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove expired entry", "staging_cleanup_failed",
				logging.String("path", entry.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check files_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, entry.Path)
		logger.Info("removed expired entry",
			logging.String("path", entry.Path),
			logging.Duration("age", entry.Age(now).Round(time.Second)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}

// List returns the entries of dir with their creation time and size, oldest
// first. A missing or empty dir yields no entries.
func List(dir string) ([]Entry, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		size := info.Size()
		if entry.IsDir() {
			size, _ = dirSize(path)
		}
		out = append(out, Entry{
			Name:    entry.Name(),
			Path:    path,
			Created: entryTime(path, info),
			IsDir:   entry.IsDir(),
			Size:    size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // best effort
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
