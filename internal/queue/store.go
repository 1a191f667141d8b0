package queue

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const createAttempts = 5

// Task is a descriptor found on disk.
type Task struct {
	ID      ID
	Status  Status
	URL     string
	Path    string
	ModTime time.Time
}

// Store manages task descriptors inside one directory.
type Store struct {
	dir      string
	location *time.Location
	now      func() time.Time
}

// NewStore returns a Store rooted at dir. Ids are stamped and parsed in loc.
func NewStore(dir string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{dir: dir, location: loc, now: time.Now}
}

// Dir returns the descriptor directory.
func (s *Store) Dir() string {
	return s.dir
}

// Location returns the timezone ids are parsed in.
func (s *Store) Location() *time.Location {
	return s.location
}

// Path returns where the descriptor for id lives while in status.
func (s *Store) Path(id string, status Status) string {
	return filepath.Join(s.dir, id+status.Extension())
}

// ParseID parses id in the store's timezone.
func (s *Store) ParseID(id string) (ID, error) {
	return ParseIDIn(id, s.location)
}

// Transition atomically renames the descriptor for id from one status to
// another. The descriptor is left untouched when the rename fails, including
// when a descriptor already exists under the target status.
func (s *Store) Transition(id string, from, to Status) error {
	if err := checkTransition(from, to); err != nil {
		return err
	}
	src := s.Path(id, from)
	dst := s.Path(id, to)
	if err := renameNoReplace(src, dst); err != nil {
		return fmt.Errorf("%w: %s %s -> %s: %w", ErrRenameFailed, id, from, to, err)
	}
	return nil
}

// ReadURL reads and trims the body of the descriptor at path.
func ReadURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("read descriptor %s: %w", path, err)
	}
	url := strings.TrimSpace(string(data))
	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrEmpty, path)
	}
	return url, nil
}

// Create writes a new pending descriptor for url and returns it. The body is
// written to a hidden file first and renamed into place so a watcher never
// reads a partial URL.
func (s *Store) Create(kind Kind, url string) (Task, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Task{}, ErrEmpty
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Task{}, fmt.Errorf("ensure urls directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".task-*")
	if err != nil {
		return Task{}, fmt.Errorf("create temp descriptor: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(url); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return Task{}, fmt.Errorf("write temp descriptor: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return Task{}, fmt.Errorf("close temp descriptor: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return Task{}, fmt.Errorf("chmod temp descriptor: %w", err)
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		raw := NewID(kind, s.now(), s.location)
		dst := s.Path(raw, StatusPending)
		err := renameNoReplace(tmpPath, dst)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			_ = os.Remove(tmpPath)
			return Task{}, fmt.Errorf("publish descriptor: %w", err)
		}
		id, _ := s.ParseID(raw)
		return Task{ID: id, Status: StatusPending, URL: url, Path: dst, ModTime: s.now()}, nil
	}
	_ = os.Remove(tmpPath)
	return Task{}, fmt.Errorf("publish descriptor: no free id after %d attempts", createAttempts)
}

// Lookup returns the descriptor for id in whichever status it currently has.
func (s *Store) Lookup(id string) (Task, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, `/\`) {
		return Task{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, status := range allStatuses {
		path := s.Path(id, status)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		return s.load(id, status, path, info), nil
	}
	return Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// List returns every descriptor in the directory, oldest id first.
func (s *Store) List() ([]Task, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read urls directory: %w", err)
	}
	tasks := make([]Task, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		status, ok := StatusFromExtension(ext)
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		tasks = append(tasks, s.load(strings.TrimSuffix(name, ext), status, filepath.Join(s.dir, name), info))
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].ID.Raw < tasks[j].ID.Raw
	})
	return tasks, nil
}

// Pending returns the ids of descriptors waiting to be claimed.
func (s *Store) Pending() ([]string, error) {
	tasks, err := s.List()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, task := range tasks {
		if task.Status == StatusPending {
			ids = append(ids, task.ID.Raw)
		}
	}
	return ids, nil
}

// IDFromPath splits a descriptor path into its id and status.
func IDFromPath(path string) (string, Status, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return "", "", false
	}
	ext := filepath.Ext(name)
	status, ok := StatusFromExtension(ext)
	if !ok {
		return "", "", false
	}
	id := strings.TrimSuffix(name, ext)
	if id == "" {
		return "", "", false
	}
	return id, status, true
}

func (s *Store) load(raw string, status Status, path string, info fs.FileInfo) Task {
	id, _ := s.ParseID(raw)
	task := Task{ID: id, Status: status, Path: path, ModTime: info.ModTime()}
	if url, err := ReadURL(path); err == nil {
		task.URL = url
	}
	return task
}
