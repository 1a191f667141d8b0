package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path (and its parent directories) holding size bytes and
// returns the written content. The content repeats the file's base name, so
// two fixtures of equal size still differ byte for byte. A size <= 0 writes a
// single byte.
func WriteFile(t testing.TB, path string, size int64) []byte {
	t.Helper()

	size = max(size, 1)
	seed := []byte(filepath.Base(path) + "|")
	content := bytes.Repeat(seed, int(size)/len(seed)+1)[:size]

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", path, err)
	}
	return content
}
