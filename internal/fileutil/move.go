package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// PartialPrefix marks in-flight copies in a destination directory. Watchers
// ignore names that start with it.
const PartialPrefix = "."

// MoveFile relocates src to dst. A plain rename is tried first; when src and
// dst live on different filesystems the file is copied into a hidden sibling
// of dst and renamed into place, so observers of the destination directory
// only ever see the complete file.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	partial := filepath.Join(filepath.Dir(dst), PartialPrefix+filepath.Base(dst)+".partial")
	_ = os.Remove(partial)
	if err := CopyFileVerified(src, partial, info.Mode().Perm()); err != nil {
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.Chtimes(partial, info.ModTime(), info.ModTime()); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("preserve mtime: %w", err)
	}
	if err := os.Rename(partial, dst); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("rename into place: %w", err)
	}
	return os.Remove(src)
}

// IsHidden reports whether the base name of path marks an in-flight or
// otherwise hidden file.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return len(base) > 0 && base[0] == '.'
}
