package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// CopyFileVerified copies src into a new file at dst with perm, syncs it, and
// re-reads dst to compare its digest with the bytes read from src. dst is
// removed on any failure.
func CopyFileVerified(src, dst string, perm os.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(dst)
		}
	}()

	srcDigest := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcDigest))
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	dstDigest, dstSize, err := digestFile(dst)
	if err != nil {
		return err
	}
	if dstSize != written {
		return fmt.Errorf("copy size mismatch: read %d bytes, destination has %d", written, dstSize)
	}
	if !bytes.Equal(srcDigest.Sum(nil), dstDigest) {
		return fmt.Errorf("copy digest mismatch for %s", dst)
	}
	return nil
}

func digestFile(path string) ([]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reopen destination: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, 0, fmt.Errorf("verify destination: %w", err)
	}
	return h.Sum(nil), n, nil
}
