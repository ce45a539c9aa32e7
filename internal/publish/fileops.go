package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// moveFile renames src to dst. Across filesystems (/dev/shm and friends) it
// copies into dst.tmp, syncs, renames that over dst and removes src.
func moveFile(src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	sfi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	if !sfi.Mode().IsRegular() {
		return fmt.Errorf("non-regular source file %s (%q)", filepath.Base(src), sfi.Mode().String())
	}

	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	tmp := dst + ".tmp"
	if err := copyFileContents(src, tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("copy file contents: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp to destination: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy (destination is safe): %w", err)
	}
	return nil
}

func copyFileContents(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy contents: %w", err)
	}
	return out.Sync()
}
