// Package fsatomic implements the temp-file + fsync + rename write protocol.
// A file written through WriteFile is observable only in its fully-complete or
// fully-absent form: readers see either the previous content or the new
// content, never a partial write, even if the process is killed mid-write.
package fsatomic

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempPrefix names in-flight temp files so crash leftovers are recognizable
// and can be swept on startup.
const TempPrefix = ".tmp-"

// WriteFile atomically replaces path with b. The temp file is created in the
// target's directory so the final rename stays on one filesystem.
func WriteFile(path string, b []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	f, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("fsatomic: create temp in %s: %w", dir, err)
	}
	tmp := f.Name()

	if err := writeAndSync(f, b, perm); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fsatomic: write %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("fsatomic: rename over %s: %w", path, err)
	}

	// Make the rename itself durable. Not all platforms support fsync on a
	// directory; the file replace was still atomic, so failures are ignored.
	syncDir(dir)
	return nil
}

func writeAndSync(f *os.File, b []byte, perm os.FileMode) error {
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chmod(f.Name(), perm)
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// CopyFile copies src to dst non-atomically. Used for best-effort secondary
// copies (e.g. an index backup) where staleness is tolerable and the primary
// was already replaced atomically.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
