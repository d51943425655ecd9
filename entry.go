package rescache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/reportkit/rescache/internal/fsatomic"
)

// errEntryMissing marks a read of an entry file that does not exist. The
// facade turns it into a miss and drops the dangling index row.
var errEntryMissing = errors.New("rescache: entry file missing")

// Entry files are <16 hex chars>.json; index.json and index.json.bak can
// never collide with that shape.
var entryFilePattern = regexp.MustCompile(`^[0-9a-f]{16}\.json$`)

// entryStore reads and writes individual payload files inside the cache
// directory. It knows nothing about metadata; pairing files with index rows
// is the facade's job.
type entryStore struct {
	dir string
}

func newEntryStore(dir string) *entryStore {
	return &entryStore{dir: dir}
}

// fileName maps a cache key to its payload file. Keys are hashed so that
// arbitrary caller-supplied keys can never escape the cache directory or
// collide with the index files.
func (s *entryStore) fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:keyDigestLen] + ".json"
}

func (s *entryStore) write(file string, b []byte) error {
	return fsatomic.WriteFile(filepath.Join(s.dir, file), b, 0o644)
}

func (s *entryStore) read(file string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errEntryMissing
		}
		return nil, err
	}
	return b, nil
}

// delete removes an entry file; a file already gone is not an error.
func (s *entryStore) delete(file string) error {
	err := os.Remove(filepath.Join(s.dir, file))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// scanOrphans reconciles the directory against the index both ways:
// entry-shaped files no row references, and rows whose file is gone. Stale
// temp files from killed writes are deleted as a side effect.
func (s *entryStore) scanOrphans(idx *cacheIndex) (orphanFiles, orphanKeys []string) {
	referenced := make(map[string]struct{}, len(idx.entries))
	for key, meta := range idx.entries {
		referenced[meta.File] = struct{}{}
		if _, err := os.Stat(filepath.Join(s.dir, meta.File)); os.IsNotExist(err) {
			orphanKeys = append(orphanKeys, key)
		}
	}

	names, err := os.ReadDir(s.dir)
	if err != nil {
		return orphanFiles, orphanKeys
	}
	for _, de := range names {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if strings.HasPrefix(name, fsatomic.TempPrefix) {
			_ = os.Remove(filepath.Join(s.dir, name))
			continue
		}
		if !entryFilePattern.MatchString(name) {
			continue
		}
		if _, ok := referenced[name]; !ok {
			orphanFiles = append(orphanFiles, name)
		}
	}
	return orphanFiles, orphanKeys
}
