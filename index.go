package rescache

import (
	"os"
	"path/filepath"
	"time"

	c "github.com/reportkit/rescache/codec"
	"github.com/reportkit/rescache/internal/fsatomic"
)

const (
	indexFileName  = "index.json"
	backupFileName = "index.json.bak"
)

// LoadSource reports which recovery path produced the in-memory index.
type LoadSource int

const (
	// LoadPrimary: index.json parsed cleanly.
	LoadPrimary LoadSource = iota
	// LoadBackup: primary missing or corrupt, index.json.bak used.
	LoadBackup
	// LoadEmpty: both unusable; cold start with an empty index.
	LoadEmpty
)

func (s LoadSource) String() string {
	switch s {
	case LoadPrimary:
		return "primary"
	case LoadBackup:
		return "backup"
	default:
		return "empty"
	}
}

// entryMeta is one index row: everything known about a cached entry except
// its payload.
type entryMeta struct {
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	SizeBytes    int64     `json:"size_bytes"`
	File         string    `json:"file"`
}

// indexFile is the serialized shape of index.json. Total size is derived
// from the rows on load rather than stored, so it can never drift from them.
type indexFile struct {
	Entries map[string]entryMeta `json:"entries"`
}

// cacheIndex is the single authoritative in-memory mapping. Mutations happen
// only inside the facade lock.
type cacheIndex struct {
	entries    map[string]entryMeta
	totalBytes int64
}

func newCacheIndex() *cacheIndex {
	return &cacheIndex{entries: make(map[string]entryMeta)}
}

// indexStore persists the cacheIndex with atomic replace plus a best-effort
// backup copy. An empty index is always a valid (if cold) starting state, so
// load never fails.
type indexStore struct {
	primary string
	backup  string
	codec   c.Codec[indexFile]
	log     Logger
}

func newIndexStore(dir string, log Logger) *indexStore {
	return &indexStore{
		primary: filepath.Join(dir, indexFileName),
		backup:  filepath.Join(dir, backupFileName),
		codec:   c.JSON[indexFile]{},
		log:     log,
	}
}

func (s *indexStore) load() (*cacheIndex, LoadSource) {
	if idx, ok := s.loadPath(s.primary); ok {
		return idx, LoadPrimary
	}
	if idx, ok := s.loadPath(s.backup); ok {
		s.log.Info("index restored from backup", Fields{"entries": len(idx.entries)})
		// Re-establish the primary so the next process start is clean.
		if err := fsatomic.CopyFile(s.backup, s.primary); err != nil {
			s.log.Warn("could not re-establish primary index from backup", Fields{"err": err})
		}
		return idx, LoadBackup
	}
	s.log.Info("starting with empty cache index", nil)
	return newCacheIndex(), LoadEmpty
}

func (s *indexStore) loadPath(path string) (*cacheIndex, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("index unreadable", Fields{"path": path, "err": err})
		}
		return nil, false
	}
	f, err := s.codec.Decode(b)
	if err != nil {
		s.log.Warn("index corrupt", Fields{"path": path, "err": err})
		return nil, false
	}
	idx := newCacheIndex()
	for k, m := range f.Entries {
		idx.entries[k] = m
		idx.totalBytes += m.SizeBytes
	}
	return idx, true
}

// save atomically replaces the primary, then copies the same bytes to the
// backup path. Backup staleness is tolerable; primary corruption is not, so
// only the primary write can fail the call.
func (s *indexStore) save(idx *cacheIndex) error {
	b, err := s.codec.Encode(indexFile{Entries: idx.entries})
	if err != nil {
		return err
	}
	if err := fsatomic.WriteFile(s.primary, b, 0o644); err != nil {
		return err
	}
	if err := fsatomic.CopyFile(s.primary, s.backup); err != nil {
		s.log.Warn("index backup copy failed", Fields{"err": err})
	}
	return nil
}
