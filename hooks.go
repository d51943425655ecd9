package rescache

// Hooks are lightweight callbacks for high-signal recovery events, so
// operators can see the cache healing itself. Implementations MUST be cheap
// and non-blocking; the cache calls them while holding its lock.
type Hooks interface {
	// The index could not be read from its primary path.
	// source is "backup" (restored from index.json.bak) or "empty" (cold start).
	IndexRecovered(source string, entries int)

	// A single entry was invalidated on read.
	// reason is "decode" (payload failed to deserialize) or "missing_file".
	EntrySelfHealed(key, reason string)

	// Startup reconciliation removed files with no index row and/or index
	// rows with no file.
	OrphansCleaned(files, rows int)

	// An entry was deleted to bring the cache under its size budget.
	EntryEvicted(key string, sizeBytes int64)

	// A checkpoint generation failed digest or identity verification and
	// resume fell back to an older generation.
	CheckpointGenerationSkipped(runID string, generation uint64, reason string)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) IndexRecovered(string, int)                         {}
func (NopHooks) EntrySelfHealed(string, string)                     {}
func (NopHooks) OrphansCleaned(int, int)                            {}
func (NopHooks) EntryEvicted(string, int64)                         {}
func (NopHooks) CheckpointGenerationSkipped(string, uint64, string) {}
