// Package rescache implements a persistent, crash-safe research cache: a
// concurrent key-value store over a local cache directory that survives
// process kills mid-write, bounds its own disk footprint via LRU eviction,
// and self-heals from index or entry corruption instead of failing.
//
// Components:
//   - Codec[V]: (de)serializes V <-> []byte (JSON, Msgpack, CBOR, Protobuf, Raw).
//   - memtier.Provider: optional in-memory hot tier (e.g. Ristretto, BigCache)
//     consulted before disk reads; disk stays authoritative.
//   - checkpoint.Manager: per-run completed-unit generations with digest
//     verification, for crash-safe resume of long batch jobs.
//
// Disk layout (one cache directory):
//
//	index.json      - key -> {category, created_at, last_accessed, size_bytes, file}
//	index.json.bak  - last known-good copy, read only when the primary fails to parse
//	<hash>.json     - one file per entry; hash is a digest of the cache key
//
// Every write of index, entry, and checkpoint files goes through temp file +
// fsync + atomic rename, so a killed process never leaves a half-written file
// visible under its final name.
//
// Failure policy: a cache is an optimization, never a correctness dependency.
// Reads fail open (corrupt or unreadable entries become misses and are
// invalidated), index corruption falls back to the backup and then to an
// empty index, and only an uncreatable cache directory is fatal.
package rescache
