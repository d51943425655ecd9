// Package codec defines how cached values are serialized to the bytes that
// land in entry files. The facade decodes on read; a decode failure is the
// corruption signal that triggers self-healing (the entry is invalidated and
// reported as a miss, never as a fatal error).
package codec

// Codec encodes/decodes values V to []byte for on-disk storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
