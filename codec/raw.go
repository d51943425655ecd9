package codec

// Raw is an identity codec for []byte values. The process-wide shared cache
// uses it: payloads arrive as already-validated JSON blobs and the cache
// treats them as opaque bytes.
//
// Raw cannot detect content corruption on its own; pair it with Limit when
// oversized entries are a concern, or use a structured codec when the caller
// owns the value type.
type Raw struct{}

func (Raw) Encode(b []byte) ([]byte, error) { return b, nil }
func (Raw) Decode(b []byte) ([]byte, error) { return b, nil }

// String is a trivial codec for Go string values. Assumes UTF-8 by
// convention and performs no validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
