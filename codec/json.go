package codec

import "encoding/json"

// JSON serializes values with encoding/json. This matches the on-disk
// contract for the index and checkpoint files and is the usual choice for
// typed research payloads.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
