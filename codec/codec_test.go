package codec

import (
	"bytes"
	"testing"
)

type sample struct {
	Name  string   `json:"name" msgpack:"name" cbor:"name"`
	Score float64  `json:"score" msgpack:"score" cbor:"score"`
	Tags  []string `json:"tags" msgpack:"tags" cbor:"tags"`
}

func TestJSONRejectsGarbage(t *testing.T) {
	c := JSON[sample]{}
	if _, err := c.Decode([]byte("{torn mid-write")); err == nil {
		t.Error("Decode of truncated JSON should fail")
	}
}

func TestJSONRoundTrip(t *testing.T) {
	c := JSON[sample]{}
	in := sample{Name: "acme", Score: 0.5, Tags: []string{"a", "b"}}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || out.Score != in.Score || len(out.Tags) != 2 {
		t.Errorf("roundtrip mismatch: %+v", out)
	}
}

func TestRawIsIdentity(t *testing.T) {
	c := Raw{}
	in := []byte("opaque payload")
	b, err := c.Encode(in)
	if err != nil || !bytes.Equal(b, in) {
		t.Fatalf("Encode: %q, %v", b, err)
	}
	out, err := c.Decode(b)
	if err != nil || !bytes.Equal(out, in) {
		t.Fatalf("Decode: %q, %v", out, err)
	}
}

func TestLimitGuardsDecode(t *testing.T) {
	c := Limit[sample]{Inner: JSON[sample]{}, MaxDecode: 8}

	big, err := c.Encode(sample{Name: "long enough to exceed the limit"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(big); err == nil {
		t.Error("oversized payload should be rejected before decoding")
	}

	// No limit configured: everything passes to the inner codec.
	open := Limit[sample]{Inner: JSON[sample]{}}
	if _, err := open.Decode(big); err != nil {
		t.Errorf("unlimited Decode: %v", err)
	}
}

func TestCBORDeterministic(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	in := map[string]int{"b": 2, "a": 1, "c": 3}

	first, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := c.Encode(in)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("deterministic mode produced differing encodings")
		}
	}

	out, err := c.Decode(first)
	if err != nil || out["b"] != 2 {
		t.Fatalf("Decode: %v, %v", out, err)
	}
}

func TestMsgpackRoundTrip(t *testing.T) {
	c := Msgpack[sample]{}
	in := sample{Name: "acme", Score: 0.25}
	b, err := c.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := c.Decode(b)
	if err != nil || out.Name != "acme" || out.Score != 0.25 {
		t.Fatalf("Decode: %+v, %v", out, err)
	}
	if _, err := c.Decode([]byte{0xc1}); err == nil {
		t.Error("Decode of reserved msgpack byte should fail")
	}
}
