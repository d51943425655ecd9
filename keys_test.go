package rescache

import "testing"

func TestDeriveKey(t *testing.T) {
	a := DeriveKey("company_profile", map[string]string{"name": "Acme", "region": "eu"})
	b := DeriveKey("company_profile", map[string]string{"region": "eu", "name": "Acme"})
	if a != b {
		t.Errorf("key depends on argument order: %s vs %s", a, b)
	}
	if len(a) != keyDigestLen {
		t.Errorf("key length = %d, want %d", len(a), keyDigestLen)
	}

	if a == DeriveKey("supplier_quote", map[string]string{"name": "Acme", "region": "eu"}) {
		t.Error("different categories must not collide")
	}
	if a == DeriveKey("company_profile", map[string]string{"name": "Acme", "region": "us"}) {
		t.Error("different parameter values must not collide")
	}
	if DeriveKey("c", nil) != DeriveKey("c", map[string]string{}) {
		t.Error("nil and empty parts should derive the same key")
	}
}

func TestBucket(t *testing.T) {
	cases := []struct {
		value float64
		size  int64
		want  int64
	}{
		{124_999, 50_000, 100_000},
		{125_000, 50_000, 150_000}, // halves round away from zero
		{175_200, 50_000, 200_000},
		{49.4, 0, 49}, // size<=0 rounds to integer
		{49.5, 0, 50},
		{-75_000, 50_000, -100_000},
		{0, 50_000, 0},
	}
	for _, tc := range cases {
		if got := Bucket(tc.value, tc.size); got != tc.want {
			t.Errorf("Bucket(%v, %d) = %d, want %d", tc.value, tc.size, got, tc.want)
		}
	}
}
