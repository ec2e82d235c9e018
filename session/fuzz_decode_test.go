package session

import (
	"testing"
)

// FuzzSessionDecode exercises the cookie decoder with arbitrary inputs.
// Goal: no panics, and anything that decodes re-encodes to a stable string.
func FuzzSessionDecode(f *testing.F) {
	encoded, err := Encode(map[string]any{
		"uid":   "user1",
		"count": 3,
		"flags": map[string]any{"beta": true},
	})
	if err == nil {
		f.Add(encoded)
	}

	f.Add("")
	f.Add("e30")
	f.Add("bnVsbA")
	f.Add("W10=")
	f.Add("!!!")
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}

	f.Fuzz(func(t *testing.T, raw string) {
		payload, err := Decode(raw)
		if err != nil {
			return
		}

		first, err := Encode(payload)
		if err != nil {
			t.Fatalf("re-encode of decoded payload failed: %v", err)
		}
		again, err := Decode(first)
		if err != nil {
			t.Fatalf("decode of re-encoded payload failed: %v", err)
		}
		second, err := Encode(again)
		if err != nil {
			t.Fatalf("second re-encode failed: %v", err)
		}
		if first != second {
			t.Fatalf("encoding not stable: %q != %q", first, second)
		}
	})
}
