package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Signer signs and verifies cookie values.
type Signer interface {
	Sign(name, value string) string
	Verify(name, value, sig string) bool
}

// HMACSigner signs with HMAC-SHA256 over "name=value". The first key signs;
// every key verifies, so keys can be rotated by prepending a new one.
type HMACSigner struct {
	keys [][]byte
}

// NewHMACSigner copies keys; empty keys are skipped.
func NewHMACSigner(keys ...[]byte) *HMACSigner {
	s := &HMACSigner{}
	for _, k := range keys {
		if len(k) == 0 {
			continue
		}
		s.keys = append(s.keys, append([]byte(nil), k...))
	}
	return s
}

// Len returns the number of usable keys.
func (s *HMACSigner) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Sign returns the base64url signature, or "" when no keys are configured.
func (s *HMACSigner) Sign(name, value string) string {
	if s.Len() == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(mac(s.keys[0], name, value))
}

// Verify reports whether sig matches any key in the ring.
func (s *HMACSigner) Verify(name, value, sig string) bool {
	if s.Len() == 0 || sig == "" {
		return false
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	for _, k := range s.keys {
		if hmac.Equal(got, mac(k, name, value)) {
			return true
		}
	}
	return false
}

func mac(key []byte, name, value string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(name))
	h.Write([]byte{'='})
	h.Write([]byte(value))
	return h.Sum(nil)
}
