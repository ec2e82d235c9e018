package keyring

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrNoKeys is returned when a source holds no usable key.
	ErrNoKeys = errors.New("keyring: no signing keys")
	// ErrKeyStoreUnavailable wraps backend failures while loading keys.
	ErrKeyStoreUnavailable = errors.New("keyring: key store unavailable")
)

// KeySize is the length of generated and derived keys.
const KeySize = 32

// Source provides the signing key ring, newest key first.
type Source interface {
	Keys(ctx context.Context) ([][]byte, error)
}

// Static is a fixed, in-memory key ring.
type Static [][]byte

// Keys returns copies of the non-empty keys in s.
func (s Static) Keys(context.Context) ([][]byte, error) {
	out := make([][]byte, 0, len(s))
	for _, k := range s {
		if len(k) == 0 {
			continue
		}
		out = append(out, append([]byte(nil), k...))
	}
	if len(out) == 0 {
		return nil, ErrNoKeys
	}
	return out, nil
}

// Key is a generated signing key. ID is safe to log; Secret is not.
type Key struct {
	ID     string
	Secret []byte
}

// Generate returns a new random key.
func Generate() (Key, error) {
	secret := make([]byte, KeySize)
	if _, err := rand.Read(secret); err != nil {
		return Key{}, fmt.Errorf("keyring: generate key: %w", err)
	}
	return Key{ID: uuid.NewString(), Secret: secret}, nil
}

// Derive expands secret into a KeySize signing key bound to info with
// HKDF-SHA256. Different info strings yield independent keys.
func Derive(secret []byte, info string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, ErrNoKeys
	}
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("keyring: derive key: %w", err)
	}
	return out, nil
}
