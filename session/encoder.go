package session

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedPayload is returned by Decode for any cookie value that is not
// a valid encoding of a JSON object.
var ErrMalformedPayload = errors.New("malformed session payload")

// MaxEncodedSize bounds the inputs Decode is willing to look at. Browsers cap
// a single cookie at roughly 4 KiB, so anything larger never came from us.
const MaxEncodedSize = 8 << 10

var emptyObject = []byte("{}")

// Encode serializes payload into its transport form: base64url (unpadded) of
// the JSON object. Map keys are emitted in sorted order at every depth, so
// the same content always yields the same string.
func Encode(payload map[string]any) (string, error) {
	data := emptyObject
	if len(payload) > 0 {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(payload); err != nil {
			return "", fmt.Errorf("encode session payload: %w", err)
		}
		data = bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a value produced by Encode. Padded standard base64 is also
// accepted so cookies minted by older deployments still load; those
// re-encode to the unpadded URL alphabet and are rewritten on next save.
//
// Numbers are decoded as json.Number to keep their text stable across a
// decode/encode cycle.
func Decode(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty value", ErrMalformedPayload)
	}
	if len(raw) > MaxEncodedSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit", ErrMalformedPayload, len(raw))
	}

	data, err := decodeBase64(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedPayload)
	}

	payload, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}
	return payload, nil
}

func decodeBase64(raw string) ([]byte, error) {
	if strings.ContainsAny(raw, "+/=") {
		return base64.StdEncoding.DecodeString(raw)
	}
	return base64.RawURLEncoding.DecodeString(raw)
}
