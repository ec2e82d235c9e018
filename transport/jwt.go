package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTConfig configures the token cookie format.
type JWTConfig struct {
	// Keys is the HS256 key ring; the first key signs.
	Keys   [][]byte
	Issuer string
	Leeway time.Duration
}

// JWT stores the value as the "p" claim of an HS256 token. The token header
// carries a key id so rotated keys keep verifying.
type JWT struct {
	issuer  string
	leeway  time.Duration
	signKID string
	keys    map[string][]byte
}

type payloadClaims struct {
	Payload string `json:"p"`
	jwt.RegisteredClaims
}

// NewJWT validates cfg and returns a token transport.
func NewJWT(cfg JWTConfig) (*JWT, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("transport: invalid jwt leeway")
	}
	t := &JWT{
		issuer: strings.TrimSpace(cfg.Issuer),
		leeway: cfg.Leeway,
		keys:   make(map[string][]byte, len(cfg.Keys)),
	}
	for _, k := range cfg.Keys {
		if len(k) == 0 {
			continue
		}
		kid := KeyID(k)
		if t.signKID == "" {
			t.signKID = kid
		}
		t.keys[kid] = append([]byte(nil), k...)
	}
	if t.signKID == "" {
		return nil, ErrUnsigned
	}
	return t, nil
}

// KeyID derives the stable identifier placed in the token header for key.
func KeyID(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}

// Read verifies the token cookie and returns its payload claim. Tokens that
// fail verification or have expired are reported as absent.
func (t *JWT) Read(r *http.Request, name string, _ Options) (string, bool, error) {
	raw, ok := readCookie(r, name)
	if !ok {
		return "", false, nil
	}

	claims, err := t.parse(raw)
	if err != nil || claims.Payload == "" {
		return "", false, nil
	}
	return claims.Payload, true, nil
}

func (t *JWT) parse(raw string) (*payloadClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if t.leeway > 0 {
		options = append(options, jwt.WithLeeway(t.leeway))
	}
	if t.issuer != "" {
		options = append(options, jwt.WithIssuer(t.issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(raw, &payloadClaims{}, func(tok *jwt.Token) (interface{}, error) {
		kid, _ := tok.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := t.keys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*payloadClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Write signs value into a token cookie, or deletes the cookie when value
// is empty.
func (t *JWT) Write(w http.ResponseWriter, name, value string, opts Options) error {
	if value == "" {
		opts = opts.Deletion()
	}

	token := ""
	if opts.MaxAge >= 0 {
		var err error
		token, err = t.sign(value, opts.MaxAge)
		if err != nil {
			return err
		}
	}

	cookie, err := buildCookie(name, token, opts)
	if err != nil {
		return err
	}
	if opts.Overwrite {
		dropSetCookie(w.Header(), name)
	}
	http.SetCookie(w, cookie)
	return nil
}

func (t *JWT) sign(value string, maxAge int) (string, error) {
	now := time.Now()
	claims := payloadClaims{
		Payload: value,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   t.issuer,
		},
	}
	if maxAge > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(maxAge) * time.Second))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = t.signKID

	signed, err := token.SignedString(t.keys[t.signKID])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return signed, nil
}
