package transport

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrSameSiteNoneNeedsSecure is returned when SameSite=None is requested
	// without the Secure attribute.
	ErrSameSiteNoneNeedsSecure = errors.New("transport: SameSite=None cookies must be secure")
	// ErrPrefixRules is returned when a __Secure- or __Host- cookie violates
	// its prefix requirements.
	ErrPrefixRules = errors.New("transport: cookie prefix rules violated")
	// ErrTooLarge is returned when name plus value exceed the browser limit.
	ErrTooLarge = errors.New("transport: cookie too large")
	// ErrUnsigned is returned when a signed operation has no signing keys.
	ErrUnsigned = errors.New("transport: signed cookie requested without keys")
	// ErrSignature is returned when a value cannot be signed.
	ErrSignature = errors.New("transport: signature failure")
)

// maxNamePlusValue is the common browser limit for a single cookie.
const maxNamePlusValue = 4096

const sigSuffix = ".sig"

// Options are the cookie attributes forwarded unchanged from configuration.
// A Write with an empty value and MaxAge < 0 deletes the cookie.
type Options struct {
	Signed      bool
	HTTPOnly    bool
	Overwrite   bool
	Secure      bool
	Partitioned bool
	Path        string
	Domain      string
	// MaxAge in seconds: 0 leaves the cookie a browser-session cookie,
	// negative expires it immediately.
	MaxAge   int
	SameSite http.SameSite
}

// Deletion returns a copy of o that expires the cookie.
func (o Options) Deletion() Options {
	o.MaxAge = -1
	return o
}

// Transport reads and writes the raw session cookie. Read reports ok=false
// for a missing cookie or one whose signature does not verify; err is only
// set for misconfiguration.
type Transport interface {
	Read(r *http.Request, name string, opts Options) (value string, ok bool, err error)
	Write(w http.ResponseWriter, name, value string, opts Options) error
}

// buildCookie applies opts to a cookie and validates browser rules.
func buildCookie(name, value string, opts Options) (*http.Cookie, error) {
	if opts.SameSite == http.SameSiteNoneMode && !opts.Secure {
		return nil, ErrSameSiteNoneNeedsSecure
	}
	if err := checkPrefix(name, opts); err != nil {
		return nil, err
	}
	if len(name)+len(value) > maxNamePlusValue {
		return nil, ErrTooLarge
	}

	cookie := &http.Cookie{
		Name:        name,
		Value:       value,
		Path:        opts.Path,
		Domain:      opts.Domain,
		Secure:      opts.Secure,
		HttpOnly:    opts.HTTPOnly,
		SameSite:    opts.SameSite,
		Partitioned: opts.Partitioned,
	}
	if opts.MaxAge < 0 {
		cookie.MaxAge = -1
		cookie.Expires = time.Unix(0, 0)
	} else if opts.MaxAge > 0 {
		cookie.MaxAge = opts.MaxAge
		cookie.Expires = time.Now().UTC().Add(time.Duration(opts.MaxAge) * time.Second)
	}
	return cookie, nil
}

func checkPrefix(name string, opts Options) error {
	switch {
	case strings.HasPrefix(name, "__Secure-"):
		if !opts.Secure {
			return ErrPrefixRules
		}
	case strings.HasPrefix(name, "__Host-"):
		if !opts.Secure || opts.Path != "/" || opts.Domain != "" {
			return ErrPrefixRules
		}
	}
	return nil
}

// dropSetCookie removes Set-Cookie headers already queued for any of names.
func dropSetCookie(h http.Header, names ...string) {
	existing := h.Values("Set-Cookie")
	if len(existing) == 0 {
		return
	}
	kept := existing[:0:0]
	for _, line := range existing {
		if !setCookieNamed(line, names) {
			kept = append(kept, line)
		}
	}
	if len(kept) == len(existing) {
		return
	}
	h.Del("Set-Cookie")
	for _, line := range kept {
		h.Add("Set-Cookie", line)
	}
}

func setCookieNamed(line string, names []string) bool {
	for _, n := range names {
		if strings.HasPrefix(line, n+"=") {
			return true
		}
	}
	return false
}

func readCookie(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(name)
	if err != nil || c == nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
