package cookiesession

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fairmanager/fm-cookie-session/transport"
)

// Config is the complete engine configuration. Obtain one from
// [DefaultConfig] and override fields before passing it to
// [Builder.WithConfig].
type Config struct {
	Cookie  CookieConfig
	Signing SigningConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig holds the cookie attributes forwarded to the transport.
type CookieConfig struct {
	Name   string
	Path   string
	Domain string
	// MaxAge of zero issues browser-session cookies.
	MaxAge      time.Duration
	SameSite    http.SameSite
	Secure      bool
	HTTPOnly    bool
	Overwrite   bool
	Partitioned bool
}

/*
====================================
SIGNING CONFIG
====================================
*/

// Signing formats.
const (
	FormatHMAC = "hmac"
	FormatJWT  = "jwt"
)

// SigningConfig selects the default transport and its key material.
type SigningConfig struct {
	Signed bool
	// Keys is the key ring, newest first. A key source passed to the builder
	// takes precedence when it returns keys.
	Keys   [][]byte
	Format string // "hmac" (default) or "jwt"
	Issuer string
	// Leeway is the JWT clock skew allowance.
	Leeway         time.Duration
	KeyLoadTimeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the default configuration. It has no signing keys,
// so Build fails until keys are supplied or Signed is turned off.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Cookie: CookieConfig{
			Name:      "session",
			Path:      "/",
			MaxAge:    24 * time.Hour,
			SameSite:  http.SameSiteLaxMode,
			Secure:    false,
			HTTPOnly:  true,
			Overwrite: true,
		},
		Signing: SigningConfig{
			Signed:         true,
			Format:         FormatHMAC,
			KeyLoadTimeout: 2 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig returns a preset for HTTPS deployments: host-only
// "__Host-" cookie, Secure, Strict SameSite and an eight hour lifetime.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.Cookie.Name = "__Host-session"
	cfg.Cookie.Secure = true
	cfg.Cookie.SameSite = http.SameSiteStrictMode
	cfg.Cookie.MaxAge = 8 * time.Hour
	cfg.Audit.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Signing.Keys = cloneKeys(cfg.Signing.Keys)
	return out
}

func cloneKeys(keys [][]byte) [][]byte {
	if len(keys) == 0 {
		return nil
	}
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if b := cloneBytes(k); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// options converts the cookie settings into transport options.
func (c *Config) options() transport.Options {
	return transport.Options{
		Signed:      c.Signing.Signed,
		HTTPOnly:    c.Cookie.HTTPOnly,
		Overwrite:   c.Cookie.Overwrite,
		Secure:      c.Cookie.Secure,
		Partitioned: c.Cookie.Partitioned,
		Path:        c.Cookie.Path,
		Domain:      c.Cookie.Domain,
		MaxAge:      int(c.Cookie.MaxAge / time.Second),
		SameSite:    c.Cookie.SameSite,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for contradictions. Key presence is
// checked by Build, after the key source has been consulted.
func (c *Config) Validate() error {
	// Cookie
	name := strings.TrimSpace(c.Cookie.Name)
	if name == "" {
		return errors.New("Cookie Name must be set")
	}
	if name != c.Cookie.Name || strings.ContainsAny(name, " \t\r\n;,=\"") {
		return errors.New("Cookie Name contains invalid characters")
	}
	if c.Cookie.MaxAge < 0 {
		return errors.New("Cookie MaxAge must be >= 0")
	}
	if c.Cookie.MaxAge > 0 && c.Cookie.MaxAge < time.Second {
		return errors.New("Cookie MaxAge must be at least one second")
	}
	switch c.Cookie.SameSite {
	case http.SameSiteDefaultMode, http.SameSiteLaxMode, http.SameSiteStrictMode:
	case http.SameSiteNoneMode:
		if !c.Cookie.Secure {
			return errors.New("Cookie SameSite=None requires Secure")
		}
	default:
		return errors.New("Cookie SameSite is invalid")
	}
	if c.Cookie.Partitioned && !c.Cookie.Secure {
		return errors.New("Cookie Partitioned requires Secure")
	}
	if strings.HasPrefix(name, "__Secure-") && !c.Cookie.Secure {
		return errors.New("__Secure- cookie requires Secure")
	}
	if strings.HasPrefix(name, "__Host-") {
		if !c.Cookie.Secure || c.Cookie.Path != "/" || c.Cookie.Domain != "" {
			return errors.New("__Host- cookie requires Secure, Path=/ and no Domain")
		}
	}

	// Signing
	switch c.Signing.Format {
	case FormatHMAC:
	case FormatJWT:
		if !c.Signing.Signed {
			return errors.New("jwt format requires Signed")
		}
	default:
		return errors.New("unsupported signing format")
	}
	if c.Signing.Leeway < 0 || c.Signing.Leeway > 2*time.Minute {
		return errors.New("Signing Leeway must be between 0 and 2m")
	}
	if c.Signing.KeyLoadTimeout < 0 {
		return errors.New("Signing KeyLoadTimeout must be >= 0")
	}

	// Audit
	if c.Audit.BufferSize < 0 {
		return errors.New("Audit BufferSize must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize == 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
