package envconfig

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	cookiesession "github.com/fairmanager/fm-cookie-session"
	"github.com/fairmanager/fm-cookie-session/keyring"
)

// DeriveInfo prefixes the HKDF info string used for short secrets; the
// signing format is appended so hmac and jwt keys differ.
const DeriveInfo = "cookiesession/signing/"

// Env is the process environment understood by the bundled binaries.
type Env struct {
	CookieName   string        `env:"COOKIE_SESSION_NAME"      envDefault:"session"`
	Keys         []string      `env:"COOKIE_SESSION_KEYS"      envSeparator:","`
	Signed       bool          `env:"COOKIE_SESSION_SIGNED"    envDefault:"true"`
	Format       string        `env:"COOKIE_SESSION_FORMAT"    envDefault:"hmac"`
	Secure       bool          `env:"COOKIE_SESSION_SECURE"`
	SameSite     string        `env:"COOKIE_SESSION_SAMESITE"  envDefault:"lax"`
	MaxAge       time.Duration `env:"COOKIE_SESSION_MAX_AGE"   envDefault:"24h"`
	Audit        bool          `env:"COOKIE_SESSION_AUDIT"`
	Metrics      bool          `env:"COOKIE_SESSION_METRICS"   envDefault:"true"`
	RedisAddr    string        `env:"COOKIE_SESSION_REDIS_ADDR"`
	RedisPrefix  string        `env:"COOKIE_SESSION_REDIS_PREFIX" envDefault:"cs"`
	ListenAddr   string        `env:"COOKIE_SESSION_LISTEN_ADDR"  envDefault:":8080"`
	MetricsRoute string        `env:"COOKIE_SESSION_METRICS_ROUTE" envDefault:"/metrics"`
}

// Load reads Env from the process environment.
func Load() (Env, error) {
	return parse(env.Options{})
}

// LoadFrom reads Env from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Env, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, opts); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// Config maps e onto an engine configuration. Keys shorter than
// keyring.KeySize are expanded with HKDF. The result is not validated; the
// builder does that.
func (e Env) Config() (cookiesession.Config, error) {
	cfg := cookiesession.DefaultConfig()
	cfg.Cookie.Name = e.CookieName
	cfg.Cookie.Secure = e.Secure
	cfg.Cookie.MaxAge = e.MaxAge

	sameSite, err := parseSameSite(e.SameSite)
	if err != nil {
		return cookiesession.Config{}, err
	}
	cfg.Cookie.SameSite = sameSite

	cfg.Signing.Signed = e.Signed
	cfg.Signing.Format = strings.ToLower(strings.TrimSpace(e.Format))
	cfg.Signing.Keys = nil
	for _, k := range e.Keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		key, err := signingKey(k, cfg.Signing.Format)
		if err != nil {
			return cookiesession.Config{}, err
		}
		cfg.Signing.Keys = append(cfg.Signing.Keys, key)
	}

	cfg.Audit.Enabled = e.Audit
	cfg.Metrics.Enabled = e.Metrics
	cfg.Metrics.EnableLatencyHistograms = e.Metrics
	return cfg, nil
}

// signingKey expands secrets shorter than keyring.KeySize with HKDF so an
// operator can configure a passphrase. Longer secrets are used as given.
func signingKey(secret, format string) ([]byte, error) {
	if len(secret) >= keyring.KeySize {
		return []byte(secret), nil
	}
	key, err := keyring.Derive([]byte(secret), DeriveInfo+format)
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return key, nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("parse env: unknown same-site mode %q", v)
	}
}
