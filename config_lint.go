package cookiesession

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a valid but questionable configuration choice.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the list of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (r LintResult) AsError(min LintSeverity) error {
	hits := r.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

const longMaxAge = 30 * 24 * time.Hour

// Lint reports settings that validate but weaken the session cookie.
func (c Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Signing.Signed {
		add("unsigned_cookies", LintHigh, "session cookies are not signed and can be forged by clients")
	}
	if c.Signing.Signed && len(c.Signing.Keys) == 1 {
		add("single_signing_key", LintInfo, "one signing key configured; rotation drops every live session")
	}
	if !c.Cookie.Secure {
		add("cookie_not_secure", LintWarn, "session cookie is sent over plain HTTP")
	}
	if !c.Cookie.HTTPOnly {
		add("cookie_not_httponly", LintWarn, "session cookie is readable from scripts")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode {
		add("samesite_none", LintWarn, "session cookie is sent on cross-site requests")
	}
	if c.Cookie.MaxAge > longMaxAge {
		add("max_age_long", LintInfo, "session cookie lives longer than 30 days")
	}
	if !c.Cookie.Overwrite {
		add("overwrite_disabled", LintInfo, "earlier Set-Cookie headers for the session are kept")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "session cookie write failures are only logged")
	}

	return ws
}
