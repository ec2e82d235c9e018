package cookiesession

import (
	"net/http"
	"time"
)

// SecurityReport summarizes the cookie posture of a built engine. It never
// contains key material.
type SecurityReport struct {
	CookieName  string
	Signed      bool
	Format      string
	KeyCount    int
	Secure      bool
	HTTPOnly    bool
	SameSite    http.SameSite
	Partitioned bool
	MaxAge      time.Duration
	HostOnly    bool
	AuditActive bool
	LintHigh    []string
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	cfg := e.config
	return SecurityReport{
		CookieName:  cfg.Cookie.Name,
		Signed:      cfg.Signing.Signed,
		Format:      cfg.Signing.Format,
		KeyCount:    len(cfg.Signing.Keys),
		Secure:      cfg.Cookie.Secure,
		HTTPOnly:    cfg.Cookie.HTTPOnly,
		SameSite:    cfg.Cookie.SameSite,
		Partitioned: cfg.Cookie.Partitioned,
		MaxAge:      cfg.Cookie.MaxAge,
		HostOnly:    cfg.Cookie.Domain == "",
		AuditActive: e.audit != nil,
		LintHigh:    cfg.Lint().BySeverity(LintHigh).Codes(),
	}
}
