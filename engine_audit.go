package cookiesession

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/fairmanager/fm-cookie-session/keyring"
	"github.com/fairmanager/fm-cookie-session/session"
	"github.com/fairmanager/fm-cookie-session/transport"
)

const (
	auditEventCookieWritten     = "session_cookie_written"
	auditEventCookieDeleted     = "session_cookie_deleted"
	auditEventCookieWriteFailed = "session_cookie_write_failed"
	auditEventCookieMalformed   = "session_cookie_malformed"
	auditEventCookieReadFailed  = "session_cookie_read_failed"
)

// AuditErrorCode is the stable error classification placed in
// AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrMalformed        AuditErrorCode = "malformed_payload"
	auditErrEncode           AuditErrorCode = "encode_failed"
	auditErrTooLarge         AuditErrorCode = "cookie_too_large"
	auditErrCookieAttributes AuditErrorCode = "cookie_attributes"
	auditErrUnsigned         AuditErrorCode = "unsigned"
	auditErrSignature        AuditErrorCode = "signature_failed"
	auditErrKeys             AuditErrorCode = "keys_unavailable"
	auditErrInternal         AuditErrorCode = "internal_error"
)

// errEncode marks commit-time serialization failures.
var errEncode = errors.New("session encode failed")

func (e *Engine) emitAudit(
	r *http.Request,
	eventType string,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Cookie:    e.config.Cookie.Name,
		Success:   success,
		Metadata:  metadata,
	}
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
		event.Method = r.Method
		if r.URL != nil {
			event.Path = r.URL.Path
		}
		event.IP = remoteIP(r)
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, session.ErrMalformedPayload):
		return auditErrMalformed
	case errors.Is(err, errEncode):
		return auditErrEncode
	case errors.Is(err, transport.ErrTooLarge):
		return auditErrTooLarge
	case errors.Is(err, transport.ErrSameSiteNoneNeedsSecure),
		errors.Is(err, transport.ErrPrefixRules):
		return auditErrCookieAttributes
	case errors.Is(err, transport.ErrUnsigned):
		return auditErrUnsigned
	case errors.Is(err, transport.ErrSignature):
		return auditErrSignature
	case errors.Is(err, keyring.ErrNoKeys),
		errors.Is(err, keyring.ErrKeyStoreUnavailable):
		return auditErrKeys
	default:
		return auditErrInternal
	}
}
