package middleware

import (
	"net/http"

	cookiesession "github.com/fairmanager/fm-cookie-session"
	"github.com/fairmanager/fm-cookie-session/session"
)

// Sessions binds a session accessor to every request and commits it right
// before the response header is sent: on the first WriteHeader with a final
// status, the first Write, a Flush, or after the handler returns without
// writing.
func Sessions(engine *cookiesession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			b := engine.Bind(w, r)
			hw := &hookWriter{ResponseWriter: w, binding: b}
			next.ServeHTTP(hw, r.WithContext(cookiesession.WithBinding(r.Context(), b)))
			b.Commit()
		})
	}
}

// SessionFromRequest returns the request's session, or nil when the
// request did not pass through Sessions or the session was cleared.
func SessionFromRequest(r *http.Request) *session.Session {
	if r == nil {
		return nil
	}
	return cookiesession.SessionFromContext(r.Context())
}

// BindingFromRequest returns the accessor bound by Sessions.
func BindingFromRequest(r *http.Request) (*cookiesession.Binding, bool) {
	if r == nil {
		return nil, false
	}
	return cookiesession.BindingFromContext(r.Context())
}

// hookWriter runs the binding's commit before the header leaves.
type hookWriter struct {
	http.ResponseWriter
	binding *cookiesession.Binding
}

func (w *hookWriter) WriteHeader(code int) {
	// Informational responses keep the header open.
	if code >= 200 || code == http.StatusSwitchingProtocols {
		w.binding.Commit()
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *hookWriter) Write(p []byte) (int, error) {
	w.binding.Commit()
	return w.ResponseWriter.Write(p)
}

func (w *hookWriter) Flush() {
	w.binding.Commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *hookWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
