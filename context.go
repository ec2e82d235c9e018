package cookiesession

import (
	"context"

	"github.com/fairmanager/fm-cookie-session/session"
)

type bindingContextKey struct{}

// WithBinding attaches b to ctx. The middleware package does this for
// every request it wraps.
func WithBinding(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, bindingContextKey{}, b)
}

// BindingFromContext returns the binding attached by WithBinding.
func BindingFromContext(ctx context.Context) (*Binding, bool) {
	if ctx == nil {
		return nil, false
	}
	b, ok := ctx.Value(bindingContextKey{}).(*Binding)
	return b, ok && b != nil
}

// SessionFromContext loads the session of the attached binding. It returns
// nil when no binding is attached or the session was cleared.
func SessionFromContext(ctx context.Context) *session.Session {
	b, ok := BindingFromContext(ctx)
	if !ok {
		return nil
	}
	return b.Session()
}
