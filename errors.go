package cookiesession

import "errors"

var (
	// ErrInvalidSessionValue is returned by SetSession when the value is not
	// nil and not an object. The slot is left untouched.
	ErrInvalidSessionValue = errors.New("session value must be an object or nil")
	// ErrMissingSigningKeys is returned by Build when signed cookies are
	// configured and no key material is available.
	ErrMissingSigningKeys = errors.New("signed cookies require signing keys")
	// ErrBuilderUsed is returned by a second call to Build.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrEngineNotReady is returned when a nil or unbuilt engine is used.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrKeySourceFailed wraps errors from the configured key source.
	ErrKeySourceFailed = errors.New("signing key source failed")
)
