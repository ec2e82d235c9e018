package transport

import (
	"net/http"
)

// Cookies stores the value in a plain cookie. Signed options add a
// "<name>.sig" companion cookie carrying the signature.
type Cookies struct {
	signer Signer
}

// NewCookies returns a cookie transport. signer may be nil when every
// caller uses unsigned options.
func NewCookies(signer Signer) *Cookies {
	return &Cookies{signer: signer}
}

func (c *Cookies) canSign() bool {
	if c.signer == nil {
		return false
	}
	if h, ok := c.signer.(*HMACSigner); ok {
		return h.Len() > 0
	}
	return true
}

// Read returns the cookie value. With opts.Signed a missing or invalid
// companion signature reports the cookie as absent.
func (c *Cookies) Read(r *http.Request, name string, opts Options) (string, bool, error) {
	value, ok := readCookie(r, name)
	if !ok {
		return "", false, nil
	}
	if !opts.Signed {
		return value, true, nil
	}
	if !c.canSign() {
		return "", false, ErrUnsigned
	}

	sig, ok := readCookie(r, name+sigSuffix)
	if !ok || !c.signer.Verify(name, value, sig) {
		return "", false, nil
	}
	return value, true, nil
}

// Write sets the cookie, or deletes it (and its signature) when value is
// empty and opts.MaxAge is negative.
func (c *Cookies) Write(w http.ResponseWriter, name, value string, opts Options) error {
	if opts.Signed && !c.canSign() {
		return ErrUnsigned
	}
	if value == "" && opts.MaxAge >= 0 {
		opts = opts.Deletion()
	}

	cookie, err := buildCookie(name, value, opts)
	if err != nil {
		return err
	}

	var sigCookie *http.Cookie
	if opts.Signed {
		sig := ""
		if opts.MaxAge >= 0 {
			sig = c.signer.Sign(name, value)
			if sig == "" {
				return ErrSignature
			}
		}
		sigCookie, err = buildCookie(name+sigSuffix, sig, opts)
		if err != nil {
			return err
		}
	}

	if opts.Overwrite {
		dropSetCookie(w.Header(), name, name+sigSuffix)
	}
	http.SetCookie(w, cookie)
	if sigCookie != nil {
		http.SetCookie(w, sigCookie)
	}
	return nil
}
