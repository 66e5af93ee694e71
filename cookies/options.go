package cookies

import (
	"net/http"
	"time"
)

// Options configures a cookie read or write.
type Options struct {
	Path      string
	Domain    string
	MaxAge    int
	Expires   time.Time
	Secure    bool
	HTTPOnly  bool
	SameSite  http.SameSite
	Signed    bool // defaults to true when the jar has keys
	Overwrite bool // replace Set-Cookie headers already queued for the same name
}

// Option is a functional option for cookie operations.
type Option func(*Options)

// WithPath sets the cookie path.
func WithPath(path string) Option {
	return func(o *Options) {
		o.Path = path
	}
}

// WithDomain sets the cookie domain.
func WithDomain(domain string) Option {
	return func(o *Options) {
		o.Domain = domain
	}
}

// WithMaxAge sets max-age in seconds.
func WithMaxAge(seconds int) Option {
	return func(o *Options) {
		o.MaxAge = seconds
	}
}

// WithExpires sets an absolute expiry.
func WithExpires(t time.Time) Option {
	return func(o *Options) {
		o.Expires = t
	}
}

// WithSecure sets the Secure attribute.
func WithSecure(secure bool) Option {
	return func(o *Options) {
		o.Secure = secure
	}
}

// WithHTTPOnly sets the HttpOnly attribute.
func WithHTTPOnly(httpOnly bool) Option {
	return func(o *Options) {
		o.HTTPOnly = httpOnly
	}
}

// WithSameSite sets the SameSite attribute.
func WithSameSite(sameSite http.SameSite) Option {
	return func(o *Options) {
		o.SameSite = sameSite
	}
}

// WithSigned overrides signing.
func WithSigned(signed bool) Option {
	return func(o *Options) {
		o.Signed = signed
	}
}

// WithOverwrite drops earlier Set-Cookie headers for the same name.
func WithOverwrite() Option {
	return func(o *Options) {
		o.Overwrite = true
	}
}
