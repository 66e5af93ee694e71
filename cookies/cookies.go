// Package cookies reads and writes request cookies, optionally signed with a
// rotating key list. A signed cookie "name" is accompanied by "name.sig".
package cookies

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInsecure is returned when a Secure cookie is set on a plain HTTP connection.
	ErrInsecure = errors.New("cookies: cannot send secure cookie over unencrypted connection")

	// ErrNoKeys is returned when a signed cookie is requested without keys.
	ErrNoKeys = errors.New("cookies: keys required for signed cookies")
)

const sigSuffix = ".sig"

// Jar is bound to one request/response pair.
type Jar struct {
	req    *http.Request
	w      http.ResponseWriter
	keys   *Keys
	secure bool
}

// New returns a jar. keys may be nil; secure tells whether the connection is
// encrypted (directly or behind a trusted proxy).
func New(r *http.Request, w http.ResponseWriter, keys *Keys, secure bool) *Jar {
	return &Jar{req: r, w: w, keys: keys, secure: secure}
}

// Get returns the cookie value. Cookies are verified when the jar has keys
// unless WithSigned(false) is given. A cookie whose signature was produced by
// an older key is re-signed with the current one; a bad signature clears the
// signature cookie and reports the cookie as missing.
func (j *Jar) Get(name string, opts ...Option) (string, bool) {
	o := j.options(opts)

	c, err := j.req.Cookie(name)
	if err != nil {
		return "", false
	}
	if !o.Signed {
		return c.Value, true
	}
	if j.keys == nil {
		return "", false
	}

	sigName := name + sigSuffix
	sig, err := j.req.Cookie(sigName)
	if err != nil {
		return "", false
	}

	data := name + "=" + c.Value
	switch idx := j.keys.Index(data, sig.Value); {
	case idx < 0:
		_ = j.Set(sigName, "", WithSigned(false), WithPath(o.Path))
		return "", false
	case idx > 0:
		_ = j.Set(sigName, j.keys.Sign(data), WithSigned(false), WithPath(o.Path))
	}
	return c.Value, true
}

// Set writes a cookie. An empty value deletes it.
func (j *Jar) Set(name, value string, opts ...Option) error {
	o := j.options(opts)

	if o.Secure && !j.secure {
		return ErrInsecure
	}
	if o.Signed && j.keys == nil {
		return ErrNoKeys
	}

	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		MaxAge:   o.MaxAge,
		Expires:  o.Expires,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	}
	if value == "" {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}

	j.push(c, o.Overwrite)

	if o.Signed {
		sig := *c
		sig.Name = name + sigSuffix
		sig.Value = j.keys.Sign(name + "=" + value)
		if value == "" {
			sig.Value = ""
		}
		j.push(&sig, o.Overwrite)
	}
	return nil
}

func (j *Jar) push(c *http.Cookie, overwrite bool) {
	h := j.w.Header()
	if overwrite {
		prefix := c.Name + "="
		var kept []string
		for _, v := range h.Values("Set-Cookie") {
			if !strings.HasPrefix(v, prefix) {
				kept = append(kept, v)
			}
		}
		h.Del("Set-Cookie")
		for _, v := range kept {
			h.Add("Set-Cookie", v)
		}
	}
	if v := c.String(); v != "" {
		h.Add("Set-Cookie", v)
	}
}

func (j *Jar) options(opts []Option) Options {
	o := Options{
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
		Signed:   j.keys != nil,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
