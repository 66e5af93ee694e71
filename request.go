package strata

import (
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Jack4Code/strata/accepts"
)

// RequestFacet is the read-oriented surface a Context forwards to its Request.
type RequestFacet interface {
	Header() http.Header
	Headers() http.Header
	URL() string
	SetURL(string)
	Method() string
	SetMethod(string)
	Path() string
	SetPath(string)
	Query() url.Values
	SetQuery(url.Values)
	Querystring() string
	SetQuerystring(string)
	Search() string
	SetSearch(string)
	Origin() string
	Href() string
	Host() string
	Hostname() string
	URLObject() *url.URL
	Protocol() string
	Secure() bool
	IPs() []string
	IP() string
	SetIP(string)
	Subdomains() []string
	Fresh() bool
	Stale() bool
	Idempotent() bool
	Socket() Socket
	Get(field string) string
	Is(types ...string) string
	Accepts(types ...string) string
	AcceptsEncodings(encodings ...string) string
	AcceptsCharsets(charsets ...string) string
	AcceptsLanguages(langs ...string) string
}

var _ RequestFacet = (*Request)(nil)

// Socket describes the connection a request arrived on.
type Socket struct {
	RemoteAddr string
	LocalAddr  net.Addr
}

// Request is the per-request read view over the raw *http.Request.
type Request struct {
	App         *Application
	Req         *http.Request
	Res         *ResponseWriter
	Ctx         *Context
	Response    *Response
	OriginalURL string

	ip     string
	accept *accepts.Accepts
	parsed *url.URL // memoized URLObject
}

// Header returns the request headers.
func (r *Request) Header() http.Header {
	return r.Req.Header
}

// Headers is an alias of Header.
func (r *Request) Headers() http.Header {
	return r.Req.Header
}

// URL returns the request target (path and query) as received or as last set.
func (r *Request) URL() string {
	return requestURI(r.Req)
}

// SetURL rewrites the request target, e.g. for internal rewrites.
func (r *Request) SetURL(raw string) {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return
	}
	r.Req.URL = u
	r.Req.RequestURI = raw
}

// Method returns the request method.
func (r *Request) Method() string {
	return r.Req.Method
}

// SetMethod overrides the request method.
func (r *Request) SetMethod(method string) {
	r.Req.Method = method
}

// Path returns the request pathname.
func (r *Request) Path() string {
	return r.Req.URL.Path
}

// SetPath changes the pathname, keeping the query string.
func (r *Request) SetPath(path string) {
	if r.Req.URL.Path == path {
		return
	}
	r.Req.URL.Path = path
	r.Req.URL.RawPath = ""
	r.Req.RequestURI = r.Req.URL.RequestURI()
}

// Query returns the parsed query string. The result is a fresh copy.
func (r *Request) Query() url.Values {
	return r.Req.URL.Query()
}

// SetQuery replaces the query string.
func (r *Request) SetQuery(q url.Values) {
	r.SetQuerystring(q.Encode())
}

// Querystring returns the raw query string without "?".
func (r *Request) Querystring() string {
	return r.Req.URL.RawQuery
}

// SetQuerystring replaces the raw query string.
func (r *Request) SetQuerystring(qs string) {
	r.Req.URL.RawQuery = strings.TrimPrefix(qs, "?")
	r.Req.RequestURI = r.Req.URL.RequestURI()
}

// Search returns the query string with a leading "?", or "".
func (r *Request) Search() string {
	if r.Req.URL.RawQuery == "" {
		return ""
	}
	return "?" + r.Req.URL.RawQuery
}

// SetSearch is SetQuerystring accepting a leading "?".
func (r *Request) SetSearch(search string) {
	r.SetQuerystring(search)
}

// Origin returns protocol and host, e.g. "https://example.com".
func (r *Request) Origin() string {
	return r.Protocol() + "://" + r.Host()
}

// Href returns the full request URL including protocol and host.
func (r *Request) Href() string {
	if u, err := url.Parse(r.OriginalURL); err == nil && u.IsAbs() {
		return r.OriginalURL
	}
	return r.Origin() + r.OriginalURL
}

// Host returns the host (with port) honoring X-Forwarded-Host when the
// application trusts proxies.
func (r *Request) Host() string {
	if r.App.proxy {
		if h := firstListValue(r.Req.Header.Get("X-Forwarded-Host")); h != "" {
			return h
		}
	}
	return r.Req.Host
}

// Hostname returns Host without the port.
func (r *Request) Hostname() string {
	host := r.Host()
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "[") {
		if end := strings.IndexByte(host, ']'); end > 0 {
			return host[1:end]
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// URLObject returns the absolute request URL parsed once.
func (r *Request) URLObject() *url.URL {
	if r.parsed == nil {
		u, err := url.Parse(r.Origin() + r.OriginalURL)
		if err != nil {
			u = &url.URL{}
		}
		r.parsed = u
	}
	return r.parsed
}

// Protocol returns "https" or "http". With proxy trust enabled
// X-Forwarded-Proto is consulted.
func (r *Request) Protocol() string {
	if r.Req.TLS != nil {
		return "https"
	}
	if !r.App.proxy {
		return "http"
	}
	if p := firstListValue(r.Req.Header.Get("X-Forwarded-Proto")); p != "" {
		return strings.ToLower(p)
	}
	return "http"
}

// Secure reports whether the protocol is https.
func (r *Request) Secure() bool {
	return r.Protocol() == "https"
}

// IPs returns the X-Forwarded-For chain when proxies are trusted, client first.
func (r *Request) IPs() []string {
	if !r.App.proxy {
		return nil
	}
	raw := r.Req.Header.Get("X-Forwarded-For")
	if raw == "" {
		return nil
	}
	var ips []string
	for _, ip := range strings.Split(raw, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

// IP returns the client address computed when the context was built.
func (r *Request) IP() string {
	return r.ip
}

// SetIP overrides the client address.
func (r *Request) SetIP(ip string) {
	r.ip = ip
}

// Subdomains returns the subdomains in reverse order, skipping the
// application's subdomain offset. "tobi.ferrets.example.com" with offset 2
// yields ["ferrets", "tobi"]. IP hosts have no subdomains.
func (r *Request) Subdomains() []string {
	hostname := r.Hostname()
	if hostname == "" || net.ParseIP(hostname) != nil {
		return []string{}
	}
	parts := strings.Split(hostname, ".")
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	if r.App.subdomainOffset >= len(parts) {
		return []string{}
	}
	return parts[r.App.subdomainOffset:]
}

// Fresh reports whether a conditional GET/HEAD can be answered with 304.
func (r *Request) Fresh() bool {
	method := r.Req.Method
	if method != http.MethodGet && method != http.MethodHead {
		return false
	}
	s := r.Response.Status()
	if (s >= 200 && s < 300) || s == http.StatusNotModified {
		return isFresh(r.Req.Header, r.Response.Header())
	}
	return false
}

// Stale is the inverse of Fresh.
func (r *Request) Stale() bool {
	return !r.Fresh()
}

// Idempotent reports whether the method is idempotent.
func (r *Request) Idempotent() bool {
	switch r.Req.Method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete,
		http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// Socket returns the connection addresses.
func (r *Request) Socket() Socket {
	s := Socket{RemoteAddr: r.Req.RemoteAddr}
	if addr, ok := r.Req.Context().Value(http.LocalAddrContextKey).(net.Addr); ok {
		s.LocalAddr = addr
	}
	return s
}

// Charset returns the charset parameter of Content-Type.
func (r *Request) Charset() string {
	_, params, err := mime.ParseMediaType(r.Req.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return params["charset"]
}

// Length returns Content-Length when present.
func (r *Request) Length() (int64, bool) {
	v := r.Req.Header.Get("Content-Length")
	if v == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Type returns the request media type without parameters.
func (r *Request) Type() string {
	return mediaType(r.Req.Header.Get("Content-Type"))
}

// Get returns a request header. "Referer" and "Referrer" are interchangeable.
func (r *Request) Get(field string) string {
	switch strings.ToLower(field) {
	case "referer", "referrer":
		return r.Req.Header.Get("Referer")
	}
	return r.Req.Header.Get(field)
}

// Is reports which of types matches the request Content-Type, returning the
// matching type or "". Requests without a body never match. With no types the
// request media type is returned.
func (r *Request) Is(types ...string) string {
	if !hasBody(r.Req) {
		return ""
	}
	return typeIs(r.Type(), types)
}

// Accepts returns the best of types for the Accept header, or "".
func (r *Request) Accepts(types ...string) string {
	return r.accept.Type(types...)
}

// AcceptsEncodings returns the best encoding, or "".
func (r *Request) AcceptsEncodings(encodings ...string) string {
	return r.accept.Encoding(encodings...)
}

// AcceptsCharsets returns the best charset, or "".
func (r *Request) AcceptsCharsets(charsets ...string) string {
	return r.accept.Charset(charsets...)
}

// AcceptsLanguages returns the best language, or "".
func (r *Request) AcceptsLanguages(langs ...string) string {
	return r.accept.Language(langs...)
}

// Inspect returns a diagnostic snapshot.
func (r *Request) Inspect() map[string]any {
	if r == nil {
		return nil
	}
	return map[string]any{
		"method": r.Method(),
		"url":    r.URL(),
		"header": r.Header(),
	}
}

func hasBody(req *http.Request) bool {
	if req.ContentLength > 0 || len(req.TransferEncoding) > 0 {
		return true
	}
	return req.Header.Get("Transfer-Encoding") != "" ||
		(req.Header.Get("Content-Length") != "" && req.Header.Get("Content-Length") != "0")
}

func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

// typeIs matches actual against type shorthands ("json"), full types and
// wildcards ("text/*", "*/json", "+json").
func typeIs(actual string, types []string) string {
	if actual == "" {
		return ""
	}
	if len(types) == 0 {
		return actual
	}
	at, as, _ := strings.Cut(actual, "/")
	for _, t := range types {
		if strings.HasPrefix(t, "+") {
			if strings.HasSuffix(as, t) {
				return actual
			}
			continue
		}
		expected := accepts.Lookup(t)
		if expected == "" {
			continue
		}
		et, es, _ := strings.Cut(expected, "/")
		typeOK := et == "*" || et == at
		subOK := es == "*" || es == as || (strings.HasPrefix(es, "*+") && strings.HasSuffix(as, es[1:]))
		if typeOK && subOK {
			if strings.Contains(t, "*") {
				return actual
			}
			return t
		}
	}
	return ""
}

func requestURI(req *http.Request) string {
	if req.RequestURI != "" {
		return req.RequestURI
	}
	return req.URL.RequestURI()
}

func firstListValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}
