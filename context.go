package strata

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/Jack4Code/strata/accepts"
	"github.com/Jack4Code/strata/cookies"
)

// Context is the unit of work for one request/response pair. It forwards the
// common members of its Request and Response facets so handlers can use a
// single value, and it implements context.Context by delegating to the
// request's context.
//
// A Context is never shared between requests and must not be retained after
// the handler returns.
type Context struct {
	App      *Application
	Req      *http.Request
	Res      *ResponseWriter
	Request  *Request
	Response *Response

	OriginalURL string
	Cookies     *cookies.Jar
	Accept      *accepts.Accepts

	// State carries application data between middleware.
	State State

	// Respond can be set to false by middleware that writes to Res directly.
	Respond bool
}

// Deadline implements context.Context.
func (c *Context) Deadline() (time.Time, bool) {
	return c.Req.Context().Deadline()
}

// Done implements context.Context.
func (c *Context) Done() <-chan struct{} {
	return c.Req.Context().Done()
}

// Err implements context.Context.
func (c *Context) Err() error {
	return c.Req.Context().Err()
}

// Value implements context.Context.
func (c *Context) Value(key any) any {
	return c.Req.Context().Value(key)
}

// Throw aborts the current middleware with an HTTPError built from args (see
// NewError). The panic is recovered by the chain and handled like a returned
// error.
//
// Example:
//
//	ctx.Throw(403, "admins only")
func (c *Context) Throw(args ...any) {
	panic(NewError(args...))
}

// Assert calls Throw with args when ok is false.
//
// Example:
//
//	ctx.Assert(ctx.State.Has("user"), 401, "please login")
func (c *Context) Assert(ok bool, args ...any) {
	if !ok {
		c.Throw(args...)
	}
}

// OnError turns err into the response. Observers registered on the
// application are always notified. When headers were already sent (or the
// client is gone) nothing is written and the error is reported wrapped in a
// *HeaderSentError. Otherwise all response headers are replaced with the
// error's own headers and a plain text body: the error message when the
// error is exposed, the status text otherwise.
//
// A nil err is ignored.
func (c *Context) OnError(err error) {
	if err == nil {
		return
	}
	c.Res.errored = true

	headerSent := c.Res.HeadersSent() || !c.Response.Writable()
	if headerSent {
		err = &HeaderSentError{Err: err}
	}

	c.App.emitError(err, c)

	if headerSent {
		return
	}

	h := c.Res.Header()
	for k := range h {
		delete(h, k)
	}
	for k, v := range errorHeaders(err) {
		h.Set(k, v)
	}
	c.Response.SetType("text")

	status := responseStatus(err)
	msg := statusMessage(status)
	if errorExposed(err) {
		msg = err.Error()
	}

	c.Response.closeStream()
	c.Response.body = nil
	c.Response.SetStatus(status)
	c.Response.SetLength(len(msg))
	c.Res.End([]byte(msg))
}

// Inspect returns a diagnostic snapshot of the context. Raw handles are
// replaced by placeholders.
func (c *Context) Inspect() map[string]any {
	if c == nil {
		return nil
	}
	return map[string]any{
		"request":     c.Request.Inspect(),
		"response":    c.Response.Inspect(),
		"app":         c.App.Inspect(),
		"originalUrl": c.OriginalURL,
		"req":         "<original http.Request>",
		"res":         "<original http.ResponseWriter>",
		"socket":      "<original net.Conn>",
	}
}

// MarshalJSON encodes Inspect.
func (c *Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Inspect())
}

// Response facet forwarding. Each method delegates to c.Response.

// Attachment forwards to Response.Attachment.
func (c *Context) Attachment(filename string) { c.Response.Attachment(filename) }

// Redirect forwards to Response.Redirect.
func (c *Context) Redirect(target string, alt ...string) { c.Response.Redirect(target, alt...) }

// Remove forwards to Response.Remove.
func (c *Context) Remove(field string) { c.Response.Remove(field) }

// Vary forwards to Response.Vary.
func (c *Context) Vary(field string) { c.Response.Vary(field) }

// Set forwards to Response.Set.
func (c *Context) Set(field string, values ...string) { c.Response.Set(field, values...) }

// SetHeaders forwards to Response.SetHeaders.
func (c *Context) SetHeaders(fields map[string]string) { c.Response.SetHeaders(fields) }

// Append forwards to Response.Append.
func (c *Context) Append(field string, values ...string) { c.Response.Append(field, values...) }

// FlushHeaders forwards to Response.FlushHeaders.
func (c *Context) FlushHeaders() { c.Response.FlushHeaders() }

// Status forwards to Response.Status.
func (c *Context) Status() int { return c.Response.Status() }

// SetStatus forwards to Response.SetStatus.
func (c *Context) SetStatus(code int) { c.Response.SetStatus(code) }

// Message forwards to Response.Message.
func (c *Context) Message() string { return c.Response.Message() }

// SetMessage forwards to Response.SetMessage.
func (c *Context) SetMessage(msg string) { c.Response.SetMessage(msg) }

// Body forwards to Response.Body.
func (c *Context) Body() any { return c.Response.Body() }

// SetBody forwards to Response.SetBody.
func (c *Context) SetBody(body any) { c.Response.SetBody(body) }

// Length forwards to Response.Length.
func (c *Context) Length() (int, bool) { return c.Response.Length() }

// SetLength forwards to Response.SetLength.
func (c *Context) SetLength(n int) { c.Response.SetLength(n) }

// Type forwards to Response.Type.
func (c *Context) Type() string { return c.Response.Type() }

// SetType forwards to Response.SetType.
func (c *Context) SetType(typ string) { c.Response.SetType(typ) }

// LastModified forwards to Response.LastModified.
func (c *Context) LastModified() (time.Time, bool) { return c.Response.LastModified() }

// SetLastModified forwards to Response.SetLastModified.
func (c *Context) SetLastModified(t time.Time) { c.Response.SetLastModified(t) }

// Etag forwards to Response.Etag.
func (c *Context) Etag() string { return c.Response.Etag() }

// SetEtag forwards to Response.SetEtag.
func (c *Context) SetEtag(etag string) { c.Response.SetEtag(etag) }

// HeaderSent forwards to Response.HeaderSent.
func (c *Context) HeaderSent() bool { return c.Response.HeaderSent() }

// Writable forwards to Response.Writable.
func (c *Context) Writable() bool { return c.Response.Writable() }

// Request facet forwarding. Each method delegates to c.Request.

// AcceptsLanguages forwards to Request.AcceptsLanguages.
func (c *Context) AcceptsLanguages(langs ...string) string { return c.Request.AcceptsLanguages(langs...) }

// AcceptsEncodings forwards to Request.AcceptsEncodings.
func (c *Context) AcceptsEncodings(encodings ...string) string { return c.Request.AcceptsEncodings(encodings...) }

// AcceptsCharsets forwards to Request.AcceptsCharsets.
func (c *Context) AcceptsCharsets(charsets ...string) string { return c.Request.AcceptsCharsets(charsets...) }

// Accepts forwards to Request.Accepts.
func (c *Context) Accepts(types ...string) string { return c.Request.Accepts(types...) }

// Get forwards to Request.Get.
func (c *Context) Get(field string) string { return c.Request.Get(field) }

// Is forwards to Request.Is.
func (c *Context) Is(types ...string) string { return c.Request.Is(types...) }

// Querystring forwards to Request.Querystring.
func (c *Context) Querystring() string { return c.Request.Querystring() }

// SetQuerystring forwards to Request.SetQuerystring.
func (c *Context) SetQuerystring(qs string) { c.Request.SetQuerystring(qs) }

// Idempotent forwards to Request.Idempotent.
func (c *Context) Idempotent() bool { return c.Request.Idempotent() }

// Socket forwards to Request.Socket.
func (c *Context) Socket() Socket { return c.Request.Socket() }

// Search forwards to Request.Search.
func (c *Context) Search() string { return c.Request.Search() }

// SetSearch forwards to Request.SetSearch.
func (c *Context) SetSearch(search string) { c.Request.SetSearch(search) }

// Method forwards to Request.Method.
func (c *Context) Method() string { return c.Request.Method() }

// SetMethod forwards to Request.SetMethod.
func (c *Context) SetMethod(method string) { c.Request.SetMethod(method) }

// Query forwards to Request.Query.
func (c *Context) Query() url.Values { return c.Request.Query() }

// SetQuery forwards to Request.SetQuery.
func (c *Context) SetQuery(q url.Values) { c.Request.SetQuery(q) }

// Path forwards to Request.Path.
func (c *Context) Path() string { return c.Request.Path() }

// SetPath forwards to Request.SetPath.
func (c *Context) SetPath(path string) { c.Request.SetPath(path) }

// URL forwards to Request.URL.
func (c *Context) URL() string { return c.Request.URL() }

// SetURL forwards to Request.SetURL.
func (c *Context) SetURL(raw string) { c.Request.SetURL(raw) }

// Origin forwards to Request.Origin.
func (c *Context) Origin() string { return c.Request.Origin() }

// Href forwards to Request.Href.
func (c *Context) Href() string { return c.Request.Href() }

// Subdomains forwards to Request.Subdomains.
func (c *Context) Subdomains() []string { return c.Request.Subdomains() }

// Protocol forwards to Request.Protocol.
func (c *Context) Protocol() string { return c.Request.Protocol() }

// Host forwards to Request.Host.
func (c *Context) Host() string { return c.Request.Host() }

// Hostname forwards to Request.Hostname.
func (c *Context) Hostname() string { return c.Request.Hostname() }

// URLObject forwards to Request.URLObject.
func (c *Context) URLObject() *url.URL { return c.Request.URLObject() }

// Header forwards to Request.Header.
func (c *Context) Header() http.Header { return c.Request.Header() }

// Headers forwards to Request.Headers.
func (c *Context) Headers() http.Header { return c.Request.Headers() }

// Secure forwards to Request.Secure.
func (c *Context) Secure() bool { return c.Request.Secure() }

// Stale forwards to Request.Stale.
func (c *Context) Stale() bool { return c.Request.Stale() }

// Fresh forwards to Request.Fresh.
func (c *Context) Fresh() bool { return c.Request.Fresh() }

// IPs forwards to Request.IPs.
func (c *Context) IPs() []string { return c.Request.IPs() }

// IP forwards to Request.IP.
func (c *Context) IP() string { return c.Request.IP() }

// State is the per-request mapping for application data.
type State map[string]any

// Get returns the value stored under key, or nil.
func (s State) Get(key string) any {
	return s[key]
}

// Set stores v under key.
func (s State) Set(key string, v any) {
	s[key] = v
}

// Delete removes key.
func (s State) Delete(key string) {
	delete(s, key)
}

// Has reports whether key is set.
func (s State) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// StateValue returns the state value under key converted to T.
//
// Example:
//
//	userID, ok := strata.StateValue[string](ctx, strata.UserIDKey)
func StateValue[T any](ctx *Context, key string) (T, bool) {
	v, ok := ctx.State[key].(T)
	return v, ok
}
