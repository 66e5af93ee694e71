package strata

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Jack4Code/strata/accepts"
)

// ResponseFacet is the write-oriented surface a Context forwards to its Response.
type ResponseFacet interface {
	Attachment(filename string)
	Redirect(target string, alt ...string)
	Remove(field string)
	Vary(field string)
	Set(field string, values ...string)
	SetHeaders(fields map[string]string)
	Append(field string, values ...string)
	FlushHeaders()
	Status() int
	SetStatus(code int)
	Message() string
	SetMessage(msg string)
	Body() any
	SetBody(body any)
	Length() (int, bool)
	SetLength(n int)
	Type() string
	SetType(typ string)
	LastModified() (time.Time, bool)
	SetLastModified(t time.Time)
	Etag() string
	SetEtag(etag string)
	HeaderSent() bool
	Writable() bool
}

var _ ResponseFacet = (*Response)(nil)

// Response is the per-request write view over the wrapped ResponseWriter.
type Response struct {
	App     *Application
	Req     *http.Request
	Res     *ResponseWriter
	Ctx     *Context
	Request *Request

	body           any
	message        string
	explicitStatus bool
	streamClosed   bool
}

// Socket returns the connection addresses.
func (r *Response) Socket() Socket {
	return r.Request.Socket()
}

// Header returns the pending response headers.
func (r *Response) Header() http.Header {
	return r.Res.Header()
}

// HeaderSent reports whether headers were written to the client.
func (r *Response) HeaderSent() bool {
	return r.Res.HeadersSent()
}

// Writable reports whether the response can still be written: not ended and
// the client still connected.
func (r *Response) Writable() bool {
	if r.Res.Finished() {
		return false
	}
	return r.Req.Context().Err() == nil
}

// Status returns the response status.
func (r *Response) Status() int {
	return r.Res.Status()
}

// SetStatus sets the status. It is ignored once headers are sent and panics
// for codes outside 100..999. Setting a body-less status clears the body.
func (r *Response) SetStatus(code int) {
	if r.HeaderSent() {
		return
	}
	if code < 100 || code > 999 {
		panic(fmt.Errorf("%w: %d", ErrInvalidStatus, code))
	}
	r.explicitStatus = true
	r.Res.SetStatus(code)
	r.message = ""
	if r.body != nil && emptyStatus[code] {
		r.SetBody(nil)
	}
}

// Message returns the status message, defaulting to the reason phrase.
func (r *Response) Message() string {
	if r.message != "" {
		return r.message
	}
	return statusMessage(r.Status())
}

// SetMessage overrides the status message.
func (r *Response) SetMessage(msg string) {
	r.message = msg
}

// Body returns the body set so far.
func (r *Response) Body() any {
	return r.body
}

// SetBody sets the response body: nil, string, []byte, io.Reader or any
// JSON-serialisable value.
//
// A nil body switches the status to 204 (unless it is already body-less) and
// strips the content headers. A non-nil body defaults the status to 200 when
// none was set explicitly and fills in Content-Type when missing. A stream
// body that is replaced by another value is closed.
func (r *Response) SetBody(body any) {
	original := r.body
	if _, ok := original.(io.Closer); !ok {
		r.streamClosed = false
	} else if original != body {
		r.closeStream()
		r.streamClosed = false
	}
	r.body = body

	if body == nil {
		if !emptyStatus[r.Status()] {
			r.SetStatus(http.StatusNoContent)
		}
		r.Remove("Content-Type")
		r.Remove("Content-Length")
		r.Remove("Transfer-Encoding")
		return
	}

	if !r.explicitStatus {
		r.SetStatus(http.StatusOK)
	}

	setType := r.Header().Get("Content-Type") == ""

	switch v := body.(type) {
	case string:
		if setType {
			if strings.HasPrefix(strings.TrimLeft(v, " \t\r\n"), "<") {
				r.SetType("html")
			} else {
				r.SetType("text")
			}
		}
		r.SetLength(len(v))
	case []byte:
		if setType {
			r.SetType("bin")
		}
		r.SetLength(len(v))
	case io.Reader:
		if original != nil && original != body {
			r.Remove("Content-Length")
		}
		if setType {
			r.SetType("bin")
		}
	default:
		r.Remove("Content-Length")
		r.SetType("json")
	}
}

// closeStream closes the body if it is an io.Closer. It closes at most once
// per body.
func (r *Response) closeStream() {
	if r.streamClosed {
		return
	}
	if c, ok := r.body.(io.Closer); ok {
		r.streamClosed = true
		_ = c.Close()
	}
}

// Length returns Content-Length, or the size derived from the body when the
// header is absent. Streams have no known length.
func (r *Response) Length() (int, bool) {
	if v := r.Header().Get("Content-Length"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	switch v := r.body.(type) {
	case nil, io.Reader:
		return 0, false
	case string:
		return len(v), true
	case []byte:
		return len(v), true
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0, false
		}
		return len(b), true
	}
}

// SetLength sets Content-Length unless the body is chunked.
func (r *Response) SetLength(n int) {
	if r.Header().Get("Transfer-Encoding") == "" {
		r.Header().Set("Content-Length", strconv.Itoa(n))
	}
}

// Type returns the response media type without parameters.
func (r *Response) Type() string {
	return mediaType(r.Header().Get("Content-Type"))
}

// SetType sets Content-Type from a full type, an extension or a shorthand
// ("json", "html", "text", "bin"). Textual types get charset=utf-8. Unknown
// values remove the header.
func (r *Response) SetType(typ string) {
	if ct := contentType(typ); ct != "" {
		r.Header().Set("Content-Type", ct)
		return
	}
	r.Remove("Content-Type")
}

// LastModified returns the parsed Last-Modified header.
func (r *Response) LastModified() (time.Time, bool) {
	v := r.Header().Get("Last-Modified")
	if v == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	return t, err == nil
}

// SetLastModified sets Last-Modified.
func (r *Response) SetLastModified(t time.Time) {
	r.Header().Set("Last-Modified", t.UTC().Format(http.TimeFormat))
}

// Etag returns the ETag header.
func (r *Response) Etag() string {
	return r.Header().Get("ETag")
}

// SetEtag sets ETag, quoting the value unless it is already quoted or weak.
func (r *Response) SetEtag(etag string) {
	if !strings.HasPrefix(etag, `"`) && !strings.HasPrefix(etag, `W/"`) {
		etag = `"` + etag + `"`
	}
	r.Header().Set("ETag", etag)
}

// Get returns a response header.
func (r *Response) Get(field string) string {
	return r.Header().Get(field)
}

// Has reports whether a response header is set.
func (r *Response) Has(field string) bool {
	_, ok := r.Header()[http.CanonicalHeaderKey(field)]
	return ok
}

// Set replaces a response header. It does nothing once headers are sent.
func (r *Response) Set(field string, values ...string) {
	if r.HeaderSent() {
		return
	}
	h := r.Header()
	h.Del(field)
	for _, v := range values {
		h.Add(field, v)
	}
}

// SetHeaders sets several headers at once.
func (r *Response) SetHeaders(fields map[string]string) {
	for k, v := range fields {
		r.Set(k, v)
	}
}

// Append adds values to a response header.
func (r *Response) Append(field string, values ...string) {
	if r.HeaderSent() {
		return
	}
	for _, v := range values {
		r.Header().Add(field, v)
	}
}

// Remove deletes a response header. It does nothing once headers are sent.
func (r *Response) Remove(field string) {
	if r.HeaderSent() {
		return
	}
	r.Header().Del(field)
}

// Vary adds field to the Vary header unless already listed.
func (r *Response) Vary(field string) {
	if r.HeaderSent() {
		return
	}
	current := r.Header().Get("Vary")
	if current == "*" {
		return
	}
	if field == "*" {
		r.Header().Set("Vary", "*")
		return
	}
	var fields []string
	for _, f := range strings.Split(current, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	for _, f := range fields {
		if strings.EqualFold(f, field) {
			return
		}
	}
	fields = append(fields, field)
	r.Header().Set("Vary", strings.Join(fields, ", "))
}

// Is matches the response Content-Type like Request.Is.
func (r *Response) Is(types ...string) string {
	return typeIs(r.Type(), types)
}

// Redirect sets Location and a 302 status unless a redirect status is
// already set. The target "back" uses the Referer header, then alt, then "/".
// The body is a short HTML or text note depending on what the client accepts.
func (r *Response) Redirect(target string, alt ...string) {
	if target == "back" {
		target = r.Request.Get("Referrer")
		if target == "" {
			target = "/"
			if len(alt) > 0 && alt[0] != "" {
				target = alt[0]
			}
		}
	}

	r.Set("Location", target)
	if !redirectStatus[r.Status()] {
		r.SetStatus(http.StatusFound)
	}

	if r.Request.Accepts("html") != "" {
		escaped := html.EscapeString(target)
		r.SetType("text/html; charset=utf-8")
		r.SetBody(fmt.Sprintf(`Redirecting to <a href="%s">%s</a>.`, escaped, escaped))
		return
	}
	r.SetType("text/plain; charset=utf-8")
	r.SetBody("Redirecting to " + target + ".")
}

// Attachment sets Content-Disposition to attachment, and Content-Type from the
// filename's extension when one is given.
func (r *Response) Attachment(filename string) {
	if filename == "" {
		r.Set("Content-Disposition", "attachment")
		return
	}
	base := filepath.Base(filename)
	r.SetType(filepath.Ext(base))
	r.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": base}))
}

// FlushHeaders writes the status and headers immediately.
func (r *Response) FlushHeaders() {
	r.Res.Flush()
}

// Inspect returns a diagnostic snapshot.
func (r *Response) Inspect() map[string]any {
	if r == nil {
		return nil
	}
	return map[string]any{
		"status":  r.Status(),
		"message": r.Message(),
		"header":  r.Header(),
	}
}

// contentType resolves typ to a full Content-Type value.
func contentType(typ string) string {
	if typ == "" {
		return ""
	}
	mt := typ
	if !strings.Contains(typ, "/") {
		mt = accepts.Lookup(typ)
		if mt == "" {
			return ""
		}
	}
	if strings.Contains(mt, ";") {
		return mt
	}
	if strings.HasPrefix(mt, "text/") || mt == "application/json" || mt == "application/javascript" {
		return mt + "; charset=utf-8"
	}
	return mt
}
