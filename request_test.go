package strata

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newRequest(t *testing.T, app *Application, r *http.Request) *Request {
	t.Helper()
	ctx, _ := newContext(app, r)
	return ctx.Request
}

func proxyApp(opts ...Option) *Application {
	return New(append([]Option{WithProxy(true), WithLogger(discardLogger())}, opts...)...)
}

func TestRequestURLParts(t *testing.T) {
	t.Parallel()

	r := newRequest(t, nil, httptest.NewRequest(http.MethodGet, "/users?page=2", nil))
	assert.Equal(t, "/users?page=2", r.URL())
	assert.Equal(t, "/users", r.Path())
	assert.Equal(t, "page=2", r.Querystring())
	assert.Equal(t, "?page=2", r.Search())
	assert.Equal(t, url.Values{"page": {"2"}}, r.Query())

	r.SetPath("/people")
	assert.Equal(t, "/people?page=2", r.URL())
	assert.Equal(t, "/users?page=2", r.OriginalURL)

	r.SetQuery(url.Values{"a": {"1"}})
	assert.Equal(t, "/people?a=1", r.URL())

	r.SetSearch("?b=2")
	assert.Equal(t, "b=2", r.Querystring())

	r.SetQuerystring("")
	assert.Equal(t, "", r.Search())

	r.SetURL("/new?x=1")
	assert.Equal(t, "/new", r.Path())
	assert.Equal(t, "x=1", r.Querystring())

	r.SetURL("not a url")
	assert.Equal(t, "/new", r.Path())

	r.SetMethod(http.MethodPut)
	assert.Equal(t, http.MethodPut, r.Method())
}

func TestRequestQueryIsACopy(t *testing.T) {
	t.Parallel()

	r := newRequest(t, nil, httptest.NewRequest(http.MethodGet, "/?a=1", nil))
	q := r.Query()
	q.Set("a", "2")
	assert.Equal(t, "1", r.Query().Get("a"))
}

func TestRequestHost(t *testing.T) {
	t.Parallel()

	t.Run("plain", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/p?q=1", nil)
		req.Host = "example.com:8080"
		r := newRequest(t, nil, req)
		assert.Equal(t, "example.com:8080", r.Host())
		assert.Equal(t, "example.com", r.Hostname())
		assert.Equal(t, "http", r.Protocol())
		assert.False(t, r.Secure())
		assert.Equal(t, "http://example.com:8080", r.Origin())
		assert.Equal(t, "http://example.com:8080/p?q=1", r.Href())
		assert.Equal(t, "example.com:8080", r.URLObject().Host)
		assert.Equal(t, "q=1", r.URLObject().RawQuery)
	})

	t.Run("ipv6", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = "[::1]:3000"
		assert.Equal(t, "::1", newRequest(t, nil, req).Hostname())
	})

	t.Run("tls", func(t *testing.T) {
		t.Parallel()
		r := newRequest(t, nil, httptest.NewRequest(http.MethodGet, "https://secure.test/p", nil))
		assert.Equal(t, "https", r.Protocol())
		assert.True(t, r.Secure())
		assert.Equal(t, "https://secure.test/p", r.Href())
	})

	t.Run("forwarded headers need proxy trust", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-Proto", "HTTPS, http")
		req.Header.Set("X-Forwarded-Host", "api.example.com:8443, internal")

		r := newRequest(t, nil, req)
		assert.Equal(t, "http", r.Protocol())
		assert.Equal(t, "example.com", r.Host())

		r = newRequest(t, proxyApp(), req)
		assert.Equal(t, "https", r.Protocol())
		assert.Equal(t, "api.example.com:8443", r.Host())
		assert.Equal(t, "api.example.com", r.Hostname())
		assert.Equal(t, "https://api.example.com:8443", r.Origin())
	})
}

func TestRequestSubdomains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		host   string
		offset int
		want   []string
	}{
		{"tobi.ferrets.example.com", 2, []string{"ferrets", "tobi"}},
		{"tobi.ferrets.example.com", 3, []string{"tobi"}},
		{"example.com", 2, []string{}},
		{"localhost", 2, []string{}},
		{"127.0.0.1", 0, []string{}},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = tt.host
		app := New(WithSubdomainOffset(tt.offset), WithLogger(discardLogger()))
		assert.Equal(t, tt.want, newRequest(t, app, req).Subdomains(), tt.host)
	}
}

func TestRequestFresh(t *testing.T) {
	t.Parallel()

	lastModified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		method string
		reqH   map[string]string
		setup  func(ctx *Context)
		fresh  bool
	}{
		{
			name:   "matching etag",
			method: http.MethodGet,
			reqH:   map[string]string{"If-None-Match": `"abc"`},
			setup:  func(ctx *Context) { ctx.SetEtag("abc") },
			fresh:  true,
		},
		{
			name:   "weak etag matches",
			method: http.MethodHead,
			reqH:   map[string]string{"If-None-Match": `W/"abc"`},
			setup:  func(ctx *Context) { ctx.SetEtag("abc") },
			fresh:  true,
		},
		{
			name:   "different etag",
			method: http.MethodGet,
			reqH:   map[string]string{"If-None-Match": `"other"`},
			setup:  func(ctx *Context) { ctx.SetEtag("abc") },
		},
		{
			name:   "not modified since",
			method: http.MethodGet,
			reqH:   map[string]string{"If-Modified-Since": lastModified.Add(time.Hour).Format(http.TimeFormat)},
			setup:  func(ctx *Context) { ctx.SetLastModified(lastModified) },
			fresh:  true,
		},
		{
			name:   "modified since",
			method: http.MethodGet,
			reqH:   map[string]string{"If-Modified-Since": lastModified.Add(-time.Hour).Format(http.TimeFormat)},
			setup:  func(ctx *Context) { ctx.SetLastModified(lastModified) },
		},
		{
			name:   "no-cache",
			method: http.MethodGet,
			reqH:   map[string]string{"If-None-Match": `"abc"`, "Cache-Control": "no-cache"},
			setup:  func(ctx *Context) { ctx.SetEtag("abc") },
		},
		{
			name:   "error status",
			method: http.MethodGet,
			reqH:   map[string]string{"If-None-Match": `"abc"`},
			setup: func(ctx *Context) {
				ctx.SetEtag("abc")
				ctx.SetStatus(http.StatusInternalServerError)
			},
		},
		{
			name:   "unsafe method",
			method: http.MethodPost,
			reqH:   map[string]string{"If-None-Match": `"abc"`},
			setup:  func(ctx *Context) { ctx.SetEtag("abc") },
		},
		{
			name:   "no conditional headers",
			method: http.MethodGet,
			setup:  func(ctx *Context) { ctx.SetEtag("abc") },
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/", nil)
			for k, v := range tt.reqH {
				req.Header.Set(k, v)
			}
			ctx, _ := newContext(nil, req)
			tt.setup(ctx)
			assert.Equal(t, tt.fresh, ctx.Fresh())
			assert.Equal(t, !tt.fresh, ctx.Stale())
		})
	}
}

func TestRequestIdempotent(t *testing.T) {
	t.Parallel()

	for method, want := range map[string]bool{
		http.MethodGet:    true,
		http.MethodHead:   true,
		http.MethodPut:    true,
		http.MethodDelete: true,
		http.MethodPost:   false,
		http.MethodPatch:  false,
	} {
		r := newRequest(t, nil, httptest.NewRequest(method, "/", nil))
		assert.Equal(t, want, r.Idempotent(), method)
	}
}

func TestRequestGetReferrer(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Referer", "https://example.com/from")
	r := newRequest(t, nil, req)
	assert.Equal(t, "https://example.com/from", r.Get("Referrer"))
	assert.Equal(t, "https://example.com/from", r.Get("referer"))
	assert.Equal(t, "", r.Get("X-Missing"))
}

func TestRequestIs(t *testing.T) {
	t.Parallel()

	post := func(contentType string) *Request {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":1}`))
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Content-Length", "7")
		return newRequest(t, nil, req)
	}

	r := post("application/json; charset=utf-8")
	assert.Equal(t, "json", r.Is("html", "json"))
	assert.Equal(t, "application/json", r.Is())
	assert.Equal(t, "application/json", r.Is("application/*"))
	assert.Equal(t, "application/json", r.Is("application/json"))
	assert.Equal(t, "", r.Is("html"))
	assert.Equal(t, "application/json", r.Type())
	assert.Equal(t, "utf-8", r.Charset())

	n, ok := r.Length()
	assert.True(t, ok)
	assert.EqualValues(t, 7, n)

	assert.Equal(t, "application/vnd.api+json", post("application/vnd.api+json").Is("+json"))

	noBody := httptest.NewRequest(http.MethodGet, "/", nil)
	noBody.Header.Set("Content-Type", "application/json")
	assert.Equal(t, "", newRequest(t, nil, noBody).Is("json"))
}

func TestRequestNegotiation(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html;q=0.9, application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept-Charset", "utf-8")
	req.Header.Set("Accept-Language", "de, en;q=0.5")

	r := newRequest(t, nil, req)
	assert.Equal(t, "json", r.Accepts("html", "json"))
	assert.Equal(t, "", r.Accepts("png"))
	assert.Equal(t, "gzip", r.AcceptsEncodings("br", "gzip"))
	assert.Equal(t, "utf-8", r.AcceptsCharsets("utf-8"))
	assert.Equal(t, "de", r.AcceptsLanguages("en", "de"))
}

func TestRequestSocketAndInspect(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodDelete, "/items/1", nil)
	req.RemoteAddr = "192.0.2.9:4000"
	r := newRequest(t, nil, req)

	assert.Equal(t, "192.0.2.9:4000", r.Socket().RemoteAddr)
	assert.Nil(t, r.Socket().LocalAddr)

	snapshot := r.Inspect()
	assert.Equal(t, http.MethodDelete, snapshot["method"])
	assert.Equal(t, "/items/1", snapshot["url"])
	assert.Equal(t, r.Headers(), r.Header())
}
