package strata

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResponse(t *testing.T, r *http.Request) (*Response, *httptest.ResponseRecorder) {
	t.Helper()
	if r == nil {
		r = httptest.NewRequest(http.MethodGet, "/", nil)
	}
	ctx, rec := newContext(nil, r)
	return ctx.Response, rec
}

func TestResponseStatus(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)
	assert.Equal(t, http.StatusOK, res.Status())
	assert.Equal(t, "OK", res.Message())

	res.SetMessage("Fine")
	assert.Equal(t, "Fine", res.Message())

	res.SetStatus(http.StatusAccepted)
	assert.Equal(t, http.StatusAccepted, res.Status())
	assert.Equal(t, "Accepted", res.Message())

	res.SetStatus(799)
	assert.Equal(t, "", res.Message())

	for _, code := range []int{0, 99, 1000} {
		v := recovered(func() { res.SetStatus(code) })
		err, ok := v.(error)
		require.True(t, ok, "status %d must panic", code)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	}
	assert.Equal(t, 799, res.Status())
}

func TestResponseSetBody(t *testing.T) {
	t.Parallel()

	t.Run("defaults status to 200", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.Res.SetStatus(http.StatusNotFound)
		res.SetBody("found")
		assert.Equal(t, http.StatusOK, res.Status())
	})

	t.Run("keeps explicit status", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.SetStatus(http.StatusCreated)
		res.SetBody(map[string]int{"id": 1})
		assert.Equal(t, http.StatusCreated, res.Status())
	})

	t.Run("nil switches to 204 and strips content headers", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.SetBody("text")
		res.Set("Transfer-Encoding", "chunked")
		res.SetBody(nil)
		assert.Equal(t, http.StatusNoContent, res.Status())
		assert.False(t, res.Has("Content-Type"))
		assert.False(t, res.Has("Content-Length"))
		assert.False(t, res.Has("Transfer-Encoding"))
	})

	t.Run("nil keeps an empty status", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.SetStatus(http.StatusNotModified)
		res.SetBody(nil)
		assert.Equal(t, http.StatusNotModified, res.Status())
	})

	t.Run("empty status clears body", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.SetBody("gone")
		res.SetStatus(http.StatusResetContent)
		assert.Nil(t, res.Body())
		assert.False(t, res.Has("Content-Length"))
	})

	t.Run("existing content type is kept", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.Set("Content-Type", "application/xml")
		res.SetBody("<note/>")
		assert.Equal(t, "application/xml", res.Type())
		assert.Equal(t, "7", res.Get("Content-Length"))
	})

	t.Run("stream replacing a body drops the length", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.SetBody("abc")
		assert.Equal(t, "3", res.Get("Content-Length"))
		res.SetBody(strings.NewReader("longer stream"))
		assert.False(t, res.Has("Content-Length"))
		assert.Equal(t, "text/plain", res.Type())
	})

	t.Run("replacing a stream closes it", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		stream := &trackedReader{Reader: strings.NewReader("data")}
		res.SetBody(stream)
		res.SetBody(stream)
		assert.False(t, stream.closed)

		res.SetBody("replaced")
		assert.True(t, stream.closed)
		assert.Equal(t, "replaced", res.Body())
	})

	t.Run("json drops a stale length", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.SetBody("abc")
		res.SetBody([]string{"a"})
		assert.False(t, res.Has("Content-Length"))
		assert.Equal(t, "application/json; charset=utf-8", res.Get("Content-Type"))
	})
}

func TestResponseLength(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)
	_, ok := res.Length()
	assert.False(t, ok)

	res.SetBody(map[string]string{"msg": "hi"})
	n, ok := res.Length()
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	res.SetBody(strings.NewReader("x"))
	_, ok = res.Length()
	assert.False(t, ok)

	res.SetLength(42)
	n, ok = res.Length()
	assert.True(t, ok)
	assert.Equal(t, 42, n)

	res.Set("Content-Length", "forty")
	n, ok = res.Length()
	assert.False(t, ok)
	assert.Zero(t, n)

	res.Set("Transfer-Encoding", "chunked")
	res.Remove("Content-Length")
	res.SetLength(10)
	assert.False(t, res.Has("Content-Length"))
}

func TestResponseSetType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"json", "application/json; charset=utf-8"},
		{"html", "text/html; charset=utf-8"},
		{".png", "image/png"},
		{"application/javascript", "application/javascript; charset=utf-8"},
		{"text/csv; charset=latin1", "text/csv; charset=latin1"},
		{"application/xml", "application/xml"},
	}
	for _, tt := range tests {
		res, _ := newResponse(t, nil)
		res.SetType(tt.in)
		assert.Equal(t, tt.want, res.Get("Content-Type"), tt.in)
	}

	res, _ := newResponse(t, nil)
	res.SetType("json")
	res.SetType("no-such-ext")
	assert.False(t, res.Has("Content-Type"))
	assert.Equal(t, "", res.Type())
}

func TestResponseCachingHeaders(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)

	_, ok := res.LastModified()
	assert.False(t, ok)

	modified := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	res.SetLastModified(modified.In(time.FixedZone("X", 3600)))
	assert.Equal(t, "Fri, 01 Mar 2024 12:30:00 GMT", res.Get("Last-Modified"))
	got, ok := res.LastModified()
	assert.True(t, ok)
	assert.True(t, modified.Equal(got))

	res.SetEtag("abc")
	assert.Equal(t, `"abc"`, res.Etag())
	res.SetEtag(`"quoted"`)
	assert.Equal(t, `"quoted"`, res.Etag())
	res.SetEtag(`W/"weak"`)
	assert.Equal(t, `W/"weak"`, res.Etag())
}

func TestResponseHeaders(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)

	res.Set("X-Multi", "a", "b")
	assert.Equal(t, []string{"a", "b"}, res.Header().Values("X-Multi"))
	res.Set("X-Multi", "c")
	assert.Equal(t, []string{"c"}, res.Header().Values("X-Multi"))

	res.SetHeaders(map[string]string{"X-One": "1", "X-Two": "2"})
	assert.Equal(t, "1", res.Get("x-one"))
	assert.True(t, res.Has("x-two"))

	res.Append("Link", "<a>", "<b>")
	assert.Len(t, res.Header().Values("Link"), 2)

	res.Remove("X-One")
	assert.False(t, res.Has("X-One"))
}

func TestResponseVary(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)
	res.Vary("Origin")
	res.Vary("Accept-Encoding")
	res.Vary("origin")
	assert.Equal(t, "Origin, Accept-Encoding", res.Get("Vary"))

	res.Vary("*")
	assert.Equal(t, "*", res.Get("Vary"))
	res.Vary("Cookie")
	assert.Equal(t, "*", res.Get("Vary"))
}

func TestResponseIs(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)
	assert.Equal(t, "", res.Is("json"))

	res.SetType("json")
	assert.Equal(t, "json", res.Is("html", "json"))
	assert.Equal(t, "application/json", res.Is())
	assert.Equal(t, "", res.Is("html"))
}

func TestResponseRedirect(t *testing.T) {
	t.Parallel()

	t.Run("html body escapes the target", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", "text/html")
		res, _ := newResponse(t, req)

		res.Redirect("/a?x=1&y=2")
		assert.Equal(t, http.StatusFound, res.Status())
		assert.Equal(t, "/a?x=1&y=2", res.Get("Location"))
		assert.Equal(t, "text/html; charset=utf-8", res.Get("Content-Type"))
		assert.Equal(t, `Redirecting to <a href="/a?x=1&amp;y=2">/a?x=1&amp;y=2</a>.`, res.Body())
	})

	t.Run("text body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", "application/json")
		res, _ := newResponse(t, req)

		res.Redirect("/login")
		assert.Equal(t, "text/plain; charset=utf-8", res.Get("Content-Type"))
		assert.Equal(t, "Redirecting to /login.", res.Body())
	})

	t.Run("back", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Referer", "/previous")
		res, _ := newResponse(t, req)
		res.Redirect("back", "/alt")
		assert.Equal(t, "/previous", res.Get("Location"))

		res, _ = newResponse(t, nil)
		res.Redirect("back", "/alt")
		assert.Equal(t, "/alt", res.Get("Location"))

		res, _ = newResponse(t, nil)
		res.Redirect("back")
		assert.Equal(t, "/", res.Get("Location"))
	})

	t.Run("keeps a redirect status", func(t *testing.T) {
		t.Parallel()
		res, _ := newResponse(t, nil)
		res.SetStatus(http.StatusMovedPermanently)
		res.Redirect("/moved")
		assert.Equal(t, http.StatusMovedPermanently, res.Status())
	})
}

func TestResponseAttachment(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)
	res.Attachment("")
	assert.Equal(t, "attachment", res.Get("Content-Disposition"))

	res.Attachment("reports/q1.pdf")
	assert.Equal(t, "attachment; filename=q1.pdf", res.Get("Content-Disposition"))
	assert.Equal(t, "application/pdf", res.Type())

	res.Attachment("my notes.txt")
	assert.Equal(t, `attachment; filename="my notes.txt"`, res.Get("Content-Disposition"))
	assert.Equal(t, "text/plain; charset=utf-8", res.Get("Content-Type"))
}

func TestResponseAfterHeadersSent(t *testing.T) {
	t.Parallel()

	res, rec := newResponse(t, nil)
	res.SetStatus(http.StatusAccepted)
	res.Set("X-Before", "1")
	res.FlushHeaders()

	assert.True(t, res.HeaderSent())
	assert.True(t, rec.Flushed)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	res.SetStatus(http.StatusTeapot)
	res.Set("X-After", "1")
	res.Append("X-Before", "2")
	res.Remove("X-Before")
	res.Vary("Origin")

	assert.Equal(t, http.StatusAccepted, res.Status())
	assert.False(t, res.Has("X-After"))
	assert.Equal(t, []string{"1"}, res.Header().Values("X-Before"))
	assert.False(t, res.Has("Vary"))
	assert.True(t, res.Writable())

	res.Res.End(nil)
	assert.False(t, res.Writable())
}

func TestResponseInspect(t *testing.T) {
	t.Parallel()

	res, _ := newResponse(t, nil)
	res.SetStatus(http.StatusCreated)
	res.Set("X-Id", "7")

	snapshot := res.Inspect()
	assert.Equal(t, http.StatusCreated, snapshot["status"])
	assert.Equal(t, "Created", snapshot["message"])
	assert.Equal(t, "7", snapshot["header"].(http.Header).Get("X-Id"))
	assert.Equal(t, "192.0.2.1:1234", res.Socket().RemoteAddr)

	var nilRes *Response
	assert.Nil(t, nilRes.Inspect())
}
