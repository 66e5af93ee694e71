package strata

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

// respond writes the response described by ctx exactly once. It does nothing
// when middleware disabled it or the response can no longer be written.
// Errors it returns are handed to ctx.OnError by the caller.
func respond(ctx *Context) error {
	if !ctx.Respond || !ctx.Response.Writable() {
		return nil
	}

	res := ctx.Res
	body := ctx.Response.Body()
	code := ctx.Response.Status()

	if emptyStatus[code] {
		ctx.Response.closeStream()
		ctx.Response.SetBody(nil)
		res.End(nil)
		return nil
	}

	if ctx.Req.Method == http.MethodHead {
		if !res.HeadersSent() && !ctx.Response.Has("Content-Length") {
			if n, ok := ctx.Response.Length(); ok {
				ctx.Response.SetLength(n)
			}
		}
		ctx.Response.closeStream()
		res.End(nil)
		return nil
	}

	switch v := body.(type) {
	case nil:
		msg := ctx.Response.Message()
		if msg == "" {
			msg = strconv.Itoa(code)
		}
		if !res.HeadersSent() {
			ctx.Response.SetType("text")
			ctx.Response.SetLength(len(msg))
		}
		res.End([]byte(msg))
	case []byte:
		res.End(v)
	case string:
		res.End([]byte(v))
	case io.Reader:
		defer ctx.Response.closeStream()
		return pipe(res, v)
	default:
		payload, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if !res.HeadersSent() {
			ctx.Response.SetLength(len(payload))
		}
		res.End(payload)
	}
	return nil
}

// pipe copies a stream body into the response. Write failures are left to
// the completion observer.
func pipe(res *ResponseWriter, body io.Reader) error {
	if _, err := io.Copy(res, body); err != nil {
		if res.Err() != nil {
			return nil
		}
		return err
	}
	res.End(nil)
	return nil
}
