package strata

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON decodes the request body into v. A malformed body yields a 400
// error whose message reaches the client.
func DecodeJSON(ctx *Context, v any) error {
	if err := json.NewDecoder(ctx.Req.Body).Decode(v); err != nil {
		return NewError(http.StatusBadRequest, "invalid JSON body", err)
	}
	return nil
}

// JSON sets status and body in one call. Structured values are sent as JSON;
// strings, byte slices and readers keep their own content types.
func JSON(ctx *Context, status int, data any) {
	ctx.SetStatus(status)
	ctx.SetBody(data)
}
