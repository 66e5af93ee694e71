package strata

import (
	"github.com/google/uuid"
)

// RequestIDKey is the State key the request ID is stored under.
const RequestIDKey = "requestID"

// DefaultRequestIDHeaders are the headers checked (in order) for an existing request ID.
var DefaultRequestIDHeaders = []string{"X-Request-ID", "X-Correlation-ID"}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	Generator      func() string // ID generator function
	ResponseHeader string        // Response header name
	Headers        []string      // Headers to check for existing ID (in order)
}

// RequestIDOption configures RequestIDConfig.
type RequestIDOption func(*RequestIDConfig)

// WithRequestIDHeaders sets the headers to check for existing request IDs.
func WithRequestIDHeaders(headers ...string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Headers = headers
	}
}

// WithRequestIDGenerator sets a custom ID generator function.
func WithRequestIDGenerator(gen func() string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.Generator = gen
	}
}

// WithRequestIDResponseHeader sets the response header name.
func WithRequestIDResponseHeader(header string) RequestIDOption {
	return func(cfg *RequestIDConfig) {
		cfg.ResponseHeader = header
	}
}

// RequestID returns middleware that assigns a request ID to each request.
// An incoming ID from one of the configured headers is kept, otherwise a
// random UUID is generated. The ID is stored in State and echoed in the
// response header, including on error responses.
func RequestID(opts ...RequestIDOption) Middleware {
	cfg := &RequestIDConfig{
		Headers:        DefaultRequestIDHeaders,
		Generator:      uuid.NewString,
		ResponseHeader: "X-Request-ID",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx *Context, next Next) error {
		var reqID string
		for _, header := range cfg.Headers {
			if v := ctx.Get(header); v != "" {
				reqID = v
				break
			}
		}
		if reqID == "" {
			reqID = cfg.Generator()
		}

		ctx.State.Set(RequestIDKey, reqID)
		ctx.Set(cfg.ResponseHeader, reqID)

		if err := next(); err != nil {
			return WithHeaders(err, map[string]string{cfg.ResponseHeader: reqID})
		}
		return nil
	}
}

// GetRequestID returns the request ID, or "" when RequestID is not in use.
func GetRequestID(ctx *Context) string {
	id, _ := StateValue[string](ctx, RequestIDKey)
	return id
}
