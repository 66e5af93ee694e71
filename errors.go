package strata

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
)

var (
	// ErrNotMiddleware is the panic value (wrapped) when Use or Compose
	// receives something that is not a middleware.
	ErrNotMiddleware = errors.New("strata: middleware must be a function")

	// ErrAppFrozen is the panic value when the application is configured after
	// it started serving.
	ErrAppFrozen = errors.New("strata: application already serving, configuration is frozen")

	// ErrClientClosed is reported when the client went away before the
	// response was finished.
	ErrClientClosed = errors.New("strata: client closed request before response finished")

	// ErrInvalidStatus is the panic value (wrapped) for status codes outside 100..999.
	ErrInvalidStatus = errors.New("strata: invalid status code")
)

// HTTPError is an error carrying an HTTP status. Its message reaches the client
// only when Expose is true.
type HTTPError struct {
	Status  int
	Message string
	Expose  bool              // defaults to true for 4xx statuses
	Headers map[string]string // applied to the error response
	Code    string            // machine readable code such as "ENOENT"
	Cause   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status of the error.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// Exposed reports whether the message is safe to send to clients.
func (e *HTTPError) Exposed() bool {
	return e.Expose
}

// ErrorHeaders returns headers to apply to the error response.
func (e *HTTPError) ErrorHeaders() map[string]string {
	return e.Headers
}

// ErrorCode returns the machine readable code.
func (e *HTTPError) ErrorCode() string {
	return e.Code
}

// NewError creates an HTTPError. Arguments may be given in any order:
//   - int: the status (default 500)
//   - string: the message (default: the status text)
//   - error: the cause; its message is used when no string is given
//   - map[string]string: headers for the error response
//
// Example:
//
//	strata.NewError(400, "name required")
//	strata.NewError(err, 404)
func NewError(args ...any) *HTTPError {
	e := &HTTPError{Status: http.StatusInternalServerError}

	var msgSet bool
	for _, arg := range args {
		switch v := arg.(type) {
		case int:
			e.Status = v
		case string:
			e.Message = v
			msgSet = true
		case error:
			e.Cause = v
			var sc statusCoder
			if errors.As(v, &sc) && sc.StatusCode() != 0 && !hasIntArg(args) {
				e.Status = sc.StatusCode()
			}
		case map[string]string:
			e.Headers = v
		}
	}

	if http.StatusText(e.Status) == "" && (e.Status < 400 || e.Status >= 600) {
		e.Status = http.StatusInternalServerError
	}
	if !msgSet {
		if e.Cause != nil {
			e.Message = e.Cause.Error()
		} else {
			e.Message = http.StatusText(e.Status)
		}
	}
	e.Expose = e.Status < http.StatusInternalServerError

	return e
}

func hasIntArg(args []any) bool {
	for _, a := range args {
		if _, ok := a.(int); ok {
			return true
		}
	}
	return false
}

// HeaderSentError marks an error that happened after the response headers
// were already sent. Nothing is written to the client for it.
type HeaderSentError struct {
	Err error
}

func (e *HeaderSentError) Error() string {
	return e.Err.Error()
}

func (e *HeaderSentError) Unwrap() error {
	return e.Err
}

// WithHeaders attaches headers to err that are applied to its error response.
// Headers already carried by err are kept unless overridden.
func WithHeaders(err error, headers map[string]string) error {
	if err == nil || len(headers) == 0 {
		return err
	}
	merged := make(map[string]string, len(headers))
	for k, v := range errorHeaders(err) {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	return &headersError{err: err, headers: merged}
}

type headersError struct {
	err     error
	headers map[string]string
}

func (e *headersError) Error() string { return e.err.Error() }
func (e *headersError) Unwrap() error { return e.err }
func (e *headersError) ErrorHeaders() map[string]string { return e.headers }

type statusCoder interface {
	StatusCode() int
}

type exposer interface {
	Exposed() bool
}

type headerCarrier interface {
	ErrorHeaders() map[string]string
}

type codeCarrier interface {
	ErrorCode() string
}

// errorStatus returns the status carried by err, or 0.
func errorStatus(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func errorExposed(err error) bool {
	var ex exposer
	return errors.As(err, &ex) && ex.Exposed()
}

func errorHeaders(err error) map[string]string {
	var hc headerCarrier
	if errors.As(err, &hc) {
		return hc.ErrorHeaders()
	}
	return nil
}

// responseStatus returns the status an error response for err is sent with.
func responseStatus(err error) int {
	status := errorStatus(err)
	if isNotExist(err) {
		status = http.StatusNotFound
	}
	if !validStatus(status) {
		status = http.StatusInternalServerError
	}
	return status
}

// isNotExist reports a filesystem level "not found".
func isNotExist(err error) bool {
	var cc codeCarrier
	if errors.As(err, &cc) && cc.ErrorCode() == "ENOENT" {
		return true
	}
	return errors.Is(err, fs.ErrNotExist)
}

// toError converts a recovered panic value into an error.
func toError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("non-error thrown: %v", v)
}
