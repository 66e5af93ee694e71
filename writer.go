package strata

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// ResponseWriter wraps http.ResponseWriter with the state the core needs:
// a status that stays mutable until headers are written, a headers-sent flag
// and a terminal End.
type ResponseWriter struct {
	http.ResponseWriter
	status      int
	headersSent bool
	finished    bool
	err         error
	// errored is set once the error path has handled the request.
	errored bool
}

// NewResponseWriter wraps w. The status starts at 200.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w, status: http.StatusOK}
}

// Status returns the status that was or will be sent.
func (w *ResponseWriter) Status() int {
	return w.status
}

// SetStatus changes the pending status. It has no effect once headers are sent.
func (w *ResponseWriter) SetStatus(code int) {
	if !w.headersSent {
		w.status = code
	}
}

// HeadersSent reports whether the status line and headers were written.
func (w *ResponseWriter) HeadersSent() bool {
	return w.headersSent
}

// Finished reports whether End was called.
func (w *ResponseWriter) Finished() bool {
	return w.finished
}

// Err returns the first write error seen, if any.
func (w *ResponseWriter) Err() error {
	return w.err
}

// WriteHeader sends headers with code. Later calls are ignored.
func (w *ResponseWriter) WriteHeader(code int) {
	if w.headersSent {
		return
	}
	w.status = code
	w.headersSent = true
	w.ResponseWriter.WriteHeader(code)
}

// Write sends headers with the pending status if needed, then writes b.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.headersSent {
		w.WriteHeader(w.status)
	}
	n, err := w.ResponseWriter.Write(b)
	if err != nil && w.err == nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		w.err = err
	}
	return n, err
}

// End writes the optional payload and marks the response finished. Calls
// after the first are ignored.
func (w *ResponseWriter) End(payload []byte) {
	if w.finished {
		return
	}
	if !w.headersSent {
		w.WriteHeader(w.status)
	}
	if len(payload) > 0 {
		_, _ = w.Write(payload)
	}
	w.finished = true
}

// Flush implements http.Flusher.
func (w *ResponseWriter) Flush() {
	if !w.headersSent {
		w.WriteHeader(w.status)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker when the underlying writer does.
func (w *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("strata: underlying ResponseWriter does not implement http.Hijacker")
	}
	conn, rw, err := h.Hijack()
	if err == nil {
		w.headersSent = true
		w.finished = true
	}
	return conn, rw, err
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// onFinished runs fn once the handler is done with the response. fn receives
// the first write error, ErrClientClosed when the client disconnected before
// the response was finished, or nil. It does nothing when an error was
// already reported for the request.
func (w *ResponseWriter) onFinished(r *http.Request, fn func(error)) {
	switch {
	case w.errored:
		return
	case w.err != nil:
		fn(w.err)
	case !w.finished && r.Context().Err() != nil:
		fn(ErrClientClosed)
	default:
		fn(nil)
	}
}
