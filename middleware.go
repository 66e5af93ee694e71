package strata

import (
	"errors"
	"fmt"
	"net/http"
)

// Next invokes the next middleware in the chain and returns its result.
// Each Next may be called at most once.
type Next func() error

// Middleware receives the request context and the continuation for the rest
// of the chain. Code before next() runs on the way in, code after it runs on
// the way out.
//
// Example:
//
//	func timing(ctx *strata.Context, next strata.Next) error {
//	    start := time.Now()
//	    err := next()
//	    ctx.Set("X-Response-Time", time.Since(start).String())
//	    return err
//	}
type Middleware func(ctx *Context, next Next) error

// ErrMultipleNext is returned by a continuation that has already been called.
var ErrMultipleNext = errors.New("strata: next() called multiple times")

// Compose builds a single middleware from an ordered list. Middleware run in
// the order provided on the way in and in reverse order on the way out.
// The composed chain is itself a Middleware: the next it receives (which may
// be nil) runs after the last element.
//
// A panic inside a middleware is recovered at that layer and returned from the
// caller's next() as an error, so outer middleware can handle it like any
// other failure.
//
// Example:
//
//	chain := Compose(logging, auth, handler)
//	err := chain(ctx, nil)
func Compose(middleware ...Middleware) Middleware {
	for i, fn := range middleware {
		if fn == nil {
			panic(fmt.Errorf("%w: middleware at index %d is nil", ErrNotMiddleware, i))
		}
	}
	stack := make([]Middleware, len(middleware))
	copy(stack, middleware)

	return func(ctx *Context, next Next) error {
		index := -1

		var dispatch func(i int) error
		dispatch = func(i int) (err error) {
			if i <= index {
				return ErrMultipleNext
			}
			index = i

			if i == len(stack) {
				if next == nil {
					return nil
				}
				return next()
			}

			defer func() {
				if r := recover(); r != nil {
					if r == http.ErrAbortHandler {
						panic(r)
					}
					err = toError(r)
				}
			}()

			return stack[i](ctx, func() error { return dispatch(i + 1) })
		}

		return dispatch(0)
	}
}

// adaptHandler turns a net/http middleware into a Middleware. The wrapped
// handler's inner call is mapped onto next(); a request replaced by the
// legacy middleware (for example one carrying extra context values) is
// propagated to the context and both facets.
func adaptHandler(legacy func(http.Handler) http.Handler) Middleware {
	return func(ctx *Context, next Next) error {
		var (
			err    error
			called bool
		)

		h := legacy(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			if r != nil && r != ctx.Req {
				ctx.Req = r
				ctx.Request.Req = r
				ctx.Response.Req = r
			}
			err = next()
		}))
		h.ServeHTTP(ctx.Res, ctx.Req)

		// The legacy middleware answered the request itself.
		if !called && ctx.Res.HeadersSent() {
			ctx.Respond = false
		}
		return err
	}
}
