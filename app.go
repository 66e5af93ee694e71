package strata

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jack4Code/strata/accepts"
	"github.com/Jack4Code/strata/config"
	"github.com/Jack4Code/strata/cookies"
)

// ErrorObserver is notified of every request error, including the ones that
// happen after headers were sent.
type ErrorObserver func(err error, ctx *Context)

// Application owns the middleware list, composes it once and serves requests.
// Configure it fully before the first request: Use, Decorate and OnError
// panic with ErrAppFrozen afterwards.
type Application struct {
	env             string
	proxy           bool
	subdomainOffset int
	keys            *cookies.Keys
	silent          bool
	logger          *slog.Logger

	middleware []Middleware
	decorators []func(*Context)
	observers  []ErrorObserver

	once     sync.Once
	frozen   atomic.Bool
	composed Middleware
}

// Option configures an Application.
type Option func(*Application)

// WithEnv sets the environment label.
func WithEnv(env string) Option {
	return func(a *Application) {
		a.env = env
	}
}

// WithProxy makes the application trust X-Forwarded-* headers.
func WithProxy(proxy bool) Option {
	return func(a *Application) {
		a.proxy = proxy
	}
}

// WithSubdomainOffset sets how many trailing host labels Subdomains skips.
func WithSubdomainOffset(offset int) Option {
	return func(a *Application) {
		a.subdomainOffset = offset
	}
}

// WithKeys sets the cookie signing keys, newest first.
func WithKeys(keys ...string) Option {
	return func(a *Application) {
		a.keys = cookies.NewKeys(keys...)
	}
}

// WithSilent disables logging in the default error observer.
func WithSilent(silent bool) Option {
	return func(a *Application) {
		a.silent = silent
	}
}

// WithLogger sets the logger used by the default error observer and for
// warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithConfig applies the application settings of cfg. Zero values keep the
// defaults.
func WithConfig(cfg config.BaseConfig) Option {
	return func(a *Application) {
		if cfg.Environment != "" {
			a.env = cfg.Environment
		}
		if cfg.SubdomainOffset > 0 {
			a.subdomainOffset = cfg.SubdomainOffset
		}
		if len(cfg.Keys) > 0 {
			a.keys = cookies.NewKeys(cfg.Keys...)
		}
		a.proxy = cfg.Proxy
		a.silent = cfg.Silent
	}
}

// New creates an Application. The environment defaults to $APP_ENV, then
// "development".
func New(opts ...Option) *Application {
	a := &Application{
		env:             os.Getenv("APP_ENV"),
		subdomainOffset: 2,
		logger:          slog.Default(),
	}
	if a.env == "" {
		a.env = "development"
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Env returns the environment label.
func (a *Application) Env() string { return a.env }

// Proxy reports whether proxy headers are trusted.
func (a *Application) Proxy() bool { return a.proxy }

// SubdomainOffset returns the subdomain offset.
func (a *Application) SubdomainOffset() int { return a.subdomainOffset }

// Silent reports whether the default error observer is silenced.
func (a *Application) Silent() bool { return a.silent }

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger { return a.logger }

// Use appends a middleware. fn may be a Middleware, a function with the same
// signature, or a net/http middleware (func(http.Handler) http.Handler), which
// is adapted once here and logged as deprecated. Anything else panics with an
// error wrapping ErrNotMiddleware.
func (a *Application) Use(fn any) *Application {
	a.mustNotBeFrozen()

	var mw Middleware
	switch v := fn.(type) {
	case Middleware:
		mw = v
	case func(*Context, Next) error:
		mw = v
	case func(http.Handler) http.Handler:
		if v != nil {
			a.logger.Warn("strata: net/http middleware is deprecated, rewrite it as a strata.Middleware",
				slog.String("type", fmt.Sprintf("%T", fn)))
			mw = adaptHandler(v)
		}
	}
	if mw == nil {
		panic(fmt.Errorf("%w: got %T", ErrNotMiddleware, fn))
	}

	a.middleware = append(a.middleware, mw)
	return a
}

// Decorate registers fn to run on every new Context before the chain, e.g. to
// attach application helpers to State.
func (a *Application) Decorate(fn func(*Context)) *Application {
	a.mustNotBeFrozen()
	if fn == nil {
		panic(fmt.Errorf("%w: nil decorator", ErrNotMiddleware))
	}
	a.decorators = append(a.decorators, fn)
	return a
}

// OnError registers an error observer. The default observer is installed only
// when none is registered by the time the application starts serving.
func (a *Application) OnError(observer ErrorObserver) *Application {
	a.mustNotBeFrozen()
	if observer != nil {
		a.observers = append(a.observers, observer)
	}
	return a
}

func (a *Application) mustNotBeFrozen() {
	if a.frozen.Load() {
		panic(ErrAppFrozen)
	}
}

// Callback composes the middleware on first use and returns the request
// handler.
func (a *Application) Callback() http.HandlerFunc {
	a.composeOnce()
	return a.handleRequest
}

// ServeHTTP implements http.Handler.
func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.Callback()(w, r)
}

// Listen serves the application on addr. It blocks like http.ListenAndServe.
func (a *Application) Listen(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func (a *Application) composeOnce() {
	a.once.Do(func() {
		a.frozen.Store(true)
		if len(a.observers) == 0 {
			a.observers = []ErrorObserver{a.defaultErrorObserver}
		}
		a.composed = Compose(a.middleware...)
	})
}

func (a *Application) handleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := a.createContext(w, r)
	ctx.Res.SetStatus(http.StatusNotFound)

	defer func() {
		ctx.Response.closeStream()
		ctx.Res.onFinished(ctx.Req, ctx.OnError)
	}()

	if err := a.composed(ctx, nil); err != nil {
		ctx.OnError(err)
		return
	}
	if err := respond(ctx); err != nil {
		ctx.OnError(err)
	}
}

// createContext builds and cross-wires the Context and both facets.
func (a *Application) createContext(w http.ResponseWriter, r *http.Request) *Context {
	res := NewResponseWriter(w)

	ctx := &Context{
		App:     a,
		Req:     r,
		Res:     res,
		State:   State{},
		Respond: true,
	}
	request := &Request{App: a, Req: r, Res: res, Ctx: ctx}
	response := &Response{App: a, Req: r, Res: res, Ctx: ctx}
	request.Response = response
	response.Request = request
	ctx.Request = request
	ctx.Response = response

	ctx.OriginalURL = requestURI(r)
	request.OriginalURL = ctx.OriginalURL

	ctx.Cookies = cookies.New(r, res, a.keys, request.Secure())
	request.ip = clientIP(request)

	ctx.Accept = accepts.New(r.Header)
	request.accept = ctx.Accept

	for _, decorate := range a.decorators {
		decorate(ctx)
	}
	return ctx
}

// clientIP returns the first trusted proxy address, else the remote host.
func clientIP(r *Request) string {
	if ips := r.IPs(); len(ips) > 0 {
		return ips[0]
	}
	addr := r.Req.RemoteAddr
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (a *Application) emitError(err error, ctx *Context) {
	for _, observe := range a.observers {
		observe(err, ctx)
	}
}

// defaultErrorObserver logs server errors. Not-found and exposed errors are
// skipped, as is everything when the application is silent.
func (a *Application) defaultErrorObserver(err error, ctx *Context) {
	if err == nil {
		panic("strata: error observer called with nil error")
	}
	if errorStatus(err) == http.StatusNotFound || errorExposed(err) {
		return
	}
	if a.silent {
		return
	}

	attrs := []any{slog.String("error", err.Error())}
	if ctx != nil {
		attrs = append(attrs,
			slog.String("method", ctx.Req.Method),
			slog.String("url", ctx.OriginalURL),
		)
	}
	a.logger.Error("strata: request failed", attrs...)
}

// Inspect returns the diagnostic snapshot {subdomainOffset, proxy, env}.
func (a *Application) Inspect() map[string]any {
	return map[string]any{
		"subdomainOffset": a.subdomainOffset,
		"proxy":           a.proxy,
		"env":             a.env,
	}
}

// MarshalJSON encodes Inspect.
func (a *Application) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Inspect())
}
