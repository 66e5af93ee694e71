package strata

import (
	"log/slog"
	"time"
)

// AccessLog returns middleware that logs one line per request after the rest
// of the chain ran. Failed requests are logged at Warn (4xx) or Error (5xx).
// A nil logger means the application logger.
func AccessLog(logger *slog.Logger) Middleware {
	return func(ctx *Context, next Next) error {
		start := time.Now()
		err := next()

		log := logger
		if log == nil {
			log = ctx.App.Logger()
		}

		status := ctx.Status()
		level := slog.LevelInfo
		if err != nil {
			status = responseStatus(err)
		}
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("method", ctx.Method()),
			slog.String("url", ctx.OriginalURL),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", ctx.IP()),
		}
		if id := GetRequestID(ctx); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}

		log.LogAttrs(ctx, level, "request", attrs...)
		return err
	}
}
