package strata

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int // seconds
}

// DefaultCORSConfig returns a permissive CORS config for development
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// CORS returns middleware that adds CORS headers to every response and
// answers preflight requests (OPTIONS with Access-Control-Request-Method)
// with 204 without running the rest of the chain.
//
// With AllowCredentials the request origin is echoed instead of "*".
func CORS(cfg CORSConfig) Middleware {
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	return func(ctx *Context, next Next) error {
		ctx.Vary("Origin")

		origin := ctx.Get("Origin")
		if origin == "" {
			return next()
		}

		allowOrigin := ""
		for _, allowed := range cfg.AllowedOrigins {
			if allowed == "*" {
				allowOrigin = "*"
				if cfg.AllowCredentials {
					allowOrigin = origin
				}
				break
			}
			if allowed == origin {
				allowOrigin = origin
				break
			}
		}
		if allowOrigin == "" {
			return next()
		}

		ctx.Set("Access-Control-Allow-Origin", allowOrigin)
		if cfg.AllowCredentials {
			ctx.Set("Access-Control-Allow-Credentials", "true")
		}

		if ctx.Method() == http.MethodOptions && ctx.Get("Access-Control-Request-Method") != "" {
			if methods != "" {
				ctx.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				ctx.Set("Access-Control-Allow-Headers", headers)
			} else if requested := ctx.Get("Access-Control-Request-Headers"); requested != "" {
				ctx.Set("Access-Control-Allow-Headers", requested)
			}
			if cfg.MaxAge > 0 {
				ctx.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			ctx.SetStatus(http.StatusNoContent)
			return nil
		}

		if exposed != "" {
			ctx.Set("Access-Control-Expose-Headers", exposed)
		}

		// Error responses replace all headers, so keep the CORS ones on them.
		if err := next(); err != nil {
			keep := map[string]string{}
			for _, field := range []string{
				"Access-Control-Allow-Origin",
				"Access-Control-Allow-Credentials",
				"Access-Control-Expose-Headers",
				"Vary",
			} {
				if v := ctx.Response.Get(field); v != "" {
					keep[field] = v
				}
			}
			return WithHeaders(err, keep)
		}
		return nil
	}
}
