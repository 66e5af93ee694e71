package strata

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the State key RequireAuth and BasicAuth store the
// authenticated user ID under.
const UserIDKey = "userID"

// RequireAuth creates middleware that validates JWT tokens from the Authorization header.
// It expects the header format: "Authorization: Bearer <token>"
//
// If the token is valid, the user ID is stored in ctx.State under UserIDKey.
// If the token is invalid or missing, the chain stops with a 401 error that
// carries a WWW-Authenticate header.
//
// Usage:
//
//	app.Use(strata.RequireAuth("your-secret-key"))
func RequireAuth(secret string) Middleware {
	challenge := map[string]string{"WWW-Authenticate": `Bearer realm="strata"`}

	return func(ctx *Context, next Next) error {
		authHeader := ctx.Get("Authorization")
		if authHeader == "" {
			return NewError(http.StatusUnauthorized, "missing authorization header", challenge)
		}

		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return NewError(http.StatusUnauthorized, "invalid authorization format", challenge)
		}

		userID, err := ValidateJWT(parts[1], secret)
		if err != nil {
			return NewError(http.StatusUnauthorized, "invalid token", challenge, err)
		}

		ctx.State.Set(UserIDKey, userID)
		return next()
	}
}

// GenerateJWT creates a signed JWT token for the given user ID.
// The token includes standard claims (subject, issued at, expiration).
//
// Parameters:
//   - userID: The user identifier to embed in the token (stored as "sub" claim)
//   - secret: The secret key used to sign the token
//   - expiration: How long the token should be valid (e.g., 24 * time.Hour)
//
// Returns the signed token string or an error.
//
// Example:
//
//	token, err := strata.GenerateJWT("user123", "secret", 24*time.Hour)
func GenerateJWT(userID string, secret string, expiration time.Duration) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT parses and validates a JWT token string.
// It verifies the signature, expiration, and extracts the user ID.
//
// Returns the user ID (from "sub" claim) or an error if invalid.
//
// Example:
//
//	userID, err := strata.ValidateJWT(token, "secret")
func ValidateJWT(tokenString string, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		// Verify signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	if !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok {
		return "", errors.New("missing user ID in token")
	}

	return userID, nil
}

// GetUserID returns the user ID stored by RequireAuth or BasicAuth.
// Returns the user ID and a boolean indicating if it was found.
//
// Example:
//
//	func profile(ctx *strata.Context, next strata.Next) error {
//	    userID, ok := strata.GetUserID(ctx)
//	    ctx.Assert(ok, 401)
//	    ctx.SetBody(map[string]string{"id": userID})
//	    return nil
//	}
func GetUserID(ctx *Context) (string, bool) {
	return StateValue[string](ctx, UserIDKey)
}
