package strata

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost defines the computational cost of the bcrypt algorithm.
const bcryptCost = 12

// HashPassword generates a bcrypt hash of the given password.
// The resulting hash is safe to store in a database.
//
// Example:
//
//	hash, err := strata.HashPassword("user_password123")
//	if err != nil {
//	    return err
//	}
//	// Store hash in database
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword verifies that a plaintext password matches a bcrypt hash.
// Returns nil if the password is correct, or an error if incorrect.
//
// Example:
//
//	if err := strata.CheckPassword(input, storedHash); err != nil {
//	    return strata.NewError(401, "invalid password")
//	}
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// HashLookup returns the stored bcrypt hash for a user, or false when the
// user is unknown.
type HashLookup func(user string) (hash string, ok bool)

// BasicAuth creates middleware that checks HTTP Basic credentials against
// bcrypt hashes returned by lookup. On success the user name is stored in
// ctx.State under UserIDKey; otherwise the chain stops with a 401 error that
// asks the client to authenticate.
//
// Example:
//
//	hashes := map[string]string{"admin": adminHash}
//	app.Use(strata.BasicAuth("admin area", func(u string) (string, bool) {
//	    h, ok := hashes[u]
//	    return h, ok
//	}))
func BasicAuth(realm string, lookup HashLookup) Middleware {
	challenge := map[string]string{"WWW-Authenticate": `Basic realm="` + realm + `", charset="UTF-8"`}

	return func(ctx *Context, next Next) error {
		user, password, ok := ctx.Req.BasicAuth()
		if !ok {
			return NewError(http.StatusUnauthorized, challenge)
		}

		hash, found := lookup(user)
		if !found || CheckPassword(password, hash) != nil {
			return NewError(http.StatusUnauthorized, challenge)
		}

		ctx.State.Set(UserIDKey, user)
		return next()
	}
}
