package strata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Test Password Hashing
func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	password := "mySecurePassword123!"
	hash, err := HashPassword(password)
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcryptCost, cost)

	assert.NoError(t, CheckPassword(password, hash))
	assert.Error(t, CheckPassword("wrongPassword", hash))
}

func TestPasswordCheck_DifferentHashEachTime(t *testing.T) {
	t.Parallel()

	password := "mySecurePassword123!"
	hash1, err := HashPassword(password)
	require.NoError(t, err)
	hash2, err := HashPassword(password)
	require.NoError(t, err)

	// bcrypt salts every hash
	assert.NotEqual(t, hash1, hash2)
	assert.NoError(t, CheckPassword(password, hash1))
	assert.NoError(t, CheckPassword(password, hash2))
}

func TestBasicAuth(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	users := map[string]string{"admin": string(hash)}

	app, _ := newTestApp()
	app.Use(BasicAuth("admin area", func(user string) (string, bool) {
		h, ok := users[user]
		return h, ok
	})).Use(func(ctx *Context, next Next) error {
		user, _ := GetUserID(ctx)
		ctx.SetBody("hello " + user)
		return nil
	})

	request := func(user, password string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if user != "" {
			req.SetBasicAuth(user, password)
		}
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)
		return rec
	}

	rec := request("admin", "s3cret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello admin", rec.Body.String())

	for _, creds := range [][2]string{{"", ""}, {"admin", "wrong"}, {"nobody", "s3cret"}} {
		rec := request(creds[0], creds[1])
		assert.Equal(t, http.StatusUnauthorized, rec.Code, creds[0])
		assert.Equal(t, "Unauthorized", rec.Body.String())
		assert.Equal(t, `Basic realm="admin area", charset="UTF-8"`, rec.Header().Get("WWW-Authenticate"))
	}
}
