package cookies

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"slices"
)

// Keys signs data with the first key and verifies against all of them, so
// keys can be rotated by prepending a new one.
type Keys struct {
	keys []string
}

// NewKeys returns a key list. Empty keys are dropped; nil is returned when no
// key remains.
func NewKeys(keys ...string) *Keys {
	keys = slices.DeleteFunc(slices.Clone(keys), func(s string) bool { return s == "" })
	if len(keys) == 0 {
		return nil
	}
	return &Keys{keys: keys}
}

// Sign returns the signature of data with the current key.
func (k *Keys) Sign(data string) string {
	return sign(data, k.keys[0])
}

// Verify reports whether digest is a valid signature of data for any key.
func (k *Keys) Verify(data, digest string) bool {
	return k.Index(data, digest) >= 0
}

// Index returns the index of the key that produced digest, or -1.
func (k *Keys) Index(data, digest string) int {
	for i, key := range k.keys {
		if subtle.ConstantTimeCompare([]byte(sign(data, key)), []byte(digest)) == 1 {
			return i
		}
	}
	return -1
}

func sign(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
