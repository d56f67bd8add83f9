package identity

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenLength is the token size in bytes. 32 bytes gives 256 bits
// of entropy, comfortably past the point where collisions matter.
const DefaultTokenLength = 32

// DefaultRecoveryTTL is how long a recovery token stays valid.
const DefaultRecoveryTTL = time.Hour

// TokenSource mints opaque single-use tokens.
type TokenSource interface {
	NewToken() (string, error)
}

type randomTokenSource struct {
	byteLength int
}

// NewTokenSource returns the default crypto/rand backed source. Tokens are
// URL-safe base64 with no padding so they can ride in a query string.
func NewTokenSource() TokenSource {
	return randomTokenSource{byteLength: DefaultTokenLength}
}

func (s randomTokenSource) NewToken() (string, error) {
	length := s.byteLength
	if length <= 0 {
		length = DefaultTokenLength
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes for token")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// TokensEqual compares two tokens in constant time. Empty values never
// match anything, including each other.
func TokensEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
