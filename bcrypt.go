package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is deliberately above the library default; password
// hashing is supposed to be slow.
const DefaultBcryptCost = 14

// Hasher wraps bcrypt with a tunable work factor.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher. A cost outside bcrypt's valid range falls
// back to DefaultBcryptCost.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return Hasher{cost: cost}
}

// Cost reports the configured work factor.
func (h Hasher) Cost() int {
	return h.cost
}

// Hash generates a salted password hash.
func (h Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	cost := h.cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(digest), err
}

// Compare validates the given cleartext password against a stored hash.
// Any failure, including a malformed digest, reports as a mismatch; this
// never panics and never leaks digest internals.
func (h Hasher) Compare(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrMismatchedHashAndPassword
	}
	return nil
}
