package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned for inputs bcrypt would silently truncate.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Bcrypt hashes passwords with a fixed cost.
type Bcrypt struct {
	Cost int
}

// NewBcrypt returns a hasher; a cost outside bcrypt's range falls back to
// bcrypt.DefaultCost.
func NewBcrypt(cost int) Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return Bcrypt{Cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (b Bcrypt) Hash(plain string) (string, error) {
	if len(plain) > 72 {
		return "", ErrPasswordTooLong
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plain), b.Cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Compare safely compares a bcrypt hash and a plain password.
func (b Bcrypt) Compare(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
