package auth

import (
	"crypto/sha256"

	"golang.org/x/crypto/bcrypt"
)

// Interface to create or compare pin hashes
type PinHasher interface {
	Hash(pin string) (string, error)

	// Compare known hash and worker provided pin
	// Must be protected against timing attacks
	Compare(hashedPin string, pin string) error
}

var DefaultHasher PinHasher = BcryptHasher{}

// Bcrypt pin hasher
// The pin is pre-hashed with sha256 so bcrypt input length limit never applies
type BcryptHasher struct {
	Cost int // bcrypt.DefaultCost if zero
}

func (h BcryptHasher) Hash(pin string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	sum := sha256.Sum256([]byte(pin))
	hash, err := bcrypt.GenerateFromPassword(sum[:], cost)
	return string(hash), err
}

func (h BcryptHasher) Compare(hashedPin string, pin string) error {
	sum := sha256.Sum256([]byte(pin))
	return bcrypt.CompareHashAndPassword([]byte(hashedPin), sum[:])
}
