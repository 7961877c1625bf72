package library

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 100

	// DefaultBcryptCost matches bcrypt.DefaultCost.
	DefaultBcryptCost = 10
)

// Hasher turns secrets into opaque salted hashes and verifies them.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(hash, secret string) bool
}

// BcryptHasher is the production Hasher. Zero Cost means DefaultBcryptCost.
// Secrets are reduced to a base64 SHA-256 digest first, since bcrypt only
// takes 72 bytes and the policy allows 100 characters of any width.
type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(secret string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	b, err := bcrypt.GenerateFromPassword(prehash(secret), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h BcryptHasher) Verify(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(secret)) == nil
}

func prehash(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}

// ValidatePassword applies the length policy before any hashing happens.
func ValidatePassword(secret string) error {
	n := utf8.RuneCountInString(secret)
	switch {
	case n == 0:
		return invalid("password", "password is required")
	case n < MinPasswordLength:
		return invalid("password", "password must be at least %d characters", MinPasswordLength)
	case n > MaxPasswordLength:
		return invalid("password", "password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%&*"

// GeneratePassword returns a random password drawn from letters, digits and symbols.
// Lengths outside the policy are clamped into it.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength {
		length = MinPasswordLength
	}
	if length > MaxPasswordLength {
		length = MaxPasswordLength
	}
	max := big.NewInt(int64(len(passwordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
