package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor used by HashPassword.
const BcryptCost = 12

// HashPassword generates a bcrypt hash suitable for AUTH_PASSWORD.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a plain text password with a hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsBcryptHash reports whether s looks like a bcrypt hash ($2a$, $2b$ or $2y$, 60 chars).
func IsBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// checkPassword accepts either a plain text or a bcrypt-hashed expected value.
func checkPassword(provided, expected string) bool {
	if IsBcryptHash(expected) {
		return CheckPasswordHash(provided, expected)
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
