package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"multi-tenant-notes/internal/errs"
)

// HashCost is the bcrypt cost used for new passwords. Tests lower it.
var HashCost = bcrypt.DefaultCost

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errs.Invalid("Password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", errs.Invalid("Password is too long")
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
