package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"photoattend/internal/apperr"
)

// MinPasswordLength matches the hosted identity provider's default.
const MinPasswordLength = 6

// HashPassword returns a bcrypt hash.
func HashPassword(pw string) (string, error) {
	if len(pw) < MinPasswordLength {
		return "", apperr.Newf(apperr.KindInvalidArgument, "Password should be at least %d characters.", MinPasswordLength)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt refuses passwords over 72 bytes
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.New(apperr.KindInvalidArgument, "Password is too long.")
		}
		return "", err
	}
	return string(b), nil
}

// CheckPassword reports whether pw matches hash.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}
