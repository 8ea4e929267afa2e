package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPasscode is returned when a staff passcode does not match.
var ErrInvalidPasscode = errors.New("invalid passcode")

// HashPasscode returns the bcrypt hash stored in STAFF_PASSCODE_HASH.
func HashPasscode(passcode string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(passcode), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash passcode: %w", err)
	}
	return string(h), nil
}

// CheckPasscode compares passcode against the shared staff hash.
func CheckPasscode(hash, passcode string) error {
	if hash == "" || passcode == "" {
		return ErrInvalidPasscode
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passcode)); err != nil {
		return ErrInvalidPasscode
	}
	return nil
}
