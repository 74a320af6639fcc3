package members

import (
	"errors"
	"fmt"
)

const (
	// We put a generous upper cap on password length, so people can use
	// passphrases but we don't forward MBs of data to the API.
	maxPasswordBytes = 512

	// SecretMarker is a string we can look for in logs to see if the app
	// is accidentally exposing secrets.
	SecretMarker = "<!SECRET_REDACTED!>"
)

var ErrInvalidPassword = errors.New("invalid password")

// Password is a plaintext password on its way to the GraphQL API.
//
// It should never be persisted, logged or exposed in any other way. To
// protect ourselves from accidentally doing so, the type implements
// several common interfaces that would otherwise print its contents.
type Password struct {
	plain []byte
}

// ParsePassword creates a new Password from a plaintext string.
// It errors if the password is empty or too long.
func ParsePassword(pwd string) (Password, error) {
	if len(pwd) == 0 || len(pwd) > maxPasswordBytes {
		return Password{}, ErrInvalidPassword
	}

	return Password{
		plain: []byte(pwd),
	}, nil
}

// Equal reports whether both passwords hold the same plaintext.
func (p Password) Equal(other Password) bool {
	return string(p.plain) == string(other.plain)
}

// Plain returns the plaintext. Only the API client should call this.
func (p Password) Plain() string {
	return string(p.plain)
}

func (p Password) Format(f fmt.State, verb rune) {
	f.Write([]byte(SecretMarker))
}

func (p Password) MarshalText() ([]byte, error) {
	return []byte(SecretMarker), nil
}
