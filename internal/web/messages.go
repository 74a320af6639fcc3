package web

import (
	"errors"

	"github.com/cumbres7/dashboard/internal/email"
	"github.com/cumbres7/dashboard/internal/errorz"
	"github.com/cumbres7/dashboard/internal/members"
)

// formErrorMessage is shown for every failed login or password change
// that is not a validation error.
const formErrorMessage = "Something went wrong while logging in, please be sure the email and password are right."

const invalidValueMessage = "Invalid value"

var fieldMessages = []struct {
	err error
	msg string
}{
	{err: members.ErrEmailRequired, msg: "Required"},
	{err: email.ErrInvalidEmail, msg: "Must be a valid email"},
	{err: members.ErrPasswordRequired, msg: "Required"},
	{err: members.ErrOldPasswordRequired, msg: "Old password is required"},
	{err: members.ErrNewPasswordRequired, msg: "New password is required"},
	{err: members.ErrPasswordsMismatch, msg: "Passwords must match"},
}

// fieldErrors returns one message per invalid form field.
func fieldErrors(invalidInput errorz.InvalidInput) map[string]string {
	byKey := invalidInput.ByKey()

	out := make(map[string]string, len(byKey))
	for key, err := range byKey {
		out[key] = fieldMessage(err)
	}

	return out
}

func fieldMessage(err error) string {
	for _, fm := range fieldMessages {
		if errors.Is(err, fm.err) {
			return fm.msg
		}
	}

	return invalidValueMessage
}
