package members

import (
	"errors"
	"strings"

	"github.com/cumbres7/dashboard/internal/email"
	"github.com/cumbres7/dashboard/internal/errorz"
)

// Validation errors, keyed by the form field they belong to.
var (
	ErrEmailRequired       = errors.New("email is required")
	ErrPasswordRequired    = errors.New("password is required")
	ErrOldPasswordRequired = errors.New("old password is required")
	ErrNewPasswordRequired = errors.New("new password is required")
	ErrPasswordsMismatch   = errors.New("passwords must match")
)

// Form field names, shared by the HTML forms and validation errors.
const (
	FieldEmail              = "email"
	FieldPassword           = "password"
	FieldOldPassword        = "oldPassword"
	FieldNewPassword        = "newPassword"
	FieldConfirmNewPassword = "confirmNewPassword"
)

// LoginForm holds the raw values of the login form.
type LoginForm struct {
	Email    string `schema:"email"`
	Password string `schema:"password"`
}

// Credentials are validated login form values.
type Credentials struct {
	Email    email.Address
	Password Password
}

// Parse validates the login form: a well-formed email and a non-empty
// password. All field errors are reported at once as errorz.InvalidInput.
func (f LoginForm) Parse() (Credentials, error) {
	var (
		c    Credentials
		errs errorz.InvalidInput
		err  error
	)

	switch {
	case strings.TrimSpace(f.Email) == "":
		errs = append(errs, errorz.Keyed{Key: FieldEmail, Err: ErrEmailRequired})
	default:
		c.Email, err = email.ParseAddress(f.Email)
		if err != nil {
			errs = append(errs, errorz.Keyed{Key: FieldEmail, Err: err})
		}
	}

	c.Password, err = parseRequired(f.Password, ErrPasswordRequired)
	if err != nil {
		errs = append(errs, errorz.Keyed{Key: FieldPassword, Err: err})
	}

	return c, errs.OrNil()
}

// PasswordChangeForm holds the raw values of the forced password change form.
type PasswordChangeForm struct {
	OldPassword        string `schema:"oldPassword"`
	NewPassword        string `schema:"newPassword"`
	ConfirmNewPassword string `schema:"confirmNewPassword"`
}

// PasswordChange is a validated password change request.
type PasswordChange struct {
	OldPassword Password
	NewPassword Password
}

// Parse validates the password change form: all fields are required and
// the confirmation has to equal the new password.
func (f PasswordChangeForm) Parse() (PasswordChange, error) {
	var (
		pc   PasswordChange
		errs errorz.InvalidInput
		err  error
	)

	pc.OldPassword, err = parseRequired(f.OldPassword, ErrOldPasswordRequired)
	if err != nil {
		errs = append(errs, errorz.Keyed{Key: FieldOldPassword, Err: err})
	}

	pc.NewPassword, err = parseRequired(f.NewPassword, ErrNewPasswordRequired)
	if err != nil {
		errs = append(errs, errorz.Keyed{Key: FieldNewPassword, Err: err})
	}

	// An empty confirmation reports the same message as a mismatch.
	if f.ConfirmNewPassword == "" || f.ConfirmNewPassword != f.NewPassword {
		errs = append(errs, errorz.Keyed{Key: FieldConfirmNewPassword, Err: ErrPasswordsMismatch})
	}

	return pc, errs.OrNil()
}

// parseRequired parses a password and reports an empty value as errRequired.
func parseRequired(raw string, errRequired error) (Password, error) {
	if raw == "" {
		return Password{}, errRequired
	}

	return ParsePassword(raw)
}
