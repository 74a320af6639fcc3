package members

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials means the API did not recognise the email and
	// password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPasswordNotUpdated means the API accepted the update but did not
	// report a new password timestamp.
	ErrPasswordNotUpdated = errors.New("password not updated")
	// ErrPasswordAlreadyChanged means the member has no pending forced
	// password change.
	ErrPasswordAlreadyChanged = errors.New("password already changed")
)

// Service implements the member flows of the dashboard: signing in, the
// forced first-time password change and reading event notes.
type Service struct {
	api API

	// NowFunc is used to get the current time.
	// Exposed for testing purposes.
	NowFunc func() time.Time
}

func NewService(api API) *Service {
	return &Service{
		api:     api,
		NowFunc: time.Now,
	}
}

// Authenticate checks the credentials against the API and returns the
// member they belong to.
func (s *Service) Authenticate(ctx context.Context, c Credentials) (User, error) {
	u, ok, err := s.api.AuthenticateWithPassword(ctx, c.Email, c.Password)
	if err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}

	if !ok {
		return User{}, ErrInvalidCredentials
	}

	return u, nil
}

// ChangePassword performs the forced first-time password change for u.
//
// The old password is verified by authenticating with it before the
// update is sent. On success the returned user carries the timestamp
// stored by the API, which ends the forced change.
func (s *Service) ChangePassword(ctx context.Context, u User, pc PasswordChange) (User, error) {
	if !u.MustChangePassword() {
		return u, ErrPasswordAlreadyChanged
	}

	_, ok, err := s.api.AuthenticateWithPassword(ctx, u.Email, pc.OldPassword)
	if err != nil {
		return u, fmt.Errorf("verify old password: %w", err)
	}

	if !ok {
		return u, ErrInvalidCredentials
	}

	// Keystone stores DateTime values with millisecond precision.
	now := s.NowFunc().UTC().Truncate(time.Millisecond)

	updated, err := s.api.UpdatePassword(ctx, u.Email, pc.NewPassword, now)
	if err != nil {
		return u, fmt.Errorf("update password: %w", err)
	}

	if updated.IsZero() {
		return u, ErrPasswordNotUpdated
	}

	u.LastPasswordUpdate = updated
	return u, nil
}

// EventNotes returns the notes of all events.
func (s *Service) EventNotes(ctx context.Context) ([]EventNote, error) {
	notes, err := s.api.EventNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("event notes: %w", err)
	}

	return notes, nil
}
