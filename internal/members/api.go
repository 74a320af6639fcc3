package members

import (
	"context"
	"time"

	"github.com/cumbres7/dashboard/internal/email"
)

// API is the external GraphQL backend that owns members and events.
// Every state change of a member happens there.
type API interface {
	// AuthenticateWithPassword verifies the credentials. ok is false when
	// the API answered but did not return a member.
	AuthenticateWithPassword(ctx context.Context, addr email.Address, pwd Password) (u User, ok bool, err error)
	// UpdatePassword stores a new password for the member with the given
	// email and records at as the moment of the update. It returns the
	// timestamp the API stored, which is zero if it stored none.
	UpdatePassword(ctx context.Context, addr email.Address, pwd Password, at time.Time) (time.Time, error)
	// EventNotes lists the notes of all events.
	EventNotes(ctx context.Context) ([]EventNote, error)
}
