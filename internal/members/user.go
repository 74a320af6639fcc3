package members

import (
	"time"

	"github.com/cumbres7/dashboard/internal/email"
)

// User is the session user: the member currently signed in to the dashboard.
type User struct {
	ID    string
	Email email.Address
	// LastPasswordUpdate is the moment the member last set their own
	// password. The zero value means the member still uses the password
	// handed out by the association and must change it first.
	LastPasswordUpdate time.Time
}

// MustChangePassword reports whether the member has to change their
// password before they can see the dashboard.
func (u User) MustChangePassword() bool {
	return u.LastPasswordUpdate.IsZero()
}

// EventNote is a note attached to an association event.
type EventNote struct {
	Note string
}
