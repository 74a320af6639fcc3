package sessions

import (
	"time"

	"github.com/gorilla/sessions"

	"github.com/cumbres7/dashboard/internal/email"
	"github.com/cumbres7/dashboard/internal/members"
)

const (
	keyUserID             = "userID"
	keyUserEmail          = "userEmail"
	keyLastPasswordUpdate = "lastPasswordUpdate"
)

// Session is the state kept for a browser between requests: the session
// user and flash messages.
type Session struct {
	base      *sessions.Session
	needsSave bool
}

func (s *Session) NeedsSave() bool {
	return s.needsSave
}

// User returns the session user, if any.
func (s *Session) User() (members.User, bool) {
	id, ok := s.base.Values[keyUserID].(string)
	if !ok {
		return members.User{}, false
	}

	addr, _ := s.base.Values[keyUserEmail].(string)
	u := members.User{
		ID:    id,
		Email: email.Address(addr),
	}

	// Values are only ever written by SetUser, an unparsable timestamp
	// means the cookie predates the format and is treated as empty.
	if raw, _ := s.base.Values[keyLastPasswordUpdate].(string); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err == nil {
			u.LastPasswordUpdate = t
		}
	}

	return u, true
}

// SetUser replaces the session user.
func (s *Session) SetUser(u members.User) {
	s.needsSave = true
	s.base.Values[keyUserID] = u.ID
	s.base.Values[keyUserEmail] = string(u.Email)

	last := ""
	if !u.LastPasswordUpdate.IsZero() {
		last = u.LastPasswordUpdate.UTC().Format(time.RFC3339Nano)
	}
	s.base.Values[keyLastPasswordUpdate] = last
}

// DeleteUser removes the session user.
func (s *Session) DeleteUser() {
	s.needsSave = true
	delete(s.base.Values, keyUserID)
	delete(s.base.Values, keyUserEmail)
	delete(s.base.Values, keyLastPasswordUpdate)
}

func (s *Session) AddFlash(flash any, vars ...string) {
	s.needsSave = true
	s.base.AddFlash(flash, vars...)
}

// ConsumeFlashes returns and removes all flash messages.
func (s *Session) ConsumeFlashes() []any {
	flashes := s.base.Flashes()
	if len(flashes) > 0 {
		s.needsSave = true
	}
	return flashes
}
