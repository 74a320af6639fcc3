package members

import (
	"context"
	"sync"
	"time"

	"github.com/cumbres7/dashboard/internal/email"
)

// MemoryAPI is an API that keeps members and event notes in memory.
// It is meant for tests and local development without a GraphQL backend.
type MemoryAPI struct {
	mu        sync.Mutex
	members   map[email.Address]memoryMember
	notes     []EventNote
	updates   []PasswordUpdate
	failure   error
	noUpdates bool
}

// PasswordUpdate records a call to UpdatePassword.
type PasswordUpdate struct {
	Email email.Address
	At    time.Time
}

type memoryMember struct {
	user     User
	password string
}

func NewMemoryAPI() *MemoryAPI {
	return &MemoryAPI{
		members: make(map[email.Address]memoryMember),
	}
}

// AddMember registers a member with a plaintext password.
func (a *MemoryAPI) AddMember(u User, password string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.members[u.Email] = memoryMember{user: u, password: password}
}

// AddNotes appends event notes.
func (a *MemoryAPI) AddNotes(notes ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, n := range notes {
		a.notes = append(a.notes, EventNote{Note: n})
	}
}

// SetFailure makes every following call fail with err, or succeed again if err is nil.
func (a *MemoryAPI) SetFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.failure = err
}

// SetNoUpdates makes UpdatePassword accept updates without storing them.
func (a *MemoryAPI) SetNoUpdates(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.noUpdates = v
}

// PasswordUpdates returns the recorded calls to UpdatePassword.
func (a *MemoryAPI) PasswordUpdates() []PasswordUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]PasswordUpdate, len(a.updates))
	copy(out, a.updates)
	return out
}

func (a *MemoryAPI) AuthenticateWithPassword(_ context.Context, addr email.Address, pwd Password) (User, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failure != nil {
		return User{}, false, a.failure
	}

	m, ok := a.members[addr]
	if !ok || m.password != pwd.Plain() {
		return User{}, false, nil
	}

	return m.user, true, nil
}

func (a *MemoryAPI) UpdatePassword(_ context.Context, addr email.Address, pwd Password, at time.Time) (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failure != nil {
		return time.Time{}, a.failure
	}

	m, ok := a.members[addr]
	if !ok {
		return time.Time{}, ErrInvalidCredentials
	}

	a.updates = append(a.updates, PasswordUpdate{Email: addr, At: at})

	if a.noUpdates {
		return time.Time{}, nil
	}

	m.password = pwd.Plain()
	m.user.LastPasswordUpdate = at
	a.members[addr] = m

	return at, nil
}

func (a *MemoryAPI) EventNotes(_ context.Context) ([]EventNote, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failure != nil {
		return nil, a.failure
	}

	out := make([]EventNote, len(a.notes))
	copy(out, a.notes)
	return out, nil
}
