package sessions

import (
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/cumbres7/dashboard/internal/krypto"
)

const CookieName = "c7-session"

// Store loads and saves sessions from a gorilla/sessions store.
type Store struct {
	store sessions.Store
}

func NewStore(store sessions.Store) *Store {
	return &Store{store: store}
}

// NewCookieStore creates a Store that keeps sessions in a signed and
// encrypted cookie. keys are (hash key, block key) pairs, newest first.
//
// The cookie has no expiry, so it ends with the browser session.
func NewCookieStore(keys []krypto.Key, secure bool) *Store {
	cs := sessions.NewCookieStore(krypto.SecretValues(keys)...)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return NewStore(cs)
}

// Get returns the session of the request. If the session cookie could
// not be decoded, a new session is returned together with the error.
func (s *Store) Get(r *http.Request) (*Session, error) {
	base, err := s.store.Get(r, CookieName)
	if base == nil {
		return nil, err
	}

	return &Session{base: base}, err
}

func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *Session) error {
	err := s.store.Save(r, w, sess.base)
	if err != nil {
		return err
	}

	sess.needsSave = false
	return nil
}
