package web

import (
	"net/http"

	"github.com/cumbres7/dashboard/internal/errorz"
	"github.com/cumbres7/dashboard/internal/members"
)

// The views the homepage can render.
const (
	viewLogin          = "login-user"
	viewChangePassword = "change-password"
	viewDashboard      = "dashboard"
)

// homeView selects the view for the homepage. Exactly one view applies:
// the login form without a session user, the password change form while
// the user still has the initial password and the dashboard otherwise.
func homeView(u members.User, loggedIn bool) string {
	switch {
	case !loggedIn:
		return viewLogin
	case u.MustChangePassword():
		return viewChangePassword
	default:
		return viewDashboard
	}
}

// publicOnly registers a handler that is only available without a session user.
func (s *Server) publicOnly(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := userFromCtx(r.Context())
		if ok {
			s.handleError(w, r, errorz.ErrNotFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

// loggedIn registers a handler that is only available with a session user.
func (s *Server) loggedIn(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := userFromCtx(r.Context())
		if !ok {
			s.handleError(w, r, errorz.ErrNotFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

// mustChangePassword registers a handler that is only available while the
// session user has to change the initial password.
func (s *Server) mustChangePassword(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userFromCtx(r.Context())
		if homeView(u, ok) != viewChangePassword {
			s.handleError(w, r, errorz.ErrNotFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}
