package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cumbres7/dashboard/internal/members"
	"github.com/cumbres7/dashboard/internal/web/sessions"
)

// session is a middleware that loads the session and injects it in the context.
func (s *Server) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.SessionStore.Get(r)
		if err != nil {
			if sess == nil {
				s.handleError(w, r, err)
				return
			}

			// A cookie signed with keys that are no longer configured. The
			// fresh session replaces it on the next save.
			s.deps.Logger.Info("discarding session cookie", "request_id", requestIDFromCtx(r.Context()), "error", err)
		}

		ctx := ctxWithSession(r.Context(), sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey string

const sessionCtxKey ctxKey = "_session"

func ctxWithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

func sessionFromCtx(ctx context.Context) (*sessions.Session, error) {
	sess, ok := ctx.Value(sessionCtxKey).(*sessions.Session)
	if !ok {
		return nil, fmt.Errorf("could not get session from context")
	}

	return sess, nil
}

// userFromCtx returns the session user stored in the session in ctx.
func userFromCtx(ctx context.Context) (members.User, bool) {
	sess, err := sessionFromCtx(ctx)
	if err != nil {
		return members.User{}, false
	}

	return sess.User()
}
