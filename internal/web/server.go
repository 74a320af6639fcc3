package web

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"
	"github.com/gorilla/schema"

	"github.com/cumbres7/dashboard/internal/errorz"
	"github.com/cumbres7/dashboard/internal/krypto"
	"github.com/cumbres7/dashboard/internal/markdown"
	"github.com/cumbres7/dashboard/internal/members"
	"github.com/cumbres7/dashboard/internal/web/sessions"
)

const (
	csrfCookieName = "c7-csrf"
	csrfFieldName  = "csrf_token"

	// maxLimiters bounds the number of client IPs tracked by the login throttle.
	maxLimiters = 10_000
)

// ViewRenderer renders named views with the given data.
type ViewRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger       *slog.Logger
	ViewRenderer ViewRenderer
	Members      *members.Service
	Markdown     *markdown.Renderer
	SessionStore *sessions.Store
	DistFS       http.FileSystem
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	CSRFKey        krypto.Key
	SecureCookie   bool
	SpreadsheetURL *url.URL
	// LoginRate is the number of login and password change attempts
	// allowed per second for a single client IP, LoginBurst the bucket size.
	LoginRate  float64
	LoginBurst int
}

type Server struct {
	deps     *ServerDeps
	cfg      ServerConfig
	mux      *http.ServeMux
	decoder  *schema.Decoder
	limiters *limiterCache[string]
	handler  http.Handler
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	s := &Server{
		deps:     deps,
		cfg:      cfg,
		mux:      http.NewServeMux(),
		decoder:  schema.NewDecoder(),
		limiters: newLimiterCache[string](cfg.LoginRate, cfg.LoginBurst),
	}

	// Form posts are created using newHandler. It returns handlers that map between
	// HTTP requests, target functions and HTTP responses. Both the success and
	// failure responses are customizable.

	// Homepage endpoint, renders one of the three views depending on the session user.
	s.mux.HandleFunc("GET /{$}", s.home)

	// Login endpoint.
	{
		const route = "POST /login"
		h := newHandler(s, func(ctx context.Context, f members.LoginForm) (members.User, error) {
			c, err := f.Parse()
			if err != nil {
				return members.User{}, err
			}

			return deps.Members.Authenticate(ctx, c)
		})
		h.onSuccess(func(r result[members.LoginForm, members.User]) error {
			// Clear the CSRF token so a token obtained before logging in is
			// worthless afterwards. A new one is issued on the next GET request.
			http.SetCookie(r.w, &http.Cookie{
				Name:   csrfCookieName,
				Path:   "/",
				MaxAge: -1,
			})

			r.sess.SetUser(r.out)
			return r.s.redirectHome(r.w, r.r, r.sess)
		})
		h.onFail(func(f failure[members.LoginForm]) error {
			status, state, err := f.s.formFailure(f.r, f.err)
			if err != nil {
				return err
			}

			return f.s.writeView(f.w, f.r, status, viewLogin, loginPage{
				formState: state,
				Email:     f.in.Email,
			})
		})

		s.publicOnly(route, s.throttle(h))
	}

	// Forced password change endpoint.
	{
		const route = "POST /password"
		h := newHandler(s, func(ctx context.Context, f members.PasswordChangeForm) (members.User, error) {
			pc, err := f.Parse()
			if err != nil {
				return members.User{}, err
			}

			u, ok := userFromCtx(ctx)
			if !ok {
				return members.User{}, errorz.ErrNotFound
			}

			return deps.Members.ChangePassword(ctx, u, pc)
		})
		h.onSuccess(func(r result[members.PasswordChangeForm, members.User]) error {
			r.sess.SetUser(r.out)
			r.sess.AddFlash("Your password has been changed.")
			return r.s.redirectHome(r.w, r.r, r.sess)
		})
		h.onFail(func(f failure[members.PasswordChangeForm]) error {
			status, state, err := f.s.formFailure(f.r, f.err)
			if err != nil {
				return err
			}

			return f.s.writeView(f.w, f.r, status, viewChangePassword, changePasswordPage{
				formState: state,
			})
		})

		s.mustChangePassword(route, s.throttle(h))
	}

	// Logout endpoint.
	{
		const route = "POST /logout"
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessionFromCtx(r.Context())
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			sess.DeleteUser()
			sess.AddFlash("You have been logged out.")
			err = s.redirectHome(w, r, sess)
			if err != nil {
				s.handleError(w, r, err)
			}
		})

		s.loggedIn(route, h)
	}

	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(s.deps.DistFS)))

	// Wrap the mux with global middlewares.
	csrfMW := csrf.Protect(
		cfg.CSRFKey.SecretValue(),
		csrf.CookieName(csrfCookieName),
		csrf.FieldName(csrfFieldName),
		csrf.Path("/"),
		csrf.Secure(cfg.SecureCookie),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure)),
	)

	middlewares := []func(http.Handler) http.Handler{
		requestID,
		csrfMW,
		s.session,
	}
	s.handler = s.mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		s.handler = middlewares[i](s.handler)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	u, ok := userFromCtx(r.Context())

	name := homeView(u, ok)

	var data any
	switch name {
	case viewLogin:
		data = loginPage{}
	case viewChangePassword:
		data = changePasswordPage{}
	case viewDashboard:
		data = s.dashboard(r)
	}

	err := s.writeView(w, r, http.StatusOK, name, data)
	if err != nil {
		s.handleError(w, r, err)
	}
}

// dashboard prepares the dashboard page. Event notes are optional, when
// they can't be loaded the page is shown without them.
func (s *Server) dashboard(r *http.Request) dashboardPage {
	page := dashboardPage{}
	if s.cfg.SpreadsheetURL != nil {
		page.SpreadsheetURL = s.cfg.SpreadsheetURL.String()
	}

	notes, err := s.deps.Members.EventNotes(r.Context())
	if err != nil {
		s.deps.Logger.Warn("failed to load event notes", "request_id", requestIDFromCtx(r.Context()), "error", err)
		return page
	}

	srcs := make([]string, 0, len(notes))
	for _, n := range notes {
		srcs = append(srcs, n.Note)
	}

	page.Notes, err = s.deps.Markdown.RenderAll(srcs)
	if err != nil {
		s.deps.Logger.Warn("failed to render event notes", "request_id", requestIDFromCtx(r.Context()), "error", err)
		page.Notes = []template.HTML{}
	}

	return page
}

// formFailure maps the error of a failed form post to the status and form
// state the view is rendered with. Errors that are not the result of the
// form or the API are returned as is.
func (s *Server) formFailure(r *http.Request, err error) (int, formState, error) {
	var invalidInput errorz.InvalidInput
	switch {
	case errors.As(err, &invalidInput):
		return http.StatusUnprocessableEntity, formState{FieldErrors: fieldErrors(invalidInput)}, nil
	case errors.Is(err, members.ErrInvalidCredentials):
		s.deps.Logger.Info("credentials rejected", "url", r.URL.String(), "request_id", requestIDFromCtx(r.Context()))
		return http.StatusUnauthorized, formState{FormError: formErrorMessage}, nil
	case errors.Is(err, errorz.ErrUpstream), errors.Is(err, members.ErrPasswordNotUpdated):
		s.deps.Logger.Error("request to members api failed", "url", r.URL.String(), "request_id", requestIDFromCtx(r.Context()), "error", err)
		return http.StatusBadGateway, formState{FormError: formErrorMessage}, nil
	default:
		return 0, formState{}, err
	}
}

// redirectHome saves the session and redirects the client to the homepage.
func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request, sess *sessions.Session) error {
	err := s.deps.SessionStore.Save(r, w, sess)
	if err != nil {
		return err
	}

	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}

// writeView renders the view to a buffer first, so a failing template
// results in a proper error response instead of half a page.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, status int, name string, data any) error {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		return err
	}

	vd := s.viewData(r, sess, name, data)

	var buf bytes.Buffer
	err = s.deps.ViewRenderer.Render(&buf, name, vd)
	if err != nil {
		return err
	}

	if sess.NeedsSave() {
		err = s.deps.SessionStore.Save(r, w, sess)
		if err != nil {
			return err
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	if err != nil {
		s.deps.Logger.Warn("failed to write view", "view", name, "request_id", requestIDFromCtx(r.Context()), "error", err)
	}

	return nil
}

func (s *Server) csrfFailure(w http.ResponseWriter, r *http.Request) {
	s.deps.Logger.Info("csrf check failed", "url", r.URL.String(), "request_id", requestIDFromCtx(r.Context()), "reason", csrf.FailureReason(r))
	http.Error(w, "forbidden", http.StatusForbidden)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errorz.ErrNotFound) || errors.Is(err, members.ErrPasswordAlreadyChanged) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	s.deps.Logger.Error("internal server error", "url", r.URL.String(), "request_id", requestIDFromCtx(r.Context()), "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
