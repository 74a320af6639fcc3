package web

import (
	"html/template"
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/cumbres7/dashboard/internal"
	"github.com/cumbres7/dashboard/internal/members"
	"github.com/cumbres7/dashboard/internal/web/sessions"
)

// viewData is the data every view is rendered with. Data holds the
// page specific part.
type viewData struct {
	Version       string
	CSRFFieldName string
	CSRFToken     string
	IsLoggedIn    bool
	User          members.User
	Flashes       []any
	View          string
	Data          any
}

// formState is the outcome of a failed form post. Field errors are keyed
// by form field name.
type formState struct {
	FieldErrors map[string]string
	FormError   string
}

type loginPage struct {
	formState
	Email string
}

type changePasswordPage struct {
	formState
}

type dashboardPage struct {
	SpreadsheetURL string
	Notes          []template.HTML
}

// viewData prepares the data that will be passed to the view.
// Consuming the flashes alters the session, so it has to be saved afterwards.
func (s *Server) viewData(r *http.Request, sess *sessions.Session, name string, data any) *viewData {
	u, loggedIn := sess.User()

	return &viewData{
		Version:       internal.ShortRevision(),
		CSRFFieldName: csrfFieldName,
		CSRFToken:     csrf.Token(r),
		IsLoggedIn:    loggedIn,
		User:          u,
		Flashes:       sess.ConsumeFlashes(),
		View:          name,
		Data:          data,
	}
}
