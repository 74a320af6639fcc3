// Package keystone talks to the association's Keystone GraphQL API, which
// owns members, their passwords and the event notes.
package keystone

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	graphql "github.com/hasura/go-graphql-client"

	"github.com/cumbres7/dashboard/internal/email"
	"github.com/cumbres7/dashboard/internal/errorz"
	"github.com/cumbres7/dashboard/internal/krypto"
	"github.com/cumbres7/dashboard/internal/members"
)

// Settings contains the settings for the GraphQL API.
type Settings struct {
	Endpoint *url.URL
	// Token is sent as a bearer token when set.
	Token krypto.Secret
}

// Client implements members.API using the GraphQL API.
type Client struct {
	gql *graphql.Client
}

var _ members.API = (*Client)(nil)

// NewClient creates a new client. Timeouts are the responsibility of httpClient.
func NewClient(httpClient *http.Client, s Settings) *Client {
	gql := graphql.NewClient(s.Endpoint.String(), httpClient)

	if !s.Token.IsEmpty() {
		token := string(s.Token.SecretValue())
		gql = gql.WithRequestModifier(func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		})
	}

	return &Client{gql: gql}
}

// DateTime is the Keystone DateTime scalar. Its type name is used as the
// GraphQL variable type.
type DateTime string

type userItem struct {
	ID                 string  `graphql:"id"`
	Email              string  `graphql:"email"`
	LastPasswordUpdate *string `graphql:"lastPasswordUpdate"`
}

type signInMutation struct {
	AuthenticateUserWithPassword struct {
		Success struct {
			Item *userItem `graphql:"item"`
		} `graphql:"... on UserAuthenticationWithPasswordSuccess"`
	} `graphql:"authenticateUserWithPassword(email: $email, password: $password)"`
}

type resetPasswordMutation struct {
	UpdateUser *struct {
		Email              string  `graphql:"email"`
		LastPasswordUpdate *string `graphql:"lastPasswordUpdate"`
	} `graphql:"updateUser(where: {email: $email}, data: {password: $newPassword, lastPasswordUpdate: $time})"`
}

type eventsQuery struct {
	Events []struct {
		Note *string `graphql:"note"`
	} `graphql:"events"`
}

// AuthenticateWithPassword runs the authenticateUserWithPassword mutation.
// A failure result of the mutation is reported as ok == false.
func (c *Client) AuthenticateWithPassword(ctx context.Context, addr email.Address, pwd members.Password) (members.User, bool, error) {
	var m signInMutation
	vars := map[string]any{
		"email":    graphql.String(addr),
		"password": graphql.String(pwd.Plain()),
	}

	err := c.gql.Mutate(ctx, &m, vars, graphql.OperationName("SignIn"))
	if err != nil {
		return members.User{}, false, upstream("authenticate user", err)
	}

	item := m.AuthenticateUserWithPassword.Success.Item
	if item == nil {
		return members.User{}, false, nil
	}

	u, err := item.toUser()
	if err != nil {
		return members.User{}, false, upstream("authenticate user", err)
	}

	return u, true, nil
}

// UpdatePassword runs the updateUser mutation for the member identified by addr.
func (c *Client) UpdatePassword(ctx context.Context, addr email.Address, pwd members.Password, at time.Time) (time.Time, error) {
	var m resetPasswordMutation
	vars := map[string]any{
		"email":       graphql.String(addr),
		"newPassword": graphql.String(pwd.Plain()),
		"time":        DateTime(at.UTC().Format(time.RFC3339Nano)),
	}

	err := c.gql.Mutate(ctx, &m, vars, graphql.OperationName("ResetPassword"))
	if err != nil {
		return time.Time{}, upstream("update password", err)
	}

	if m.UpdateUser == nil {
		return time.Time{}, nil
	}

	updated, err := parseDateTime(m.UpdateUser.LastPasswordUpdate)
	if err != nil {
		return time.Time{}, upstream("update password", err)
	}

	return updated, nil
}

// EventNotes runs the events query. Events without a note are skipped.
func (c *Client) EventNotes(ctx context.Context) ([]members.EventNote, error) {
	var q eventsQuery

	err := c.gql.Query(ctx, &q, nil, graphql.OperationName("EventNotes"))
	if err != nil {
		return nil, upstream("list events", err)
	}

	notes := make([]members.EventNote, 0, len(q.Events))
	for _, e := range q.Events {
		if e.Note == nil || *e.Note == "" {
			continue
		}
		notes = append(notes, members.EventNote{Note: *e.Note})
	}

	return notes, nil
}

func (i userItem) toUser() (members.User, error) {
	addr, err := email.ParseAddress(i.Email)
	if err != nil {
		return members.User{}, fmt.Errorf("member %s: %w", i.ID, err)
	}

	last, err := parseDateTime(i.LastPasswordUpdate)
	if err != nil {
		return members.User{}, fmt.Errorf("member %s: %w", i.ID, err)
	}

	return members.User{
		ID:                 i.ID,
		Email:              addr,
		LastPasswordUpdate: last,
	}, nil
}

// parseDateTime parses a nullable DateTime. null and "" are the zero time.
func parseDateTime(v *string) (time.Time, error) {
	if v == nil || *v == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, *v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid DateTime %q: %w", *v, err)
	}

	return t, nil
}

func upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, errorz.ErrUpstream, err)
}
