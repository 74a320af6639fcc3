package main

import (
	"context"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// Test_UserStories tests the user stories of the application.
// These are end-to-end tests and won't check the nitty-gritty details or edge cases.
func Test_UserStories(t *testing.T) {
	t.Run("as a member with the initial password, I want to", testEnv(func(t *testing.T) {
		api := newKeystoneForTest(t)
		api.addMember("clh7", "casa7@cumbres7.mx", "bienvenido7", "")
		api.notes = []string{"Junta de vecinos el **sábado**"}

		// runAppForTest waits for the app to be up and stops it after the test finishes.
		runAppForTest(t)

		c := newClient(t)

		t.Run("view the login form", func(t *testing.T) {
			body := c.mustGetBody(t, "/", http.StatusOK)

			// Symbolic checks for the views. I'm not checking the HTML too much,
			// because I don't want every change to the front-end break these tests.
			assertViews(t, body, `id="login-user"`)
		})

		t.Run("see what is wrong with an incomplete form", func(t *testing.T) {
			body := c.mustPostForm(t, "/login", url.Values{
				"email":    {"casa7"},
				"password": {""},
			}, http.StatusUnprocessableEntity)

			assertViews(t, body, `id="login-user"`)
			assertContains(t, body, "Must be a valid email", "Required")
		})

		t.Run("be told when my credentials are wrong", func(t *testing.T) {
			body := c.mustPostForm(t, "/login", url.Values{
				"email":    {"casa7@cumbres7.mx"},
				"password": {"otra"},
			}, http.StatusUnauthorized)

			assertViews(t, body, `id="login-user"`)
			assertContains(t, body, "Something went wrong while logging in, please be sure the email and password are right.")
		})

		t.Run("login and be asked to change my password", func(t *testing.T) {
			body := c.mustPostForm(t, "/login", url.Values{
				"email":    {"casa7@cumbres7.mx"},
				"password": {"bienvenido7"},
			}, http.StatusOK)

			assertViews(t, body, `id="change-password"`)
		})

		t.Run("see what is wrong with a mismatched password", func(t *testing.T) {
			body := c.mustPostForm(t, "/password", url.Values{
				"oldPassword":        {"bienvenido7"},
				"newPassword":        {"nueva-contraseña"},
				"confirmNewPassword": {"nueva-contrasena"},
			}, http.StatusUnprocessableEntity)

			assertViews(t, body, `id="change-password"`)
			assertContains(t, body, "Passwords must match")
		})

		t.Run("change my password and view the dashboard", func(t *testing.T) {
			body := c.mustPostForm(t, "/password", url.Values{
				"oldPassword":        {"bienvenido7"},
				"newPassword":        {"nueva-contraseña"},
				"confirmNewPassword": {"nueva-contraseña"},
			}, http.StatusOK)

			assertViews(t, body, `id="dashboard"`)
			assertContains(t, body,
				"Your password has been changed.",
				"docs.google.com/spreadsheets",
				"<strong>sábado</strong>",
			)

			if api.lastPasswordUpdate("casa7@cumbres7.mx") == "" {
				t.Error("expected the api to store a password timestamp")
			}
		})

		t.Run("logout", func(t *testing.T) {
			body := c.mustPostForm(t, "/logout", url.Values{}, http.StatusOK)

			assertViews(t, body, `id="login-user"`)
			assertContains(t, body, "You have been logged out.")
		})

		t.Run("login with my new password and go straight to the dashboard", func(t *testing.T) {
			body := c.mustPostForm(t, "/login", url.Values{
				"email":    {"casa7@cumbres7.mx"},
				"password": {"nueva-contraseña"},
			}, http.StatusOK)

			assertViews(t, body, `id="dashboard"`)
		})
	}))

	t.Run("as a visitor, I can not", testEnv(func(t *testing.T) {
		newKeystoneForTest(t)
		runAppForTest(t)

		c := newClient(t)

		t.Run("post a form without a csrf token", func(t *testing.T) {
			req, err := http.NewRequest(http.MethodPost, baseURL+"/login", strings.NewReader("email=casa7%40cumbres7.mx&password=x"))
			if err != nil {
				t.Fatalf("unexpected error creating post request: %v", err)
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			res, err := c.http.Do(req)
			if err != nil {
				t.Fatalf("unexpected error during post request: %v", err)
			}
			defer res.Body.Close()

			if res.StatusCode != http.StatusForbidden {
				t.Errorf("got status %d, want %d", res.StatusCode, http.StatusForbidden)
			}
		})

		t.Run("change a password without logging in", func(t *testing.T) {
			c.mustPostForm(t, "/password", url.Values{
				"oldPassword":        {"a"},
				"newPassword":        {"b"},
				"confirmNewPassword": {"b"},
			}, http.StatusNotFound)
		})
	}))
}

// runAppForTest runs the app while the test is running.
// This function returns after the app is confirmed to be up and stops
// the app when the test is cleaned up.
func runAppForTest(t *testing.T) *safeBuffer {
	t.Helper()

	// This helper function does two things:
	// 1. Run the app in a goroutine.
	// 2. Wait for the app to be up and running.

	// Both these tasks are done concurrently and share the same context.
	// When this context is cancelled, both tasks will stop.

	buf := newBuffer()

	// we will stop the server after a timeout or when the test is cleaned up.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	done := make(chan struct{})
	t.Cleanup(func() {
		// stop both tasks if it's still in progress.
		cancel()
		<-done

		if t.Failed() {
			t.Logf("app output:\n%s", buf.String())
		}
	})

	// Task 1: Run the app.
	go func() {
		defer close(done)

		code := run(ctx, buf)
		if code != 0 {
			t.Errorf("run exited with code %d", code)
		}

		// stop the other task
		cancel()
	}()

	// Task 2: Wait for the app to be available.
	err := waitForStatusOK(ctx, publicURL)
	if err != nil {
		t.Fatalf("error waiting for status ok: %v", err)
	}

	return buf
}

var csrfTokenRe = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// client is a browser-like http client: it keeps cookies and posts forms
// with the CSRF token of the last page it received.
type client struct {
	http      *http.Client
	csrfToken string
}

func newClient(t *testing.T) *client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	return &client{
		http: &http.Client{
			Timeout: httpClientTimeout * 4,
			Jar:     jar,
		},
	}
}

func (c *client) mustGetBody(t *testing.T, path string, wantStatus int) string {
	t.Helper()

	res, err := c.http.Get(baseURL + path)
	if err != nil {
		t.Fatalf("unexpected error during get request: %v", err)
	}

	return c.mustReadBody(t, res, wantStatus)
}

func (c *client) mustPostForm(t *testing.T, path string, form url.Values, wantStatus int) string {
	t.Helper()

	if c.csrfToken == "" {
		c.mustGetBody(t, "/", http.StatusOK)
	}

	form.Set("csrf_token", c.csrfToken)

	res, err := c.http.PostForm(baseURL+path, form)
	if err != nil {
		t.Fatalf("unexpected error during post request: %v", err)
	}

	return c.mustReadBody(t, res, wantStatus)
}

func (c *client) mustReadBody(t *testing.T, res *http.Response, wantStatus int) string {
	t.Helper()

	defer func() {
		err := res.Body.Close()
		if err != nil {
			t.Fatalf("unexpected error closing response body: %v", err)
		}
	}()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("unexpected error reading response body: %v", err)
	}

	if res.StatusCode != wantStatus {
		t.Fatalf("got status code %d, want %d. body:\n%s", res.StatusCode, wantStatus, data)
	}

	body := string(data)
	if m := csrfTokenRe.FindStringSubmatch(body); m != nil {
		c.csrfToken = html.UnescapeString(m[1])
	}

	return body
}

// assertViews checks that body contains the want view and none of the others.
func assertViews(t *testing.T, body, want string) {
	t.Helper()

	for _, symbol := range []string{`id="login-user"`, `id="change-password"`, `id="dashboard"`} {
		got := strings.Contains(body, symbol)
		if got != (symbol == want) {
			t.Errorf("got %s in body %v, want %v. body:\n%s", symbol, got, symbol == want, body)
		}
	}
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()

	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("did not find\n%s\nin body\n%s", w, body)
		}
	}
}

// keystoneForTest is an in-memory stand-in for the members GraphQL API.
type keystoneForTest struct {
	mu      sync.Mutex
	members map[string]*memberForTest
	notes   []string
}

type memberForTest struct {
	id                 string
	email              string
	password           string
	lastPasswordUpdate string
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// newKeystoneForTest starts the fake API and points GRAPHQL_ENDPOINT at it.
func newKeystoneForTest(t *testing.T) *keystoneForTest {
	t.Helper()

	k := &keystoneForTest{
		members: make(map[string]*memberForTest),
	}

	srv := httptest.NewServer(http.HandlerFunc(k.serveHTTP))
	t.Cleanup(srv.Close)

	envForTest(t, "GRAPHQL_ENDPOINT", srv.URL+"/api/graphql")

	return k
}

func (k *keystoneForTest) addMember(id, addr, password, lastPasswordUpdate string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.members[addr] = &memberForTest{
		id:                 id,
		email:              addr,
		password:           password,
		lastPasswordUpdate: lastPasswordUpdate,
	}
}

func (k *keystoneForTest) lastPasswordUpdate(addr string) string {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.members[addr]
	if !ok {
		return ""
	}
	return m.lastPasswordUpdate
}

func (k *keystoneForTest) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req graphqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	str := func(key string) string {
		s, _ := req.Variables[key].(string)
		return s
	}

	var data map[string]any
	switch {
	case strings.Contains(req.Query, "authenticateUserWithPassword"):
		result := map[string]any{}
		if m, ok := k.members[str("email")]; ok && m.password == str("password") {
			result["item"] = m.item()
		}
		data = map[string]any{"authenticateUserWithPassword": result}
	case strings.Contains(req.Query, "updateUser"):
		m, ok := k.members[str("email")]
		if !ok {
			data = map[string]any{"updateUser": nil}
			break
		}
		m.password = str("newPassword")
		m.lastPasswordUpdate = str("time")
		data = map[string]any{"updateUser": map[string]any{
			"email":              m.email,
			"lastPasswordUpdate": m.lastPasswordUpdate,
		}}
	case strings.Contains(req.Query, "events"):
		events := make([]map[string]any, 0, len(k.notes))
		for _, n := range k.notes {
			events = append(events, map[string]any{"note": n})
		}
		data = map[string]any{"events": events}
	default:
		http.Error(w, "unknown operation", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func (m *memberForTest) item() map[string]any {
	var last any
	if m.lastPasswordUpdate != "" {
		last = m.lastPasswordUpdate
	}

	return map[string]any{
		"id":                 m.id,
		"email":              m.email,
		"lastPasswordUpdate": last,
	}
}
