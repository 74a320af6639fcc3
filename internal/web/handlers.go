package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/cumbres7/dashboard/internal/errorz"
	"github.com/cumbres7/dashboard/internal/web/sessions"
)

// mapper is a generic HTTP handler that maps requests to target
// function calls and writes the outcome to the response.
type mapper[IN, OUT any] struct {
	s       *Server
	req     func(*http.Request) (IN, error)
	target  func(context.Context, IN) (OUT, error)
	success func(result[IN, OUT]) error
	fail    func(failure[IN]) error
}

// result is the result of a succesful request.
// it contains all relevant data because we can't know
// in advance what we will need to construct a response.
type result[IN, OUT any] struct {
	s    *Server
	r    *http.Request
	w    http.ResponseWriter
	sess *sessions.Session
	in   IN
	out  OUT
}

// failure is the result of a request that could not be mapped or
// for which the target function returned an error.
type failure[IN any] struct {
	s    *Server
	r    *http.Request
	w    http.ResponseWriter
	sess *sessions.Session
	in   IN
	err  error
}

// newHandler creates a HTTP Handler that:
// 1. Decodes the request form to a value of input type IN.
// 2. Calls the target func with that value.
// 3. Redirects to the homepage if the target func was successful.
//
// Errors are written using the server error handler.
func newHandler[IN, OUT any](s *Server, targetFunc func(context.Context, IN) (OUT, error)) *mapper[IN, OUT] {
	return &mapper[IN, OUT]{
		s: s,
		req: func(r *http.Request) (IN, error) {
			return decodeForm[IN](s, r)
		},
		target: targetFunc,
		success: func(r result[IN, OUT]) error {
			return r.s.redirectHome(r.w, r.r, r.sess)
		},
		fail: func(f failure[IN]) error {
			return f.err
		},
	}
}

// onSuccess overwrites the function that writes the response after the target func succeeded.
func (m *mapper[IN, OUT]) onSuccess(fn func(result[IN, OUT]) error) *mapper[IN, OUT] {
	m.success = fn
	return m
}

// onFail overwrites the function that writes the response after mapping
// or the target func failed. Errors it returns go to the server error handler.
func (m *mapper[IN, OUT]) onFail(fn func(failure[IN]) error) *mapper[IN, OUT] {
	m.fail = fn
	return m
}

func (m *mapper[IN, OUT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		m.s.handleError(w, r, err)
		return
	}

	in, err := m.req(r)
	if err != nil {
		m.handleFail(w, r, sess, in, err)
		return
	}

	out, err := m.target(r.Context(), in)
	if err != nil {
		m.handleFail(w, r, sess, in, err)
		return
	}

	err = m.success(result[IN, OUT]{
		s:    m.s,
		r:    r,
		w:    w,
		sess: sess,
		in:   in,
		out:  out,
	})
	if err != nil {
		m.s.handleError(w, r, err)
	}
}

func (m *mapper[IN, OUT]) handleFail(w http.ResponseWriter, r *http.Request, sess *sessions.Session, in IN, err error) {
	err = m.fail(failure[IN]{
		s:    m.s,
		r:    r,
		w:    w,
		sess: sess,
		in:   in,
		err:  err,
	})
	if err != nil {
		m.s.handleError(w, r, err)
	}
}

// decodeForm is the default way to map a request to a struct.
func decodeForm[IN any](s *Server, r *http.Request) (IN, error) {
	var in IN
	err := r.ParseForm()
	if err != nil {
		return in, err
	}

	// Remove the CSRF token from the form, it won't need to be mapped
	// to any target types and the decoder will fail on it.
	r.Form.Del(csrfFieldName)

	err = s.decoder.Decode(&in, r.Form)
	return in, decodeError(err)
}

func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var multiErr schema.MultiError
	if errors.As(err, &multiErr) {
		var invalidInput errorz.InvalidInput
		for key, e := range multiErr {
			invalidInput = append(invalidInput, errorz.Keyed{
				Key: key,
				Err: e,
			})
		}

		return invalidInput
	}

	return err
}
