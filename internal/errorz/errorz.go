package errorz

import (
	"errors"
)

var (
	// ErrNotFound signals that a resource (or a route in the current
	// session state) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUpstream signals that a dependency outside of this process,
	// such as the GraphQL API, failed to answer.
	ErrUpstream = errors.New("upstream failure")
)
