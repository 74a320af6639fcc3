package errorz

import (
	"errors"
	"strings"
)

// InvalidInput signals that a provided input is invalid due to the wrapped errors.
type InvalidInput []error

func (e InvalidInput) Error() string {
	var b strings.Builder
	b.WriteString("invalid input:\n")
	for _, err := range e {
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

func (e InvalidInput) Unwrap() []error {
	return e
}

// ByKey returns the first error reported for every key. Errors that
// are not Keyed are ignored.
func (e InvalidInput) ByKey() map[string]error {
	out := make(map[string]error, len(e))
	for _, err := range e {
		var k Keyed
		if !errors.As(err, &k) {
			continue
		}

		if _, ok := out[k.Key]; !ok {
			out[k.Key] = k.Err
		}
	}
	return out
}

// OrNil returns nil for an empty InvalidInput, so callers can collect
// errors and return the result unconditionally.
func (e InvalidInput) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
