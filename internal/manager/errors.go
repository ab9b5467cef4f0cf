package manager

import (
	"fmt"
	"strings"
)

// allBackendsFailedError is fatal: the CPU backend is defined to never fail
// for valid input, so reaching this indicates a programming error rather
// than an operational condition.
type allBackendsFailedError struct {
	styleID string
	errs    []error
}

func (e *allBackendsFailedError) Error() string {
	parts := make([]string, 0, len(e.errs))
	for _, err := range e.errs {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("all backends failed for style %s: %s", e.styleID, strings.Join(parts, "; "))
}

// ErrAllBackendsFailed constructs the fatal dispatch error.
func ErrAllBackendsFailed(styleID string, errs []error) error {
	return &allBackendsFailedError{styleID: styleID, errs: errs}
}

// IsAllBackendsFailed reports whether err indicates total dispatch failure.
func IsAllBackendsFailed(err error) bool {
	_, ok := err.(*allBackendsFailedError)
	return ok
}
