package backend

import "fmt"

// LoadError signals that a style failed to become resident on a backend
// (fetch failure, malformed artifact, device error). Non-fatal: the
// dispatcher moves on to the next backend.
type LoadError struct {
	Backend Kind
	StyleID string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: load style %s: %v", e.Backend, e.StyleID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a style load failure.
func IsLoadError(err error) bool {
	_, ok := err.(*LoadError)
	return ok
}

// ProcessError signals a backend-specific execution failure (device lost,
// runtime trap, malformed intermediate buffer). Non-fatal: the dispatcher
// moves on to the next backend.
type ProcessError struct {
	Backend Kind
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: process: %v", e.Backend, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// IsProcessError reports whether err is a backend execution failure.
func IsProcessError(err error) bool {
	_, ok := err.(*ProcessError)
	return ok
}
