package gitrepo

import (
	"fmt"
	"net/http"
)

// RemoteError is returned when the git host answers with a non-success status.
type RemoteError struct {
	Target     string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e RemoteError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: remote returned status %d", e.Target, e.StatusCode)
	}
	return fmt.Sprintf("%s: remote returned status %d: %s", e.Target, e.StatusCode, e.Body)
}

// NotFoundError is returned when a path does not resolve to any remote object.
type NotFoundError struct {
	Ref  Ref
	Path string
	Err  error
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("path %q not found in %s", e.Path, e.Ref)
}

// Unwrap exposes the underlying RemoteError, if any.
func (e NotFoundError) Unwrap() error { return e.Err }

// IsNotFound reports whether a RemoteError carries a 404.
func IsNotFound(err RemoteError) bool {
	return err.StatusCode == http.StatusNotFound
}
