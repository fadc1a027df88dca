package treefs

import (
	"fmt"

	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
)

// NotAFileError is returned when a read targets something other than a file.
type NotAFileError struct {
	Path string
	Kind gitrepo.Kind
}

// Error implements the error interface.
func (e NotAFileError) Error() string {
	return fmt.Sprintf("not a valid file: %q is a %s", e.Path, e.Kind)
}

// NotADirectoryError is returned when a listing targets something other than a directory.
type NotADirectoryError struct {
	Path string
	Kind gitrepo.Kind
}

// Error implements the error interface.
func (e NotADirectoryError) Error() string {
	return fmt.Sprintf("not a directory: %q is a %s", e.Path, e.Kind)
}
