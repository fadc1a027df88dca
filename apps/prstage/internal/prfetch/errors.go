package prfetch

import (
	"fmt"
	"strings"
)

// InvalidArgumentError is returned for malformed caller input such as a
// non-numeric pull request number.
type InvalidArgumentError struct {
	Arg    string
	Value  string
	Reason string
}

// Error implements the error interface.
func (e InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Arg, e.Value, e.Reason)
}

// UnstablePRError is returned when a PR's mergeable state is not the one
// required before its file set can be trusted.
type UnstablePRError struct {
	Number   int
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e UnstablePRError) Error() string {
	return fmt.Sprintf("mergeable state for PR #%d is not %q: %q", e.Number, e.Expected, e.Actual)
}

// UnexpectedContentTypeError is returned when a download is served with a
// content type other than the one expected, typically an HTML error page.
type UnexpectedContentTypeError struct {
	URL      string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e UnexpectedContentTypeError) Error() string {
	return fmt.Sprintf("unexpected content type for %s: want %q, got %q", e.URL, e.Expected, e.Actual)
}

// IncompleteFetchError is returned when the staged files do not match the
// files named by the PR diff. Failures holds the per-file download errors;
// they are not unwrapped, so errors.As on the fetch error only ever matches
// IncompleteFetchError. Inspect Failures for the RemoteError of each file.
type IncompleteFetchError struct {
	Dir      string
	Missing  []string
	Extra    []string
	Staged   []string
	Expected []string
	Failures []error
}

// Error implements the error interface.
func (e IncompleteFetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "not all changed files were staged in %s: staged %v vs expected %v", e.Dir, e.Staged, e.Expected)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, "; missing %v", e.Missing)
	}
	if len(e.Extra) > 0 {
		fmt.Fprintf(&b, "; extra %v", e.Extra)
	}
	if len(e.Failures) > 0 {
		fmt.Fprintf(&b, "; %d download(s) failed, first: %v", len(e.Failures), e.Failures[0])
	}
	return b.String()
}
