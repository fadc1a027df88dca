// Package diffparse extracts the files touched by a unified diff.
package diffparse

import (
	"regexp"
	"strings"
)

// newFileHeader matches the "new file" header of a unified diff, e.g.
// "+++ b/easybuild/easyconfigs/g/GCC/GCC-4.8.2.eb". Deleted files show
// "+++ /dev/null" and are therefore never reported.
var newFileHeader = regexp.MustCompile(`^\+\+\+ [a-z]/(.*)$`)

// ExtractChangedPaths returns the paths named by "+++ x/<path>" lines, in
// first-seen order and without duplicates.
func ExtractChangedPaths(diffText string) []string {
	var paths []string
	seen := make(map[string]bool)

	for line := range strings.Lines(diffText) {
		line = strings.TrimRight(line, "\r\n")
		m := newFileHeader.FindStringSubmatch(line)
		if m == nil || m[1] == "" || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		paths = append(paths, m[1])
	}
	return paths
}
