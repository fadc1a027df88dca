package gitrepo

import "strings"

// DefaultRawBaseURL serves file content at an arbitrary ref without the API.
const DefaultRawBaseURL = "https://raw.githubusercontent.com"

// RawURL builds "{base}/{owner}/{repo}/{ref}/{path}". ref may be a branch
// name or a commit SHA.
func RawURL(base, owner, repo, ref, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + owner + "/" + repo + "/" + ref + "/" + strings.TrimPrefix(path, "/")
}
