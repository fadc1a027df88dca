package gitrepo

import (
	"context"
	"io"
)

// Kind classifies a remote object.
type Kind int

const (
	// KindUnknown covers anything the contents API returns that is neither a
	// file nor a directory (symlinks, submodules, malformed objects).
	KindUnknown Kind = iota
	KindFile
	KindDir
)

// String returns the GitHub contents API type tag for k.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	default:
		return "unknown"
	}
}

// KindOf decodes a contents API "type" field.
func KindOf(typ string) Kind {
	switch typ {
	case "file":
		return KindFile
	case "dir":
		return KindDir
	default:
		return KindUnknown
	}
}

// Ref identifies the tree being browsed. It is fixed for the lifetime of a client.
type Ref struct {
	Owner  string
	Repo   string
	Branch string
}

// String renders the ref as "owner/repo@branch".
func (r Ref) String() string {
	return r.Owner + "/" + r.Repo + "@" + r.Branch
}

// Object is a file or directory returned by the contents API.
//
// For KindFile, Content holds the decoded bytes, or nil when the API did not
// inline them (files over 1MB). For KindDir, Entries holds the listing in API order.
type Object struct {
	Kind    Kind
	Name    string
	Path    string
	Type    string // raw "type" tag as returned by the API
	Size    int
	Content []byte
	Entries []Object
}

// PullRequest is the subset of pull request metadata the fetcher depends on.
type PullRequest struct {
	Number         int    `json:"number"`
	MergeableState string `json:"mergeable_state"`
	DiffURL        string `json:"diff_url"`
	HTMLURL        string `json:"html_url"`
	HeadSHA        string `json:"-"` // resolved from the commit list, not the PR payload
}

// Commit is one entry of a pull request's commit list.
type Commit struct {
	SHA     string `json:"sha"`
	Message string `json:"message,omitempty"`
}

// GistRequest is the input for creating a gist.
type GistRequest struct {
	Description string
	Public      bool
	Files       map[string]string // filename -> content
}

// Gist is a created gist.
type Gist struct {
	ID      string
	HTMLURL string
}

// RawContent is an open raw-content download. Callers must close Body.
type RawContent struct {
	URL         string
	ContentType string
	Body        io.ReadCloser
}

// Client is the port every component depends on to talk to the git host.
type Client interface {
	GetContents(ctx context.Context, owner, repo, path, ref string) (*Object, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error)
	ListCommits(ctx context.Context, owner, repo string, number int) ([]Commit, error)
	CreateGist(ctx context.Context, req GistRequest) (*Gist, error)
	CreateComment(ctx context.Context, owner, repo string, number int, body string) error
	OpenRaw(ctx context.Context, url string) (*RawContent, error)
}
