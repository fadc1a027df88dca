package github

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
)

// Compile-time check: *InMem implements gitrepo.Client.
var _ gitrepo.Client = (*InMem)(nil)

// Comment is a comment recorded by InMem.CreateComment.
type Comment struct {
	Owner  string
	Repo   string
	Number int
	Body   string
}

type rawEntry struct {
	contentType string
	body        string
}

// InMem is an in-memory gitrepo.Client for unit tests.
type InMem struct {
	mu       sync.Mutex
	files    map[string]map[string]string // "owner/repo@ref" -> path -> content
	prs      map[string]gitrepo.PullRequest
	commits  map[string][]gitrepo.Commit
	raw      map[string]rawEntry // url -> content
	gists    []gitrepo.GistRequest
	comments []Comment
	failures map[string]error // op name -> forced error
}

// NewInMem creates an empty InMem client.
func NewInMem() *InMem {
	return &InMem{
		files:    make(map[string]map[string]string),
		prs:      make(map[string]gitrepo.PullRequest),
		commits:  make(map[string][]gitrepo.Commit),
		raw:      make(map[string]rawEntry),
		failures: make(map[string]error),
	}
}

// SetFile seeds a file at ref in the in-memory store.
func (m *InMem) SetFile(owner, repo, ref, path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := owner + "/" + repo + "@" + ref
	if m.files[key] == nil {
		m.files[key] = make(map[string]string)
	}
	m.files[key][path] = content
}

// SetPullRequest seeds PR metadata and its commit list.
func (m *InMem) SetPullRequest(owner, repo string, pr gitrepo.PullRequest, commits []gitrepo.Commit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := prKey(owner, repo, pr.Number)
	m.prs[key] = pr
	m.commits[key] = commits
}

// SetRaw seeds a raw-content URL.
func (m *InMem) SetRaw(url, contentType, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[url] = rawEntry{contentType: contentType, body: body}
}

// Fail forces every subsequent call to op (e.g. "CreateGist") to return err.
func (m *InMem) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = err
}

// Gists returns all gists created via CreateGist.
func (m *InMem) Gists() []gitrepo.GistRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]gitrepo.GistRequest, len(m.gists))
	copy(out, m.gists)
	return out
}

// Comments returns all comments created via CreateComment.
func (m *InMem) Comments() []Comment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Comment, len(m.comments))
	copy(out, m.comments)
	return out
}

// GetContents returns the file at path, or the immediate children when path
// is a directory prefix.
func (m *InMem) GetContents(_ context.Context, owner, repo, path, ref string) (*gitrepo.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["GetContents"]; err != nil {
		return nil, err
	}

	path = strings.Trim(path, "/")
	files := m.files[owner+"/"+repo+"@"+ref]
	if content, ok := files[path]; ok && path != "" {
		return &gitrepo.Object{
			Kind:    gitrepo.KindFile,
			Name:    lastSegment(path),
			Path:    path,
			Type:    "file",
			Size:    len(content),
			Content: []byte(content),
		}, nil
	}

	entries := listDir(files, path)
	if len(entries) == 0 && (path != "" || files == nil) {
		re := gitrepo.RemoteError{
			Target:     fmt.Sprintf("get contents %s/%s/%s", owner, repo, path),
			StatusCode: http.StatusNotFound,
			Body:       "Not Found",
		}
		return nil, gitrepo.NotFoundError{
			Ref:  gitrepo.Ref{Owner: owner, Repo: repo, Branch: ref},
			Path: path,
			Err:  re,
		}
	}
	return &gitrepo.Object{
		Kind:    gitrepo.KindDir,
		Name:    lastSegment(path),
		Path:    path,
		Type:    "dir",
		Entries: entries,
	}, nil
}

// GetPullRequest returns seeded PR metadata or a 404 RemoteError.
func (m *InMem) GetPullRequest(_ context.Context, owner, repo string, number int) (*gitrepo.PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["GetPullRequest"]; err != nil {
		return nil, err
	}
	pr, ok := m.prs[prKey(owner, repo, number)]
	if !ok {
		return nil, gitrepo.RemoteError{
			Target:     fmt.Sprintf("get PR #%d from %s/%s", number, owner, repo),
			StatusCode: http.StatusNotFound,
			Body:       "Not Found",
		}
	}
	return &pr, nil
}

// ListCommits returns the seeded commit list for a PR.
func (m *InMem) ListCommits(_ context.Context, owner, repo string, number int) ([]gitrepo.Commit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["ListCommits"]; err != nil {
		return nil, err
	}
	commits, ok := m.commits[prKey(owner, repo, number)]
	if !ok {
		return nil, gitrepo.RemoteError{
			Target:     fmt.Sprintf("list commits of PR #%d in %s/%s", number, owner, repo),
			StatusCode: http.StatusNotFound,
			Body:       "Not Found",
		}
	}
	out := make([]gitrepo.Commit, len(commits))
	copy(out, commits)
	return out, nil
}

// CreateGist records the gist and returns a fake URL.
func (m *InMem) CreateGist(_ context.Context, req gitrepo.GistRequest) (*gitrepo.Gist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["CreateGist"]; err != nil {
		return nil, err
	}
	m.gists = append(m.gists, req)
	id := fmt.Sprintf("gist%d", len(m.gists))
	return &gitrepo.Gist{ID: id, HTMLURL: "https://gist.github.com/" + id}, nil
}

// CreateComment records the comment.
func (m *InMem) CreateComment(_ context.Context, owner, repo string, number int, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["CreateComment"]; err != nil {
		return err
	}
	m.comments = append(m.comments, Comment{Owner: owner, Repo: repo, Number: number, Body: body})
	return nil
}

// OpenRaw serves a seeded raw URL or a 404 RemoteError.
func (m *InMem) OpenRaw(_ context.Context, url string) (*gitrepo.RawContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures["OpenRaw"]; err != nil {
		return nil, err
	}
	entry, ok := m.raw[url]
	if !ok {
		return nil, gitrepo.RemoteError{Target: "GET " + url, StatusCode: http.StatusNotFound, Body: "404: Not Found"}
	}
	return &gitrepo.RawContent{
		URL:         url,
		ContentType: entry.contentType,
		Body:        io.NopCloser(bytes.NewReader([]byte(entry.body))),
	}, nil
}

// listDir returns the immediate children of dirPath, sorted by name.
func listDir(files map[string]string, dirPath string) []gitrepo.Object {
	prefix := dirPath
	if prefix != "" {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var entries []gitrepo.Object
	for key := range files {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		parts := strings.SplitN(rest, "/", 2)
		name := parts[0]
		if seen[name] {
			continue
		}
		seen[name] = true
		kind := gitrepo.KindFile
		if len(parts) > 1 {
			kind = gitrepo.KindDir
		}
		entries = append(entries, gitrepo.Object{
			Kind: kind,
			Name: name,
			Path: prefix + name,
			Type: kind.String(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func prKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}
