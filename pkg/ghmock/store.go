// Package ghmock is an in-memory stand-in for the subset of the GitHub REST
// API, the github.com diff view and raw.githubusercontent.com that prstage
// talks to. It backs apps/mock-github and adapter tests.
package ghmock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DirEntry is a file or directory returned by the contents API directory listing.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int    `json:"size"`
}

// Commit is one commit of a pull request.
type Commit struct {
	SHA     string
	Message string
}

// PullRequest is a seeded pull request. Diff is served verbatim as the
// unified diff of the PR.
type PullRequest struct {
	Number         int
	Title          string
	MergeableState string
	Diff           string
	Commits        []Commit
}

// Gist is a gist created through POST /gists.
type Gist struct {
	ID          string
	Description string
	Public      bool
	Files       map[string]string
}

// Comment is an issue comment created through the API.
type Comment struct {
	ID     int64
	Owner  string
	Repo   string
	Number int
	Body   string
}

// Store holds repository trees per ref, pull requests, gists and comments.
type Store struct {
	mu       sync.RWMutex
	files    map[string]map[string]string // "owner/repo@ref" → path → content
	prs      map[string]PullRequest       // "owner/repo#number"
	gists    []Gist
	comments []Comment
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		files: make(map[string]map[string]string),
		prs:   make(map[string]PullRequest),
	}
}

// SetFile seeds the file at path in owner/repo at ref (a branch or commit SHA).
func (s *Store) SetFile(owner, repo, ref, path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := treeKey(owner, repo, ref)
	if s.files[key] == nil {
		s.files[key] = make(map[string]string)
	}
	s.files[key][strings.Trim(path, "/")] = content
}

// AddPullRequest seeds a pull request.
func (s *Store) AddPullRequest(owner, repo string, pr PullRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prs[prKey(owner, repo, pr.Number)] = pr
}

// Gists returns the gists created so far.
func (s *Store) Gists() []Gist {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Gist, len(s.gists))
	copy(out, s.gists)
	return out
}

// Comments returns the comments created so far.
func (s *Store) Comments() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Comment, len(s.comments))
	copy(out, s.comments)
	return out
}

// Repos returns the number of seeded trees.
func (s *Store) Repos() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

func (s *Store) getPR(owner, repo string, number int) (PullRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pr, ok := s.prs[prKey(owner, repo, number)]
	return pr, ok
}

func (s *Store) getFile(owner, repo, ref, path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.files[treeKey(owner, repo, ref)][path]
	return content, ok
}

// hasRepo reports whether any tree or pull request was seeded for owner/repo.
func (s *Store) hasRepo(owner, repo string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix := owner + "/" + repo
	for key := range s.files {
		if strings.HasPrefix(key, prefix+"@") {
			return true
		}
	}
	for key := range s.prs {
		if strings.HasPrefix(key, prefix+"#") {
			return true
		}
	}
	return false
}

// listDir returns the immediate children of dirPath, sorted by name, similar
// to GET /repos/:owner/:repo/contents/:path when :path is a directory.
func (s *Store) listDir(owner, repo, ref, dirPath string) []DirEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := s.files[treeKey(owner, repo, ref)]
	if files == nil {
		return nil
	}

	prefix := dirPath
	if prefix != "" {
		prefix += "/"
	}

	seen := map[string]bool{}
	var entries []DirEntry
	for filePath, content := range files {
		if !strings.HasPrefix(filePath, prefix) {
			continue
		}
		rest := filePath[len(prefix):]
		entry := DirEntry{Path: prefix, Type: "file", Size: len(content)}
		if idx := strings.Index(rest, "/"); idx == -1 {
			entry.Name = rest
		} else {
			entry.Name, entry.Type, entry.Size = rest[:idx], "dir", 0
		}
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true
		entry.Path += entry.Name
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func (s *Store) addGist(g Gist) Gist {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = fmt.Sprintf("%032x", len(s.gists)+1)
	s.gists = append(s.gists, g)
	return g
}

func (s *Store) addComment(c Comment) Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = int64(len(s.comments) + 1)
	s.comments = append(s.comments, c)
	return c
}

func treeKey(owner, repo, ref string) string {
	return owner + "/" + repo + "@" + ref
}

func prKey(owner, repo string, number int) string {
	return fmt.Sprintf("%s/%s#%d", owner, repo, number)
}
