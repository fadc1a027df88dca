// Package github implements the gitrepo.Client port using the official
// go-github library. Wire it up with an authenticated *github.Client from
// apps/prstage/internal/platform/github.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
)

const (
	commitsPerPage = 100
	maxErrorBody   = 4 << 10
)

// Compile-time check: *Adapter implements gitrepo.Client.
var _ gitrepo.Client = (*Adapter)(nil)

// Adapter wraps a go-github client and implements gitrepo.Client. Raw content
// downloads go through the same underlying http.Client so they carry the
// configured auth transport (token or GitHub App).
type Adapter struct {
	gh *gogithub.Client
}

// New creates an Adapter from an authenticated *github.Client.
func New(gh *gogithub.Client) *Adapter {
	return &Adapter{gh: gh}
}

// GetContents resolves path at ref. A directory comes back as a KindDir object
// whose Entries mirror the API listing order.
func (a *Adapter) GetContents(ctx context.Context, owner, repo, path, ref string) (*gitrepo.Object, error) {
	var opts *gogithub.RepositoryContentGetOptions
	if ref != "" {
		opts = &gogithub.RepositoryContentGetOptions{Ref: ref}
	}
	fc, dc, resp, err := a.gh.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		target := fmt.Sprintf("get contents %s/%s/%s", owner, repo, path)
		rerr := remoteError(target, resp, err)
		var re gitrepo.RemoteError
		if errors.As(rerr, &re) && gitrepo.IsNotFound(re) {
			return nil, gitrepo.NotFoundError{
				Ref:  gitrepo.Ref{Owner: owner, Repo: repo, Branch: ref},
				Path: path,
				Err:  re,
			}
		}
		return nil, rerr
	}

	if fc != nil {
		return decodeObject(fc, true)
	}

	dir := &gitrepo.Object{
		Kind:    gitrepo.KindDir,
		Name:    lastSegment(path),
		Path:    strings.Trim(path, "/"),
		Type:    gitrepo.KindDir.String(),
		Entries: make([]gitrepo.Object, 0, len(dc)),
	}
	for _, rc := range dc {
		obj, err := decodeObject(rc, false)
		if err != nil {
			return nil, err
		}
		dir.Entries = append(dir.Entries, *obj)
	}
	return dir, nil
}

// GetPullRequest fetches PR metadata.
func (a *Adapter) GetPullRequest(ctx context.Context, owner, repo string, number int) (*gitrepo.PullRequest, error) {
	pr, resp, err := a.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, remoteError(fmt.Sprintf("get PR #%d from %s/%s", number, owner, repo), resp, err)
	}
	return &gitrepo.PullRequest{
		Number:         pr.GetNumber(),
		MergeableState: pr.GetMergeableState(),
		DiffURL:        pr.GetDiffURL(),
		HTMLURL:        pr.GetHTMLURL(),
	}, nil
}

// ListCommits pages through every commit of a PR, oldest first.
func (a *Adapter) ListCommits(ctx context.Context, owner, repo string, number int) ([]gitrepo.Commit, error) {
	var commits []gitrepo.Commit
	opts := &gogithub.ListOptions{PerPage: commitsPerPage}
	for {
		page, resp, err := a.gh.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, remoteError(fmt.Sprintf("list commits of PR #%d in %s/%s", number, owner, repo), resp, err)
		}
		for _, rc := range page {
			commits = append(commits, gitrepo.Commit{
				SHA:     rc.GetSHA(),
				Message: rc.GetCommit().GetMessage(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return commits, nil
}

// CreateGist creates a gist. Anything other than 201 Created is a failure.
func (a *Adapter) CreateGist(ctx context.Context, req gitrepo.GistRequest) (*gitrepo.Gist, error) {
	files := make(map[gogithub.GistFilename]gogithub.GistFile, len(req.Files))
	for name, content := range req.Files {
		files[gogithub.GistFilename(name)] = gogithub.GistFile{
			Filename: gogithub.Ptr(name),
			Content:  gogithub.Ptr(content),
		}
	}

	gist, resp, err := a.gh.Gists.Create(ctx, &gogithub.Gist{
		Description: gogithub.Ptr(req.Description),
		Public:      gogithub.Ptr(req.Public),
		Files:       files,
	})
	if err != nil {
		return nil, remoteError("create gist", resp, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, gitrepo.RemoteError{Target: "create gist", StatusCode: resp.StatusCode}
	}
	return &gitrepo.Gist{ID: gist.GetID(), HTMLURL: gist.GetHTMLURL()}, nil
}

// CreateComment posts a comment on an issue or pull request.
func (a *Adapter) CreateComment(ctx context.Context, owner, repo string, number int, body string) error {
	target := fmt.Sprintf("create comment in %s/%s#%d", owner, repo, number)
	_, resp, err := a.gh.Issues.CreateComment(ctx, owner, repo, number, &gogithub.IssueComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return remoteError(target, resp, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return gitrepo.RemoteError{Target: target, StatusCode: resp.StatusCode}
	}
	return nil
}

// OpenRaw issues a GET for a raw content URL (diffs, raw.githubusercontent.com)
// through the go-github client's underlying http.Client so the request carries
// the configured auth transport. Redirects are followed.
func (a *Adapter) OpenRaw(ctx context.Context, url string) (*gitrepo.RawContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build raw request: %w", err)
	}

	resp, err := a.gh.Client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }() //nolint:errcheck // non-actionable after reading
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, gitrepo.RemoteError{
			Target:     "GET " + url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return &gitrepo.RawContent{
		URL:         url,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        resp.Body,
	}, nil
}

// decodeObject maps a contents API entry onto the tagged Object variant.
// withContent controls whether the inlined file body is decoded; listing
// entries never carry content.
func decodeObject(rc *gogithub.RepositoryContent, withContent bool) (*gitrepo.Object, error) {
	obj := &gitrepo.Object{
		Kind: gitrepo.KindOf(rc.GetType()),
		Name: rc.GetName(),
		Path: rc.GetPath(),
		Type: rc.GetType(),
		Size: rc.GetSize(),
	}
	if !withContent || obj.Kind != gitrepo.KindFile || rc.GetEncoding() == "none" {
		return obj, nil
	}
	content, err := rc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode content %s: %w", obj.Path, err)
	}
	obj.Content = []byte(content)
	return obj, nil
}

// remoteError turns a go-github failure into a RemoteError when the server
// answered, or wraps the transport error otherwise.
func remoteError(target string, resp *gogithub.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	body := err.Error()
	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) {
		body = ghErr.Message
	}
	return gitrepo.RemoteError{Target: target, StatusCode: resp.StatusCode, Body: body}
}

func lastSegment(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.LastIndex(path, "/"); i != -1 {
		return path[i+1:]
	}
	return path
}
