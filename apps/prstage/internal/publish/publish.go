// Package publish submits text to the git host: public gists and comments on
// issues or pull requests.
package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
)

const (
	DefaultGistFilename    = "file1.txt"
	DefaultGistDescription = "(none)"
)

// GistPublisher creates public gists.
type GistPublisher struct {
	gh  gitrepo.Client
	log *slog.Logger
}

// NewGistPublisher creates a GistPublisher.
func NewGistPublisher(gh gitrepo.Client, log *slog.Logger) *GistPublisher {
	return &GistPublisher{gh: gh, log: log}
}

// CreateGist publishes text as a single-file public gist and returns its URL.
// Empty filename and description fall back to the defaults.
func (p *GistPublisher) CreateGist(ctx context.Context, text, filename, description string) (string, error) {
	if filename == "" {
		filename = DefaultGistFilename
	}
	if description == "" {
		description = DefaultGistDescription
	}

	gist, err := p.gh.CreateGist(ctx, gitrepo.GistRequest{
		Description: description,
		Public:      true,
		Files:       map[string]string{filename: text},
	})
	if err != nil {
		return "", fmt.Errorf("create gist %s: %w", filename, err)
	}

	p.log.Info("gist created", "url", gist.HTMLURL, "file", filename)
	return gist.HTMLURL, nil
}

// CommentPoster posts comments on issues and pull requests of one owner.
type CommentPoster struct {
	gh          gitrepo.Client
	owner       string
	defaultRepo string
	log         *slog.Logger
}

// NewCommentPoster creates a CommentPoster posting to owner's repositories,
// defaultRepo unless PostComment names another.
func NewCommentPoster(gh gitrepo.Client, owner, defaultRepo string, log *slog.Logger) *CommentPoster {
	return &CommentPoster{gh: gh, owner: owner, defaultRepo: defaultRepo, log: log}
}

// PostComment adds text as a comment on issue (or PR) number issue in repo.
func (p *CommentPoster) PostComment(ctx context.Context, issue int, text, repo string) error {
	if repo == "" {
		repo = p.defaultRepo
	}
	if issue <= 0 {
		return fmt.Errorf("post comment on %s/%s: invalid issue number %d", p.owner, repo, issue)
	}

	if err := p.gh.CreateComment(ctx, p.owner, repo, issue, text); err != nil {
		return fmt.Errorf("post comment on %s/%s#%d: %w", p.owner, repo, issue, err)
	}

	p.log.Info("comment posted", "repo", p.owner+"/"+repo, "issue", issue)
	return nil
}
