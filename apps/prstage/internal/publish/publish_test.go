package publish_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghadapter "github.com/tilsley/prstage/apps/prstage/internal/adapters/github"
	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
	"github.com/tilsley/prstage/apps/prstage/internal/publish"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ─── GistPublisher ─────────────────────────────────────────────────────────────

func TestCreateGist_Defaults(t *testing.T) {
	gh := ghadapter.NewInMem()
	p := publish.NewGistPublisher(gh, discard())

	url, err := p.CreateGist(context.Background(), "build log", "", "")
	require.NoError(t, err)
	assert.Equal(t, "https://gist.github.com/gist1", url)

	gists := gh.Gists()
	require.Len(t, gists, 1)
	assert.True(t, gists[0].Public)
	assert.Equal(t, "(none)", gists[0].Description)
	assert.Equal(t, map[string]string{"file1.txt": "build log"}, gists[0].Files)
}

func TestCreateGist_Named(t *testing.T) {
	gh := ghadapter.NewInMem()
	p := publish.NewGistPublisher(gh, discard())

	_, err := p.CreateGist(context.Background(), "ok", "test-report.md", "PR #1234 test report")
	require.NoError(t, err)

	gists := gh.Gists()
	require.Len(t, gists, 1)
	assert.Equal(t, "PR #1234 test report", gists[0].Description)
	assert.Contains(t, gists[0].Files, "test-report.md")
}

func TestCreateGist_RemoteError(t *testing.T) {
	gh := ghadapter.NewInMem()
	gh.Fail("CreateGist", gitrepo.RemoteError{Target: "create gist", StatusCode: http.StatusUnprocessableEntity})
	p := publish.NewGistPublisher(gh, discard())

	_, err := p.CreateGist(context.Background(), "x", "", "")

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
}

// ─── CommentPoster ─────────────────────────────────────────────────────────────

func TestPostComment_DefaultRepo(t *testing.T) {
	gh := ghadapter.NewInMem()
	p := publish.NewCommentPoster(gh, "hpcugent", "easybuild-easyconfigs", discard())

	require.NoError(t, p.PostComment(context.Background(), 1234, "Test report: SUCCESS", ""))

	assert.Equal(t, []ghadapter.Comment{{
		Owner:  "hpcugent",
		Repo:   "easybuild-easyconfigs",
		Number: 1234,
		Body:   "Test report: SUCCESS",
	}}, gh.Comments())
}

func TestPostComment_OtherRepo(t *testing.T) {
	gh := ghadapter.NewInMem()
	p := publish.NewCommentPoster(gh, "hpcugent", "easybuild-easyconfigs", discard())

	require.NoError(t, p.PostComment(context.Background(), 7, "hi", "easybuild-framework"))

	comments := gh.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, "easybuild-framework", comments[0].Repo)
}

func TestPostComment_RemoteErrorNamesTarget(t *testing.T) {
	gh := ghadapter.NewInMem()
	gh.Fail("CreateComment", gitrepo.RemoteError{Target: "create comment", StatusCode: http.StatusForbidden})
	p := publish.NewCommentPoster(gh, "hpcugent", "easybuild-easyconfigs", discard())

	err := p.PostComment(context.Background(), 1234, "x", "")

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusForbidden, re.StatusCode)
	assert.Contains(t, err.Error(), "hpcugent/easybuild-easyconfigs#1234")
}

func TestPostComment_InvalidIssue(t *testing.T) {
	gh := ghadapter.NewInMem()
	p := publish.NewCommentPoster(gh, "hpcugent", "easybuild-easyconfigs", discard())

	require.Error(t, p.PostComment(context.Background(), 0, "x", ""))
	assert.Empty(t, gh.Comments())
}
