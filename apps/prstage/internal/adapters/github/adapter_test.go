package github_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	gogithub "github.com/google/go-github/v75/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghadapter "github.com/tilsley/prstage/apps/prstage/internal/adapters/github"
	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
	"github.com/tilsley/prstage/pkg/ghmock"
)

const (
	owner = "hpcugent"
	repo  = "easybuild-easyconfigs"
)

// newAdapter starts a mock GitHub and returns an Adapter pointed at it.
func newAdapter(t *testing.T) (*ghmock.Store, *ghadapter.Adapter, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := ghmock.NewStore()
	srv := httptest.NewServer(ghmock.NewRouter(s, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)

	gh := gogithub.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base
	return s, ghadapter.New(gh), srv
}

// ─── GetContents ───────────────────────────────────────────────────────────────

func TestGetContents_File(t *testing.T) {
	s, a, _ := newAdapter(t)
	s.SetFile(owner, repo, "master", "easybuild/easyconfigs/g/GCC/GCC-4.8.2.eb", "name = 'GCC'\n")

	obj, err := a.GetContents(context.Background(), owner, repo, "easybuild/easyconfigs/g/GCC/GCC-4.8.2.eb", "master")
	require.NoError(t, err)
	assert.Equal(t, gitrepo.KindFile, obj.Kind)
	assert.Equal(t, "GCC-4.8.2.eb", obj.Name)
	assert.Equal(t, "name = 'GCC'\n", string(obj.Content))
	assert.Equal(t, len("name = 'GCC'\n"), obj.Size)
}

func TestGetContents_Directory(t *testing.T) {
	s, a, _ := newAdapter(t)
	s.SetFile(owner, repo, "master", "lib/a.py", "a")
	s.SetFile(owner, repo, "master", "lib/sub/b.py", "b")

	obj, err := a.GetContents(context.Background(), owner, repo, "lib", "master")
	require.NoError(t, err)
	assert.Equal(t, gitrepo.KindDir, obj.Kind)
	assert.Equal(t, "lib", obj.Name)
	require.Len(t, obj.Entries, 2)
	assert.Equal(t, "a.py", obj.Entries[0].Name)
	assert.Equal(t, gitrepo.KindFile, obj.Entries[0].Kind)
	assert.Nil(t, obj.Entries[0].Content, "listings never carry content")
	assert.Equal(t, "sub", obj.Entries[1].Name)
	assert.Equal(t, gitrepo.KindDir, obj.Entries[1].Kind)
}

func TestGetContents_Root(t *testing.T) {
	s, a, _ := newAdapter(t)
	s.SetFile(owner, repo, "master", "README.rst", "x")

	obj, err := a.GetContents(context.Background(), owner, repo, "", "master")
	require.NoError(t, err)
	assert.Equal(t, gitrepo.KindDir, obj.Kind)
	require.Len(t, obj.Entries, 1)
}

func TestGetContents_NotFound(t *testing.T) {
	s, a, _ := newAdapter(t)
	s.SetFile(owner, repo, "master", "README.rst", "x")

	_, err := a.GetContents(context.Background(), owner, repo, "nope", "master")

	var nf gitrepo.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope", nf.Path)
	assert.Equal(t, "master", nf.Ref.Branch)

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.Equal(t, "Not Found", re.Body)
}

func TestGetContents_TransportError(t *testing.T) {
	_, a, srv := newAdapter(t)
	srv.Close()

	_, err := a.GetContents(context.Background(), owner, repo, "x", "master")
	require.Error(t, err)

	var re gitrepo.RemoteError
	assert.False(t, errors.As(err, &re), "no status means no RemoteError")
}

// ─── Pull requests ─────────────────────────────────────────────────────────────

func TestGetPullRequest(t *testing.T) {
	s, a, srv := newAdapter(t)
	s.AddPullRequest(owner, repo, ghmock.PullRequest{Number: 1234, MergeableState: "clean"})

	pr, err := a.GetPullRequest(context.Background(), owner, repo, 1234)
	require.NoError(t, err)
	assert.Equal(t, 1234, pr.Number)
	assert.Equal(t, "clean", pr.MergeableState)
	assert.Equal(t, srv.URL+"/hpcugent/easybuild-easyconfigs/pull/1234.diff", pr.DiffURL)
	assert.Equal(t, srv.URL+"/hpcugent/easybuild-easyconfigs/pull/1234", pr.HTMLURL)
}

func TestGetPullRequest_NotFound(t *testing.T) {
	_, a, _ := newAdapter(t)

	_, err := a.GetPullRequest(context.Background(), owner, repo, 1)

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.Contains(t, re.Target, "#1")
}

func TestListCommits_AllPages(t *testing.T) {
	s, a, _ := newAdapter(t)
	commits := make([]ghmock.Commit, 150)
	for i := range commits {
		commits[i] = ghmock.Commit{SHA: fmt.Sprintf("sha%03d", i), Message: "commit"}
	}
	s.AddPullRequest(owner, repo, ghmock.PullRequest{Number: 1, Commits: commits})

	got, err := a.ListCommits(context.Background(), owner, repo, 1)
	require.NoError(t, err)
	require.Len(t, got, 150)
	assert.Equal(t, "sha000", got[0].SHA)
	assert.Equal(t, "sha149", got[149].SHA, "the last commit is on the second page")
	assert.Equal(t, "commit", got[149].Message)
}

// ─── Gists and comments ────────────────────────────────────────────────────────

func TestCreateGist(t *testing.T) {
	s, a, srv := newAdapter(t)

	gist, err := a.CreateGist(context.Background(), gitrepo.GistRequest{
		Description: "(none)",
		Public:      true,
		Files:       map[string]string{"file1.txt": "log"},
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/gist/"+gist.ID, gist.HTMLURL)

	gists := s.Gists()
	require.Len(t, gists, 1)
	assert.True(t, gists[0].Public)
	assert.Equal(t, map[string]string{"file1.txt": "log"}, gists[0].Files)
}

func TestCreateComment(t *testing.T) {
	s, a, _ := newAdapter(t)
	s.SetFile(owner, repo, "master", "README.rst", "x")

	require.NoError(t, a.CreateComment(context.Background(), owner, repo, 1234, "Test report"))

	comments := s.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, 1234, comments[0].Number)
	assert.Equal(t, "Test report", comments[0].Body)
}

func TestCreateComment_Rejected(t *testing.T) {
	s, a, _ := newAdapter(t)
	s.SetFile(owner, repo, "master", "README.rst", "x")

	err := a.CreateComment(context.Background(), owner, repo, 1234, "   ")

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnprocessableEntity, re.StatusCode)
	assert.Contains(t, re.Target, "hpcugent/easybuild-easyconfigs#1234")
}

func TestCreateComment_UnknownRepo(t *testing.T) {
	_, a, _ := newAdapter(t)

	err := a.CreateComment(context.Background(), owner, "nope", 1, "hi")

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
}

// ─── OpenRaw ───────────────────────────────────────────────────────────────────

func TestOpenRaw(t *testing.T) {
	s, a, srv := newAdapter(t)
	s.SetFile(owner, repo, "abc", "x.eb", "name = 'x'\n")

	raw, err := a.OpenRaw(context.Background(), gitrepo.RawURL(srv.URL+"/raw", owner, repo, "abc", "x.eb"))
	require.NoError(t, err)
	defer raw.Body.Close()

	body, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	assert.Equal(t, "name = 'x'\n", string(body))
	assert.Equal(t, "text/plain; charset=utf-8", raw.ContentType)
}

func TestOpenRaw_NotFound(t *testing.T) {
	_, a, srv := newAdapter(t)
	u := gitrepo.RawURL(srv.URL+"/raw", owner, repo, "abc", "missing.eb")

	_, err := a.OpenRaw(context.Background(), u)

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.Equal(t, "404: Not Found", re.Body)
	assert.Equal(t, "GET "+u, re.Target)
}
