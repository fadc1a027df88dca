package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tilsley/prstage/apps/prstage/internal/credentials"
	"github.com/tilsley/prstage/apps/prstage/internal/prfetch"
	"github.com/tilsley/prstage/pkg/ghmock"
)

const testDiff = `diff --git a/easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb b/easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb
--- a/easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb
+++ b/easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb
@@ -1 +1 @@
-name = 'zlib'
+name = 'zlib'  # fixed
`

type harness struct {
	store *ghmock.Store
	srv   *httptest.Server
	fs    afero.Fs
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, k := range []string{
		"GITHUB_API_URL", "GITHUB_RAW_URL", "GITHUB_OWNER", "GITHUB_REPO", "GITHUB_BRANCH",
		"GITHUB_USER", "GITHUB_TOKEN", "GITHUB_APP_ID", "GITHUB_APP_INSTALLATION_ID",
		"GITHUB_APP_PRIVATE_KEY_PATH", "PRSTAGE_REDIS_ADDR", "PRSTAGE_FETCH_CONCURRENCY", "OTEL_ENABLED",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("PRSTAGE_SECRETS_BACKEND", "none")
	t.Setenv("LOG_LEVEL", "error")

	gin.SetMode(gin.TestMode)
	store := ghmock.NewStore()
	store.SetFile("hpcugent", "easybuild-easyconfigs", "master", "README.rst", "easyconfigs\n")
	store.SetFile("hpcugent", "easybuild-easyconfigs", "master", "easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb", "name = 'zlib'\n")
	store.SetFile("hpcugent", "easybuild-easyconfigs", "master", "easybuild/easyconfigs/__archive__/old.eb", "old\n")
	store.SetFile("hpcugent", "easybuild-easyconfigs", "f1x", "easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb", "name = 'zlib'  # fixed\n")
	store.AddPullRequest("hpcugent", "easybuild-easyconfigs", ghmock.PullRequest{
		Number:         1234,
		MergeableState: prfetch.MergeableStateClean,
		Diff:           testDiff,
		Commits:        []ghmock.Commit{{SHA: "f1x", Message: "fix zlib"}},
	})

	srv := httptest.NewServer(ghmock.NewRouter(store, slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(srv.Close)
	return &harness{store: store, srv: srv, fs: afero.NewMemMapFs()}
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(h.fs, io.Discard)
	root.SetArgs(append([]string{"--api-url", h.srv.URL, "--raw-url", h.srv.URL + "/raw"}, args...))
	root.SetOut(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// ─── Tree commands ─────────────────────────────────────────────────────────────

func TestWalkCmd(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "walk", "easybuild/easyconfigs")
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"easybuild/easyconfigs: dirs=[__archive__ z] files=[]",
		"easybuild/easyconfigs/__archive__: dirs=[] files=[old.eb]",
		"easybuild/easyconfigs/z: dirs=[zlib] files=[]",
		"easybuild/easyconfigs/z/zlib: dirs=[] files=[zlib-1.2.8.eb]",
	}, "\n")+"\n", out)
}

func TestWalkCmd_Exclude(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "walk", "--exclude", "__archive__", "easybuild/easyconfigs")
	require.NoError(t, err)
	assert.NotContains(t, out, "old.eb")
	assert.Contains(t, out, "zlib-1.2.8.eb")
}

func TestWalkCmd_ExcludeNeedsTopDown(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "walk", "--bottom-up", "--exclude", "x")
	assert.Error(t, err)
}

func TestReadCmd(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "read", "README.rst")
	require.NoError(t, err)
	assert.Equal(t, "easyconfigs\n", out)
}

func TestReadCmd_Raw(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "read", "--raw", "easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb")
	require.NoError(t, err)

	data, err := afero.ReadFile(h.fs, strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "name = 'zlib'\n", string(data))
}

func TestReadCmd_Directory(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "read", "easybuild")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid file")
}

// ─── fetch-pr ──────────────────────────────────────────────────────────────────

func TestFetchPRCmd(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "fetch-pr", "1234", "--dir", "/stage")
	require.NoError(t, err)
	assert.Equal(t, "/stage/zlib-1.2.8.eb\n", out)

	data, err := afero.ReadFile(h.fs, "/stage/zlib-1.2.8.eb")
	require.NoError(t, err)
	assert.Equal(t, "name = 'zlib'  # fixed\n", string(data))
}

func TestFetchPRCmd_BadNumber(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "fetch-pr", "twelve")

	var invalid prfetch.InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
}

// ─── Publishing ────────────────────────────────────────────────────────────────

func TestGistCmd_Stdin(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "build ok\n", "gist", "-", "--description", "PR #1234 build log")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, h.srv.URL+"/gist/"))

	gists := h.store.Gists()
	require.Len(t, gists, 1)
	assert.Equal(t, "PR #1234 build log", gists[0].Description)
	assert.Equal(t, map[string]string{"file1.txt": "build ok\n"}, gists[0].Files)
}

func TestGistCmd_Empty(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "gist")
	assert.Error(t, err)
	assert.Empty(t, h.store.Gists())
}

func TestCommentCmd_File(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, afero.WriteFile(h.fs, "/report.md", []byte("Test report: SUCCESS"), 0o644))

	_, err := h.run(t, "", "comment", "1234", "/report.md")
	require.NoError(t, err)

	comments := h.store.Comments()
	require.Len(t, comments, 1)
	assert.Equal(t, "easybuild-easyconfigs", comments[0].Repo)
	assert.Equal(t, 1234, comments[0].Number)
	assert.Equal(t, "Test report: SUCCESS", comments[0].Body)
}

// ─── token ─────────────────────────────────────────────────────────────────────

func TestTokenCmd_StoreUnavailable(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "token", "boegel")

	var unavailable credentials.CredentialStoreUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestTokenCmd_Redis(t *testing.T) {
	h := newHarness(t)
	mr := miniredis.RunT(t)
	mr.HSet(credentials.Namespace, "boegel", "ghp_secret")
	t.Setenv("PRSTAGE_SECRETS_BACKEND", "redis")
	t.Setenv("PRSTAGE_REDIS_ADDR", mr.Addr())

	out, err := h.run(t, "", "token", "boegel")
	require.NoError(t, err)
	assert.Equal(t, "Successfully obtained GitHub token for user boegel from redis.\n", out)
	assert.NotContains(t, out, "ghp_secret")

	out, err = h.run(t, "", "token", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "Failed to obtain GitHub token for user nobody")
}

func TestCommands_UnavailableStoreRunsAnonymously(t *testing.T) {
	h := newHarness(t)
	t.Setenv("GITHUB_USER", "boegel")

	out, err := h.run(t, "", "read", "README.rst")
	require.NoError(t, err)
	assert.Equal(t, "easyconfigs\n", out)
}
