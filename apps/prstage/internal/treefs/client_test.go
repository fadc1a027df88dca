package treefs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghadapter "github.com/tilsley/prstage/apps/prstage/internal/adapters/github"
	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
	"github.com/tilsley/prstage/apps/prstage/internal/treefs"
)

const (
	owner  = "hpcugent"
	repo   = "easybuild-easyconfigs"
	branch = "master"
)

var ref = gitrepo.Ref{Owner: owner, Repo: repo, Branch: branch}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func seeded() *ghadapter.InMem {
	gh := ghadapter.NewInMem()
	gh.SetFile(owner, repo, branch, "README.rst", "easyconfigs\n")
	gh.SetFile(owner, repo, branch, "easybuild/easyconfigs/g/GCC/GCC-4.8.2.eb", "name = 'GCC'\n")
	gh.SetFile(owner, repo, branch, "easybuild/easyconfigs/g/GCC/GCC-4.9.0.eb", "name = 'GCC'\nversion = '4.9.0'\n")
	gh.SetFile(owner, repo, branch, "easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb", "name = 'zlib'\n")
	return gh
}

func newClient(gh gitrepo.Client, fs afero.Fs) *treefs.Client {
	return treefs.NewClient(gh, ref, "https://raw.example.test", fs, discard())
}

// ─── Join ──────────────────────────────────────────────────────────────────────

func TestJoin(t *testing.T) {
	assert.Equal(t, "a/b/c.eb", treefs.Join("a", "/b/", "c.eb"))
	assert.Equal(t, "a", treefs.Join("", "a", ""))
	assert.Empty(t, treefs.Join())
	assert.Empty(t, treefs.Join("/"))
}

// ─── Resolve ───────────────────────────────────────────────────────────────────

func TestResolve_File(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	obj, err := c.Resolve(context.Background(), "README.rst")
	require.NoError(t, err)
	assert.True(t, treefs.IsFile(obj))
	assert.False(t, treefs.IsDir(obj))
	assert.Equal(t, "README.rst", obj.Name)
}

func TestResolve_Root(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	obj, err := c.Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, treefs.IsDir(obj))
}

func TestResolve_NotFound(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	_, err := c.Resolve(context.Background(), "nope.eb")
	require.Error(t, err)

	var nf gitrepo.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "nope.eb", nf.Path)
	assert.Equal(t, ref, nf.Ref)
}

func TestIsDirIsFile_Nil(t *testing.T) {
	assert.False(t, treefs.IsDir(nil))
	assert.False(t, treefs.IsFile(nil))
	assert.False(t, treefs.IsFile(&gitrepo.Object{Kind: gitrepo.KindUnknown}))
}

// ─── List ──────────────────────────────────────────────────────────────────────

func TestList_Directory(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	entries, err := c.List(context.Background(), "easybuild/easyconfigs/g/GCC")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "GCC-4.8.2.eb", entries[0].Name)
	assert.Equal(t, "GCC-4.9.0.eb", entries[1].Name)
}

func TestList_Root(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	entries, err := c.List(context.Background(), "")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"README.rst", "easybuild"}, names)
}

func TestList_File(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	_, err := c.List(context.Background(), "README.rst")

	var nd treefs.NotADirectoryError
	require.ErrorAs(t, err, &nd)
	assert.Equal(t, "README.rst", nd.Path)
	assert.Equal(t, gitrepo.KindFile, nd.Kind)
}

func TestList_MissingPathIsRemoteError(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	_, err := c.List(context.Background(), "does/not/exist")

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 404, re.StatusCode)
}

func TestList_PropagatesTransportError(t *testing.T) {
	gh := seeded()
	boom := errors.New("connection reset")
	gh.Fail("GetContents", boom)
	c := newClient(gh, afero.NewMemMapFs())

	_, err := c.List(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}

// ─── ReadFile ──────────────────────────────────────────────────────────────────

func TestReadFile(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	data, err := c.ReadFile(context.Background(), "easybuild/easyconfigs/g/GCC/GCC-4.9.0.eb")
	require.NoError(t, err)
	assert.Equal(t, "name = 'GCC'\nversion = '4.9.0'\n", string(data))
}

func TestReadFile_Directory(t *testing.T) {
	c := newClient(seeded(), afero.NewMemMapFs())

	_, err := c.ReadFile(context.Background(), "easybuild/easyconfigs")

	var nf treefs.NotAFileError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "easybuild/easyconfigs", nf.Path)
	assert.Equal(t, gitrepo.KindDir, nf.Kind)
	assert.Contains(t, err.Error(), "not a valid file")
}

func TestReadFile_Empty(t *testing.T) {
	gh := seeded()
	gh.SetFile(owner, repo, branch, "empty.eb", "")
	c := newClient(gh, afero.NewMemMapFs())

	data, err := c.ReadFile(context.Background(), "empty.eb")
	require.NoError(t, err)
	assert.Empty(t, data)
}

// ─── DownloadFile ──────────────────────────────────────────────────────────────

func TestDownloadFile(t *testing.T) {
	gh := seeded()
	gh.SetRaw("https://raw.example.test/hpcugent/easybuild-easyconfigs/master/easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb",
		"text/plain; charset=utf-8", "name = 'zlib'\n")
	fs := afero.NewMemMapFs()
	c := newClient(gh, fs)

	name, err := c.DownloadFile(context.Background(), "easybuild/easyconfigs/z/zlib/zlib-1.2.8.eb")
	require.NoError(t, err)
	assert.Contains(t, name, "zlib-1.2.8.eb")

	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	assert.Equal(t, "name = 'zlib'\n", string(data))
}

func TestDownloadFile_RemoteFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newClient(seeded(), fs)

	_, err := c.DownloadFile(context.Background(), "missing.eb")

	var re gitrepo.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 404, re.StatusCode)
}
