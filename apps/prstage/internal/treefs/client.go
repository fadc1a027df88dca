// Package treefs exposes a remote repository tree at a fixed branch as a small
// read-only filesystem: resolve, list, read and walk.
package treefs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
)

// Client resolves paths in one owner/repo@branch tree. Nothing is cached;
// every call is a fresh request.
type Client struct {
	gh      gitrepo.Client
	ref     gitrepo.Ref
	rawBase string
	fs      afero.Fs
	log     *slog.Logger
}

// NewClient creates a Client for ref. rawBase is the raw-content host used by
// DownloadFile; fs receives downloaded temp files.
func NewClient(gh gitrepo.Client, ref gitrepo.Ref, rawBase string, fs afero.Fs, log *slog.Logger) *Client {
	if rawBase == "" {
		rawBase = gitrepo.DefaultRawBaseURL
	}
	return &Client{gh: gh, ref: ref, rawBase: rawBase, fs: fs, log: log}
}

// Ref returns the tree this client browses.
func (c *Client) Ref() gitrepo.Ref { return c.ref }

// Join joins remote path segments with "/", skipping empty ones.
func Join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// IsDir reports whether obj is a directory.
func IsDir(obj *gitrepo.Object) bool {
	return obj != nil && obj.Kind == gitrepo.KindDir
}

// IsFile reports whether obj is a regular file. Unknown objects are not files.
func IsFile(obj *gitrepo.Object) bool {
	return obj != nil && obj.Kind == gitrepo.KindFile
}

// Resolve returns the object at p ("" is the repository root).
func (c *Client) Resolve(ctx context.Context, p string) (*gitrepo.Object, error) {
	p = Join(p)
	obj, err := c.gh.GetContents(ctx, c.ref.Owner, c.ref.Repo, p, c.ref.Branch)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// List returns the immediate entries of the directory at p, in API order.
func (c *Client) List(ctx context.Context, p string) ([]gitrepo.Object, error) {
	obj, err := c.Resolve(ctx, p)
	if err != nil {
		c.log.Warn("list failed", "ref", c.ref.String(), "path", p, "error", err)
		return nil, err
	}
	if !IsDir(obj) {
		return nil, NotADirectoryError{Path: Join(p), Kind: obj.Kind}
	}
	c.log.Debug("listed directory", "ref", c.ref.String(), "path", p, "entries", len(obj.Entries))
	return obj.Entries, nil
}

// ReadFile returns the decoded content of the file at p, read through the
// contents API.
func (c *Client) ReadFile(ctx context.Context, p string) ([]byte, error) {
	obj, err := c.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if !IsFile(obj) {
		return nil, NotAFileError{Path: Join(p), Kind: obj.Kind}
	}
	if obj.Content == nil {
		if obj.Size > 0 {
			return nil, fmt.Errorf("read %s: content of %d bytes not inlined by the API, download it instead", Join(p), obj.Size)
		}
		return []byte{}, nil
	}
	return obj.Content, nil
}

// DownloadFile fetches the raw content of p at the branch tip into a new temp
// file and returns its name.
func (c *Client) DownloadFile(ctx context.Context, p string) (string, error) {
	p = Join(p)
	url := gitrepo.RawURL(c.rawBase, c.ref.Owner, c.ref.Repo, c.ref.Branch, p)

	raw, err := c.gh.OpenRaw(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() { _ = raw.Body.Close() }() //nolint:errcheck // non-actionable after reading

	f, err := afero.TempFile(c.fs, "", "prstage-*-"+path.Base(p))
	if err != nil {
		return "", fmt.Errorf("allocate temp file: %w", err)
	}
	name := f.Name()
	if _, err := io.Copy(f, raw.Body); err != nil {
		_ = f.Close()         //nolint:errcheck // already failing
		_ = c.fs.Remove(name) //nolint:errcheck // best effort
		return "", fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	c.log.Info("downloaded file", "url", url, "dest", name)
	return name, nil
}
