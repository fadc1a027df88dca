// Package prfetch stages the files changed by a pull request, at the PR's
// latest commit, into a local directory.
package prfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tilsley/prstage/apps/prstage/internal/diffparse"
	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
	"github.com/tilsley/prstage/apps/prstage/internal/platform/telemetry"
)

const (
	instrName = "github.com/tilsley/prstage/prfetch"

	// MergeableStateClean is reported by GitHub when tests passed (or are
	// missing) and the PR applies cleanly.
	MergeableStateClean = "clean"

	diffContentType    = "text/plain"
	defaultConcurrency = 4
)

// Options configures a Fetcher.
type Options struct {
	Owner       string
	Repo        string
	RawBaseURL  string
	Concurrency int
}

// Fetcher stages the files touched by a PR. A single Fetcher may serve
// concurrent Fetch calls as long as each uses its own staging directory.
type Fetcher struct {
	gh   gitrepo.Client
	fs   afero.Fs
	opts Options
	log  *slog.Logger

	tracer     trace.Tracer
	downloaded metric.Int64Counter
	failed     metric.Int64Counter
}

// New creates a Fetcher for opts.Owner/opts.Repo.
func New(gh gitrepo.Client, fs afero.Fs, opts Options, log *slog.Logger) *Fetcher {
	if opts.RawBaseURL == "" {
		opts.RawBaseURL = gitrepo.DefaultRawBaseURL
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}

	meter := otel.Meter(instrName)
	downloaded, err := meter.Int64Counter("prstage.fetch.files_downloaded",
		metric.WithDescription("Files staged from pull requests"))
	if err != nil {
		log.Warn("files_downloaded counter unavailable", "error", err)
		downloaded = noop.Int64Counter{}
	}
	failed, err := meter.Int64Counter("prstage.fetch.failures",
		metric.WithDescription("Pull request fetches that ended in an error"))
	if err != nil {
		log.Warn("failures counter unavailable", "error", err)
		failed = noop.Int64Counter{}
	}

	return &Fetcher{
		gh:         gh,
		fs:         fs,
		opts:       opts,
		log:        log,
		tracer:     otel.Tracer(instrName),
		downloaded: downloaded,
		failed:     failed,
	}
}

// ParsePRNumber converts user input into a pull request number.
func ParsePRNumber(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, InvalidArgumentError{Arg: "pull request number", Value: raw, Reason: "not an integer"}
	}
	if n <= 0 {
		return 0, InvalidArgumentError{Arg: "pull request number", Value: raw, Reason: "must be positive"}
	}
	return n, nil
}

// Fetch downloads every file changed by PR pr, at the PR's last commit, into
// stagingDir (a fresh temp dir when empty) and returns the absolute paths of
// the staged files, sorted by name.
//
// The PR must be in the "clean" mergeable state. The diff artifact used to
// discover the changed files never survives the call; downloaded files are
// kept even when Fetch fails so they can be inspected.
func (f *Fetcher) Fetch(ctx context.Context, pr int, stagingDir string) (_ []string, err error) {
	ctx, span := f.tracer.Start(ctx, "Fetch",
		trace.WithAttributes(
			attribute.Int("pr.number", pr),
			telemetry.RepositoryKey.String(f.repoName()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			f.failed.Add(ctx, 1, metric.WithAttributes(
				telemetry.RepositoryKey.String(f.repoName()),
				telemetry.ReasonKey.String(failureReason(err)),
			))
		}
		span.End()
	}()

	if pr <= 0 {
		return nil, InvalidArgumentError{Arg: "pull request number", Value: strconv.Itoa(pr), Reason: "must be positive"}
	}

	dir, err := f.prepareStaging(pr, stagingDir)
	if err != nil {
		return nil, err
	}
	log := f.log.With("pr", pr, "repo", f.repoName(), "dir", dir)
	log.Debug("fetching changed files from PR")

	meta, err := f.gh.GetPullRequest(ctx, f.opts.Owner, f.opts.Repo, pr)
	if err != nil {
		return nil, fmt.Errorf("fetch PR #%d metadata: %w", pr, err)
	}
	log.Debug("PR metadata",
		"mergeable_state", meta.MergeableState,
		"diff_url", meta.DiffURL,
		"html_url", meta.HTMLURL,
	)

	if meta.MergeableState != MergeableStateClean {
		return nil, UnstablePRError{Number: pr, Expected: MergeableStateClean, Actual: meta.MergeableState}
	}

	changed, err := f.changedPaths(ctx, meta, dir)
	if err != nil {
		return nil, err
	}

	commits, err := f.gh.ListCommits(ctx, f.opts.Owner, f.opts.Repo, pr)
	if err != nil {
		return nil, fmt.Errorf("list commits of PR #%d: %w", pr, err)
	}
	if len(commits) == 0 {
		return nil, fmt.Errorf("PR #%d in %s/%s has no commits", pr, f.opts.Owner, f.opts.Repo)
	}
	// The API lists commits oldest first; the last entry is the PR head.
	meta.HeadSHA = commits[len(commits)-1].SHA
	span.SetAttributes(attribute.String("pr.head_sha", meta.HeadSHA))
	log.Debug("resolved PR head", "sha", meta.HeadSHA, "commits", len(commits))

	failures, err := f.downloadAll(ctx, meta.HeadSHA, changed, dir)
	if err != nil {
		return nil, err
	}

	return f.verify(dir, changed, failures)
}

func (f *Fetcher) repoName() string {
	return f.opts.Owner + "/" + f.opts.Repo
}

func (f *Fetcher) prepareStaging(pr int, stagingDir string) (string, error) {
	if stagingDir == "" {
		dir, err := afero.TempDir(f.fs, "", fmt.Sprintf("prstage-pr%d-", pr))
		if err != nil {
			return "", fmt.Errorf("allocate staging dir: %w", err)
		}
		return filepath.Abs(dir)
	}

	dir, err := filepath.Abs(stagingDir)
	if err != nil {
		return "", fmt.Errorf("resolve staging dir %s: %w", stagingDir, err)
	}
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir %s: %w", dir, err)
	}
	return dir, nil
}

// changedPaths downloads the PR diff into dir, parses it and removes it again.
func (f *Fetcher) changedPaths(ctx context.Context, meta *gitrepo.PullRequest, dir string) ([]string, error) {
	diffPath := filepath.Join(dir, diffName(meta))
	exists, err := afero.Exists(f.fs, diffPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", diffPath, err)
	}
	if exists {
		return nil, InvalidArgumentError{
			Arg:    "staging directory",
			Value:  dir,
			Reason: "already contains " + filepath.Base(diffPath),
		}
	}
	defer func() {
		if err := f.fs.Remove(diffPath); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			f.log.Warn("failed to remove diff artifact", "path", diffPath, "error", err)
		}
	}()

	if err := f.downloadTo(ctx, meta.DiffURL, diffPath, diffContentType); err != nil {
		return nil, fmt.Errorf("download diff of PR #%d: %w", meta.Number, err)
	}

	text, err := afero.ReadFile(f.fs, diffPath)
	if err != nil {
		return nil, fmt.Errorf("read diff %s: %w", diffPath, err)
	}
	changed := diffparse.ExtractChangedPaths(string(text))
	f.log.Debug("parsed PR diff", "pr", meta.Number, "files", changed)
	return changed, nil
}

// downloadAll stages every changed path at sha. Non-success answers from the
// host are returned as per-file failures. Any other error stops new downloads
// from starting and aborts the fetch once the in-flight ones have settled.
func (f *Fetcher) downloadAll(ctx context.Context, sha string, changed []string, dir string) ([]error, error) {
	results := make([]error, len(changed))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Concurrency)
	for i, p := range changed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// In-flight downloads use ctx so they finish rather than being cut off.
			err := f.downloadChanged(ctx, sha, p, dir)
			var re gitrepo.RemoteError
			if err != nil && !errors.As(err, &re) {
				return fmt.Errorf("download %s: %w", p, err)
			}
			results[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failures []error
	for i, err := range results {
		if err != nil {
			failures = append(failures, fmt.Errorf("download %s: %w", changed[i], err))
		}
	}
	return failures, nil
}

func (f *Fetcher) downloadChanged(ctx context.Context, sha, p, dir string) error {
	name := path.Base(p)
	rawURL := gitrepo.RawURL(f.opts.RawBaseURL, f.opts.Owner, f.opts.Repo, sha, p)

	ctx, span := f.tracer.Start(ctx, "DownloadFile",
		trace.WithAttributes(
			attribute.String("file.path", p),
			attribute.String("commit.sha", sha),
		),
	)
	defer span.End()

	f.log.Info("downloading changed file", "file", name, "url", rawURL)
	if err := f.downloadTo(ctx, rawURL, filepath.Join(dir, name), ""); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.log.Warn("download failed", "file", p, "url", rawURL, "error", err)
		return err
	}
	f.downloaded.Add(ctx, 1, metric.WithAttributes(telemetry.RepositoryKey.String(f.repoName())))
	return nil
}

// downloadTo writes the body served at rawURL to dest. The file is only
// created once the host has answered successfully. A non-empty wantType
// requires that media type.
func (f *Fetcher) downloadTo(ctx context.Context, rawURL, dest, wantType string) error {
	raw, err := f.gh.OpenRaw(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = raw.Body.Close() }() //nolint:errcheck // non-actionable after reading

	if wantType != "" && mediaType(raw.ContentType) != wantType {
		return UnexpectedContentTypeError{URL: rawURL, Expected: wantType, Actual: raw.ContentType}
	}

	out, err := f.fs.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, raw.Body); err != nil {
		_ = out.Close()       //nolint:errcheck // already failing
		_ = f.fs.Remove(dest) //nolint:errcheck // best effort
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}

// verify compares what landed in dir against the basenames the diff named.
func (f *Fetcher) verify(dir string, changed []string, failures []error) ([]string, error) {
	infos, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("list staging dir %s: %w", dir, err)
	}
	staged := make([]string, 0, len(infos))
	for _, info := range infos {
		staged = append(staged, info.Name())
	}
	sort.Strings(staged)

	expected := make([]string, 0, len(changed))
	for _, p := range changed {
		expected = append(expected, path.Base(p))
	}
	sort.Strings(expected)

	missing, extra := diffMultiset(expected, staged)
	if len(missing) > 0 || len(extra) > 0 || len(failures) > 0 {
		return nil, IncompleteFetchError{
			Dir:      dir,
			Missing:  missing,
			Extra:    extra,
			Staged:   staged,
			Expected: expected,
			Failures: failures,
		}
	}

	out := make([]string, len(staged))
	for i, name := range staged {
		out[i] = filepath.Join(dir, name)
	}
	f.log.Info("staged PR files", "dir", dir, "files", len(out))
	return out, nil
}

// diffMultiset returns the elements of want not matched in got, and of got not
// matched in want. Both inputs must be sorted.
func diffMultiset(want, got []string) (missing, extra []string) {
	i, j := 0, 0
	for i < len(want) && j < len(got) {
		switch {
		case want[i] == got[j]:
			i++
			j++
		case want[i] < got[j]:
			missing = append(missing, want[i])
			i++
		default:
			extra = append(extra, got[j])
			j++
		}
	}
	missing = append(missing, want[i:]...)
	extra = append(extra, got[j:]...)
	return missing, extra
}

// diffName picks the local name of the diff artifact, e.g. "1234.diff".
func diffName(meta *gitrepo.PullRequest) string {
	if u, err := url.Parse(meta.DiffURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return fmt.Sprintf("%d.diff", meta.Number)
}

func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
		return strings.ToLower(strings.TrimSpace(mt))
	}
	return mt
}

func failureReason(err error) string {
	var (
		unstable   UnstablePRError
		incomplete IncompleteFetchError
		badType    UnexpectedContentTypeError
		invalid    InvalidArgumentError
		remote     gitrepo.RemoteError
	)
	switch {
	case errors.As(err, &unstable):
		return "unstable"
	case errors.As(err, &incomplete):
		return "incomplete"
	case errors.As(err, &badType):
		return "content_type"
	case errors.As(err, &invalid):
		return "invalid_argument"
	case errors.As(err, &remote):
		return "remote"
	default:
		return "other"
	}
}
