package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	ghadapter "github.com/tilsley/prstage/apps/prstage/internal/adapters/github"
	"github.com/tilsley/prstage/apps/prstage/internal/config"
	"github.com/tilsley/prstage/apps/prstage/internal/credentials"
	"github.com/tilsley/prstage/apps/prstage/internal/gitrepo"
	ghplatform "github.com/tilsley/prstage/apps/prstage/internal/platform/github"
	"github.com/tilsley/prstage/apps/prstage/internal/platform/telemetry"
	"github.com/tilsley/prstage/pkg/logging"
)

const serviceName = "prstage"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	fs     afero.Fs
	stderr io.Writer

	configPath string
	owner      string
	repo       string
	branch     string
	apiURL     string
	rawURL     string
	traceCalls bool
}

// session is what a subcommand works with once flags, config, credentials and
// telemetry are resolved.
type session struct {
	cfg   *config.Config
	log   *slog.Logger
	fs    afero.Fs
	gh    gitrepo.Client
	store credentials.Store

	rec      *gitrepo.RecordingClient
	closeFns []func(context.Context) error
}

func newRootCmd(fs afero.Fs, stderr io.Writer) *cobra.Command {
	o := &rootOptions{fs: fs, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "prstage",
		Short: "Stage pull request files and browse GitHub repository trees",
		Long: `prstage talks to GitHub on behalf of a build-and-test workflow.

It can walk and read a repository tree at a branch, download every file
changed by a pull request at the PR's latest commit, and publish results
as gists or PR comments.

Settings come from --config (YAML), then environment variables such as
GITHUB_TOKEN, GITHUB_USER and PRSTAGE_SECRETS_BACKEND, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "path to a YAML config file")
	pf.StringVar(&o.owner, "owner", "", "repository owner (default hpcugent)")
	pf.StringVar(&o.repo, "repo", "", "repository name (default easybuild-easyconfigs)")
	pf.StringVar(&o.branch, "branch", "", "branch to browse (default master)")
	pf.StringVar(&o.apiURL, "api-url", "", "GitHub API base URL")
	pf.StringVar(&o.rawURL, "raw-url", "", "raw content base URL")
	pf.BoolVar(&o.traceCalls, "trace-calls", false, "log every GitHub call the command made")

	cmd.AddCommand(
		newFetchPRCmd(o),
		newWalkCmd(o),
		newReadCmd(o),
		newGistCmd(o),
		newCommentCmd(o),
		newTokenCmd(o),
	)
	return cmd
}

// loadConfig applies flags that were set on top of file and env settings.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.fs, o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	override("owner", &cfg.GitHub.Owner, o.owner)
	override("repo", &cfg.GitHub.Repo, o.repo)
	override("branch", &cfg.GitHub.Branch, o.branch)
	override("api-url", &cfg.GitHub.APIURL, o.apiURL)
	override("raw-url", &cfg.GitHub.RawURL, o.rawURL)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// open resolves everything a command needs to talk to GitHub.
func (o *rootOptions) open(cmd *cobra.Command) (*session, error) {
	ctx := cmd.Context()
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logging.New(o.stderr).With("command", cmd.Name())

	s := &session{cfg: cfg, log: log, fs: o.fs}

	tel, err := telemetry.New(ctx, telemetry.Options{
		Enabled: cfg.Telemetry.Enabled,
		Service: serviceName,
		Owner:   cfg.GitHub.Owner,
		Repo:    cfg.GitHub.Repo,
		Branch:  cfg.GitHub.Branch,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	s.closeFns = append(s.closeFns, tel.Shutdown)

	store, closeStore, err := credentials.Open(cfg.Secrets)
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	s.store = store
	s.closeFns = append(s.closeFns, func(context.Context) error { return closeStore() })

	token, err := resolveToken(ctx, cfg, store, log)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	client, mode, err := ghplatform.NewClient(ctx, ghplatform.Options{
		BaseURL:        cfg.GitHub.APIURL,
		Token:          token.Value(),
		AppID:          cfg.GitHub.AppID,
		InstallationID: cfg.GitHub.AppInstallationID,
		PrivateKeyPath: cfg.GitHub.AppPrivateKeyPath,
	})
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	log.Debug("github client ready", "auth", string(mode), "api_url", cfg.GitHub.APIURL)

	s.gh = ghadapter.New(client)
	if o.traceCalls {
		s.rec = gitrepo.NewRecordingClient(s.gh)
		s.gh = s.rec
	}
	return s, nil
}

// resolveToken picks the token per the documented order: explicit token,
// then (if no App credentials) the secret store entry for github.user.
// A store that cannot be reached is logged and the client runs anonymously.
func resolveToken(ctx context.Context, cfg *config.Config, store credentials.Store, log *slog.Logger) (config.Secret, error) {
	if cfg.GitHub.Token.IsSet() || cfg.GitHub.HasAppCredentials() {
		return cfg.GitHub.Token, nil
	}
	if cfg.GitHub.User == "" {
		log.Debug("no GitHub token or user configured, running anonymously")
		return "", nil
	}

	token, msg, err := credentials.NewProvider(store, log).ResolveToken(ctx, cfg.GitHub.User)
	var unavailable credentials.CredentialStoreUnavailableError
	switch {
	case errors.As(err, &unavailable):
		log.Warn("secret store unavailable, running anonymously", "error", err)
		return "", nil
	case err != nil:
		return "", err
	case !token.IsSet():
		log.Warn(firstLine(msg), "guidance", msg)
	}
	return token, nil
}

// close reports traced calls and releases resources.
func (s *session) close(ctx context.Context) {
	if s.rec != nil {
		for _, c := range s.rec.Calls() {
			s.log.Info("github call", "op", c.Op, "target", c.Target)
		}
	}
	for i := len(s.closeFns) - 1; i >= 0; i-- {
		if err := s.closeFns[i](ctx); err != nil {
			s.log.Warn("shutdown failed", "error", err)
		}
	}
}

func (s *session) ref() gitrepo.Ref {
	return gitrepo.Ref{Owner: s.cfg.GitHub.Owner, Repo: s.cfg.GitHub.Repo, Branch: s.cfg.GitHub.Branch}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
