// Package github builds authenticated go-github clients. Callers wrap the
// returned *github.Client with the adapter in apps/prstage/internal/adapters/github.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v75/github"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

// AuthMode names how a client authenticates.
type AuthMode string

const (
	AuthAnonymous AuthMode = "anonymous"
	AuthToken     AuthMode = "token"
	AuthApp       AuthMode = "app"
)

// Options selects the credentials for NewClient. App credentials win over a
// token when all three app fields are set.
type Options struct {
	BaseURL string

	Token string

	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

func (o Options) hasApp() bool {
	return o.AppID != 0 && o.InstallationID != 0 && o.PrivateKeyPath != ""
}

// NewClient creates a *github.Client from opts and reports which auth mode it used.
func NewClient(ctx context.Context, opts Options) (*gogithub.Client, AuthMode, error) {
	if opts.hasApp() {
		c, err := NewAppClient(opts.AppID, opts.InstallationID, opts.PrivateKeyPath, opts.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return c, AuthApp, nil
	}
	c := NewTokenClient(ctx, opts.Token, opts.BaseURL)
	if opts.Token == "" {
		return c, AuthAnonymous, nil
	}
	return c, AuthToken, nil
}

// NewTokenClient creates a *github.Client authenticated with a personal access
// token. An empty token yields an anonymous, rate-limited client. Pass
// baseURL="" for the real GitHub API, or e.g. "http://localhost:9090" for the
// mock server.
func NewTokenClient(ctx context.Context, token, baseURL string) *gogithub.Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	c := gogithub.NewClient(httpClient)
	applyBaseURL(c, baseURL)
	return c
}

// NewAppClient creates a *github.Client authenticated as a GitHub App installation.
func NewAppClient(appID, installationID int64, privateKeyPath, baseURL string) (*gogithub.Client, error) {
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		base = defaultAPIURL
	}

	tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("github app auth: %w", err)
	}
	tr.BaseURL = base

	c := gogithub.NewClient(&http.Client{Transport: tr})
	applyBaseURL(c, baseURL)
	return c, nil
}

// applyBaseURL points c at a non-default API host. go-github requires the
// trailing slash.
func applyBaseURL(c *gogithub.Client, baseURL string) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" || baseURL == defaultAPIURL {
		return
	}
	u, err := url.Parse(baseURL + "/")
	if err != nil {
		return
	}
	c.BaseURL = u
}
