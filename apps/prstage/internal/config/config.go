// Package config loads prstage settings.
//
// Precedence, highest first: command-line flags (applied by the caller),
// environment variables, the YAML config file, built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Secret store backends.
const (
	BackendKeyring = "keyring"
	BackendRedis   = "redis"
	BackendNone    = "none"
)

// Defaults for the easyconfigs repository.
const (
	DefaultAPIURL      = "https://api.github.com"
	DefaultRawURL      = "https://raw.githubusercontent.com"
	DefaultOwner       = "hpcugent"
	DefaultRepo        = "easybuild-easyconfigs"
	DefaultBranch      = "master"
	DefaultRedisAddr   = "localhost:6379"
	DefaultConcurrency = 4
)

// Config is the full prstage configuration.
type Config struct {
	GitHub    GitHub    `yaml:"github"`
	Secrets   Secrets   `yaml:"secrets"`
	Fetch     Fetch     `yaml:"fetch"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// GitHub selects the repository and the credentials used to reach it.
type GitHub struct {
	APIURL string `yaml:"api_url"`
	RawURL string `yaml:"raw_url"`
	Owner  string `yaml:"owner"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`

	// User is the key under which the token is looked up in the secret store.
	User  string `yaml:"user"`
	Token Secret `yaml:"token"`

	AppID             int64  `yaml:"app_id"`
	AppInstallationID int64  `yaml:"app_installation_id"`
	AppPrivateKeyPath string `yaml:"app_private_key_path"`
}

// Secrets configures the token store.
type Secrets struct {
	Backend   string `yaml:"backend"`
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

// Fetch tunes PR fetching.
type Fetch struct {
	Concurrency int `yaml:"concurrency"`
}

// Telemetry toggles OpenTelemetry export.
type Telemetry struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		GitHub: GitHub{
			APIURL: DefaultAPIURL,
			RawURL: DefaultRawURL,
			Owner:  DefaultOwner,
			Repo:   DefaultRepo,
			Branch: DefaultBranch,
		},
		Secrets: Secrets{
			Backend:   BackendKeyring,
			RedisAddr: DefaultRedisAddr,
		},
		Fetch: Fetch{Concurrency: DefaultConcurrency},
	}
}

// Load reads the YAML file at path (skipped when path is empty) over the
// defaults, then applies environment overrides and validates the result.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(fs, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file %s too large: %d bytes (max %d)", path, info.Size(), maxConfigFileSize)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.GitHub.APIURL = envOr("GITHUB_API_URL", c.GitHub.APIURL)
	c.GitHub.RawURL = envOr("GITHUB_RAW_URL", c.GitHub.RawURL)
	c.GitHub.Owner = envOr("GITHUB_OWNER", c.GitHub.Owner)
	c.GitHub.Repo = envOr("GITHUB_REPO", c.GitHub.Repo)
	c.GitHub.Branch = envOr("GITHUB_BRANCH", c.GitHub.Branch)
	c.GitHub.User = envOr("GITHUB_USER", c.GitHub.User)
	c.GitHub.Token = Secret(envOr("GITHUB_TOKEN", c.GitHub.Token.Value()))
	c.GitHub.AppPrivateKeyPath = envOr("GITHUB_APP_PRIVATE_KEY_PATH", c.GitHub.AppPrivateKeyPath)
	c.Secrets.Backend = envOr("PRSTAGE_SECRETS_BACKEND", c.Secrets.Backend)
	c.Secrets.RedisAddr = envOr("PRSTAGE_REDIS_ADDR", c.Secrets.RedisAddr)

	var errs []error
	var err error
	if c.GitHub.AppID, err = envInt64("GITHUB_APP_ID", c.GitHub.AppID); err != nil {
		errs = append(errs, err)
	}
	if c.GitHub.AppInstallationID, err = envInt64("GITHUB_APP_INSTALLATION_ID", c.GitHub.AppInstallationID); err != nil {
		errs = append(errs, err)
	}
	concurrency, err := envInt64("PRSTAGE_FETCH_CONCURRENCY", int64(c.Fetch.Concurrency))
	if err != nil {
		errs = append(errs, err)
	}
	c.Fetch.Concurrency = int(concurrency)

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("OTEL_ENABLED: %w", err))
		}
		c.Telemetry.Enabled = enabled
	}
	return errors.Join(errs...)
}

// Validate checks the configuration for values no command can work with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Secrets.Backend {
	case BackendKeyring, BackendRedis, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("secrets.backend: unknown backend %q (want %s, %s or %s)",
			c.Secrets.Backend, BackendKeyring, BackendRedis, BackendNone))
	}
	if c.Secrets.Backend == BackendRedis && c.Secrets.RedisAddr == "" {
		errs = append(errs, errors.New("secrets.redis_addr: required for the redis backend"))
	}
	if c.Fetch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("fetch.concurrency: must be at least 1, got %d", c.Fetch.Concurrency))
	}
	if strings.TrimSpace(c.GitHub.Owner) == "" {
		errs = append(errs, errors.New("github.owner: required"))
	}
	if strings.TrimSpace(c.GitHub.Repo) == "" {
		errs = append(errs, errors.New("github.repo: required"))
	}
	if strings.TrimSpace(c.GitHub.Branch) == "" {
		errs = append(errs, errors.New("github.branch: required"))
	}
	return errors.Join(errs...)
}

// HasAppCredentials reports whether all GitHub App fields are set.
func (g GitHub) HasAppCredentials() bool {
	return g.AppID != 0 && g.AppInstallationID != 0 && g.AppPrivateKeyPath != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
