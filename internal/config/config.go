// Package config loads WatchGraph client settings from
// $HOME/.watchgraph/config.yaml, environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL      = "http://localhost:8001"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 8
)

// Environment variables that override file values.
const (
	EnvAPIURL    = "WATCHGRAPH_API_URL"
	EnvTokenFile = "WATCHGRAPH_TOKEN_FILE"
)

// Config holds client settings. Zero values are filled by Load.
type Config struct {
	APIURL      string        `yaml:"api_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`
	Format      string        `yaml:"format"`
	TokenFile   string        `yaml:"token_file"`
	Auth        Auth          `yaml:"auth"`
}

// Auth configures the identity provider used by `watchgraph login`.
type Auth struct {
	TokenURL string   `yaml:"token_url"`
	ClientID string   `yaml:"client_id"`
	Scopes   []string `yaml:"scopes"`
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".watchgraph"), nil
}

// DefaultPath returns $HOME/.watchgraph/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads path (DefaultPath when empty), applies environment overrides and
// defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	var c Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", path, err)
		}
	}

	c.applyEnv()
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvTokenFile); v != "" {
		c.TokenFile = v
	}
}

func (c *Config) applyDefaults() error {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Format == "" {
		c.Format = DefaultFormat(os.Stdout.Fd())
	}
	if c.TokenFile == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		c.TokenFile = filepath.Join(dir, "token.json")
	}
	return nil
}

// DefaultFormat picks "text" for an interactive terminal and "json" otherwise.
func DefaultFormat(fd uintptr) string {
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "text"
	}
	return "json"
}

// Validate returns an error if any setting is unusable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_url %q is not an absolute URL", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %s", c.Timeout)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0, got %d", c.Concurrency)
	}
	switch c.Format {
	case "json", "md", "text":
	default:
		return fmt.Errorf("format must be json, md or text, got %q", c.Format)
	}
	return nil
}
