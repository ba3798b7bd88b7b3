// Package config loads Piexi client configuration from ~/.piexi/config.yaml.
//
// Every field has a sensible default so a missing config file is not an
// error; secrets may also come from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Provider selects which conversational search backend implementation to use.
const (
	ProviderRemote = "remote" // hosted Piexi answer endpoint (SSE)
	ProviderOpenAI = "openai" // direct OpenAI-compatible API
)

// Config holds all client settings.
type Config struct {
	// Provider is "remote" or "openai".
	Provider string `yaml:"provider"`

	// Endpoint is the base URL of the hosted Piexi backend (answer streaming
	// and bookmark store). Used by the remote provider and the bookmark client.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates against the backend. Falls back to PIEXI_API_KEY,
	// then OPENAI_API_KEY for the openai provider.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the OpenAI-compatible API base URL.
	BaseURL string `yaml:"base_url"`

	// Model is the model name used by the openai provider.
	Model string `yaml:"model"`

	// TokenBudget caps how many tokens of prior conversation are sent as
	// context with each request.
	TokenBudget int `yaml:"token_budget"`

	// BlockedDomains are glob patterns of hostnames the embedded browse view
	// refuses to open, e.g. "*.example.com".
	BlockedDomains []string `yaml:"blocked_domains"`

	// LiveBrowser renders browse-view pages in a headless browser instead of
	// the plain HTTP fetcher. Needs a working Playwright install.
	LiveBrowser bool `yaml:"live_browser"`

	// DataDir is where tab state is persisted. Defaults to ~/.piexi.
	DataDir string `yaml:"data_dir"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Provider:    ProviderOpenAI,
		Model:       "gpt-4o",
		TokenBudget: 6000,
	}
}

// DefaultPath returns ~/.piexi/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".piexi", "config.yaml"), nil
}

// Load reads configuration from path, applying defaults and environment
// fallbacks. A missing file yields the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("PIEXI_API_KEY")
	}
	if c.APIKey == "" && c.Provider == ProviderOpenAI {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DataDir = filepath.Join(home, ".piexi")
		}
	}
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderRemote:
		if c.Endpoint == "" {
			return fmt.Errorf("remote provider requires an endpoint")
		}
	case ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = Default().TokenBudget
	}
	return nil
}

// TabsPath returns the path of the persisted tab-state file.
func (c Config) TabsPath() string {
	return filepath.Join(c.DataDir, "tabs.json")
}
