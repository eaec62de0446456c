package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level boardsync.yml configuration
type Config struct {
	// APIURL is the REST base url of the board server
	APIURL string `yaml:"api_url"`
	// WSURL is the websocket base url board ids are appended to
	WSURL string `yaml:"ws_url"`
	// Token authenticates both REST calls and the websocket dial
	Token string `yaml:"token,omitempty"`
}

// Validate performs strict validation on the configuration
func (c *Config) Validate() error {
	// Required: api_url
	if c.APIURL == "" {
		return fmt.Errorf("api_url is required")
	}
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("api_url must be an http(s) url, got %s", c.APIURL)
	}

	// Required: ws_url
	if c.WSURL == "" {
		return fmt.Errorf("ws_url is required")
	}
	if !strings.HasPrefix(c.WSURL, "ws://") && !strings.HasPrefix(c.WSURL, "wss://") {
		return fmt.Errorf("ws_url must be a ws(s) url, got %s", c.WSURL)
	}

	// Token may come from the environment instead of the file
	if c.Token == "" {
		return fmt.Errorf("token is required (set it in the file or via BOARDSYNC_TOKEN)")
	}

	return nil
}

// applyEnv overlays BOARDSYNC_* environment variables over file values.
// Environment wins so the token can stay out of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("BOARDSYNC_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("BOARDSYNC_WS_URL"); v != "" {
		c.WSURL = v
	}
	if v := os.Getenv("BOARDSYNC_TOKEN"); v != "" {
		c.Token = v
	}
}

// Load reads and validates boardsync.yml from the specified path. A .env
// file next to the working directory is loaded first if present, then
// BOARDSYNC_* environment variables override the file values.
func Load(path string) (*Config, error) {
	// best effort: absence of .env is not an error
	_ = godotenv.Load()

	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// no file: the environment must carry everything
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
