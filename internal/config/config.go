package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the portal client settings. Values resolve in order:
// built-in defaults, then the YAML config file, then environment
// variables.
type Config struct {
	// BaseURL is the REST gateway root.
	BaseURL string `yaml:"base_url"`
	// StateFile holds the credential and cached profile.
	StateFile string `yaml:"state_file"`
	// PollInterval is the notification polling cadence.
	PollInterval time.Duration `yaml:"poll_interval"`
	// RequestTimeout bounds each gateway call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// RequestsPerSecond throttles outbound calls; 0 disables.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the config file at path if it exists, then applies
// environment overrides. A missing file is not an error; defaults
// apply.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			content := expandEnvVars(string(b))
			if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if v := os.Getenv("PORTAL_API_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PORTAL_STATE_FILE"); v != "" {
		cfg.StateFile = v
	}
	if v := os.Getenv("PORTAL_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("PORTAL_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = d
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		BaseURL:      "http://localhost:8080",
		StateFile:    defaultStateFile(),
		PollInterval: 30 * time.Second,
	}
}

// defaultStateFile places session state under the user config dir,
// falling back to the working directory when that is unavailable.
func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".recruitport/session.json"
	}
	return filepath.Join(dir, "recruitport", "session.json")
}

// expandEnvVars substitutes ${VAR} references with environment values,
// leaving unknown references untouched.
func expandEnvVars(content string) string {
	return envPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := match[2 : len(match)-1]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return match
	})
}
