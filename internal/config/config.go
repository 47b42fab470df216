// Package config loads server configuration from the environment and the
// optional agent profile from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/glassboxlabs/glasstrace/reasoning"
)

const (
	defaultHTTPAddr        = "127.0.0.1:8080"
	defaultShutdownTimeout = 5 * time.Second
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.2
)

// Config controls HTTP boot, shutdown, auth, and the agent profile.
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	AuthToken       string
	GeminiAPIKey    string
	ProfilePath     string
	Profile         Profile
}

// Profile is the agent's behavioral configuration. It is snapshotted into
// every trace at begin time, so a later profile edit never rewrites history.
type Profile struct {
	SystemPrompt      string                 `yaml:"system_prompt"`
	Model             string                 `yaml:"model"`
	Temperature       float64                `yaml:"temperature"`
	MaxIterations     int                    `yaml:"max_iterations"`
	RunTimeoutSeconds int                    `yaml:"run_timeout_seconds"`
	HistoryWindow     int                    `yaml:"history_window"`
	Pricing           reasoning.PricingTable `yaml:"pricing"`
}

// RunTimeout converts the profile's timeout to a duration; zero means the
// loop default applies.
func (p Profile) RunTimeout() time.Duration {
	return time.Duration(p.RunTimeoutSeconds) * time.Second
}

// DefaultProfile returns the profile used when no YAML file is configured.
func DefaultProfile() Profile {
	return Profile{
		Model:       defaultModel,
		Temperature: defaultTemperature,
		Pricing:     reasoning.DefaultPricing(),
	}
}

// Load reads runtime configuration from environment variables and, when
// GLASSTRACE_PROFILE_PATH is set, the YAML agent profile.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:        defaultHTTPAddr,
		ShutdownTimeout: defaultShutdownTimeout,
		Profile:         DefaultProfile(),
	}

	if addr := os.Getenv("GLASSTRACE_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}

	if timeout := os.Getenv("GLASSTRACE_SHUTDOWN_TIMEOUT"); timeout != "" {
		parsed, err := time.ParseDuration(timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse GLASSTRACE_SHUTDOWN_TIMEOUT: %w", err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("parse GLASSTRACE_SHUTDOWN_TIMEOUT: value must be > 0")
		}
		cfg.ShutdownTimeout = parsed
	}

	cfg.AuthToken = os.Getenv("GLASSTRACE_AUTH_TOKEN")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	if model := os.Getenv("GLASSTRACE_MODEL"); model != "" {
		cfg.Profile.Model = model
	}

	if temperature := os.Getenv("GLASSTRACE_TEMPERATURE"); temperature != "" {
		parsed, err := strconv.ParseFloat(temperature, 64)
		if err != nil {
			return Config{}, fmt.Errorf("parse GLASSTRACE_TEMPERATURE: %w", err)
		}
		cfg.Profile.Temperature = parsed
	}

	if iterations := os.Getenv("GLASSTRACE_MAX_ITERATIONS"); iterations != "" {
		parsed, err := strconv.Atoi(iterations)
		if err != nil {
			return Config{}, fmt.Errorf("parse GLASSTRACE_MAX_ITERATIONS: %w", err)
		}
		if parsed <= 0 {
			return Config{}, fmt.Errorf("parse GLASSTRACE_MAX_ITERATIONS: value must be > 0")
		}
		cfg.Profile.MaxIterations = parsed
	}

	cfg.ProfilePath = os.Getenv("GLASSTRACE_PROFILE_PATH")
	if cfg.ProfilePath != "" {
		profile, err := LoadProfile(cfg.ProfilePath, cfg.Profile)
		if err != nil {
			return Config{}, err
		}
		cfg.Profile = profile
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadProfile overlays a YAML profile file onto base. Fields absent from the
// file keep their base values.
func LoadProfile(path string, base Profile) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read agent profile: %w", err)
	}

	profile := base
	if err := yaml.Unmarshal(raw, &profile); err != nil {
		return Profile{}, fmt.Errorf("parse agent profile: %w", err)
	}
	if profile.Pricing == nil {
		profile.Pricing = base.Pricing
	}
	return profile, nil
}

// Validate checks invariants that Load's per-field parsing cannot.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("config: HTTPAddr is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: ShutdownTimeout must be > 0")
	}
	if c.Profile.Model == "" {
		return fmt.Errorf("config: profile model is required")
	}
	if c.Profile.Temperature < 0 || c.Profile.Temperature > 2 {
		return fmt.Errorf("config: profile temperature %v out of range [0, 2]", c.Profile.Temperature)
	}
	if c.Profile.MaxIterations < 0 {
		return fmt.Errorf("config: profile max_iterations must be >= 0")
	}
	if c.Profile.RunTimeoutSeconds < 0 {
		return fmt.Errorf("config: profile run_timeout_seconds must be >= 0")
	}
	return nil
}
