// Package config loads the wire client configuration from YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/core/client"
	"github.com/xagent-cli/xagent/core/retry"
)

// Environment variables read by FromEnv.
const (
	EnvBaseURL = "XAGENT_BASE_URL"
	EnvAPIKey  = "XAGENT_API_KEY"
	EnvModel   = "XAGENT_MODEL"
	EnvModels  = "XAGENT_MODELS"
)

// File is the on-disk configuration.
type File struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Model   string   `yaml:"model"`
	Models  []string `yaml:"models"`
	Retry   *Retry   `yaml:"retry"`
}

// Retry overrides the default retry policy. Absent fields keep their
// defaults.
type Retry struct {
	MaxRetries *int          `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	MaxElapsed time.Duration `yaml:"max_elapsed"`
	Jitter     *bool         `yaml:"jitter"`
	Multiplier float64       `yaml:"multiplier"`
	RetryOn    []string      `yaml:"retry_on"`
}

var retryableClasses = map[apierror.Class]bool{
	apierror.ClassClient:    true,
	apierror.ClassRateLimit: true,
	apierror.ClassServer:    true,
	apierror.ClassNetwork:   true,
	apierror.ClassTimeout:   true,
	apierror.ClassDecode:    true,
}

// Load reads YAML configuration from disk and validates the result.
func Load(path string) (File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return File{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return File{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return File{}, err
	}
	return cfg, nil
}

// FromEnv builds a configuration layer from XAGENT_* variables. The named
// dotenv files are loaded first when they exist; variables already set in the
// process win over file values. The layer is not validated: merge it with the
// other sources and call Validate on the result.
func FromEnv(dotenvFiles ...string) (File, error) {
	for _, name := range dotenvFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("load %q: %w", name, err)
		}
	}

	cfg := File{
		BaseURL: os.Getenv(EnvBaseURL),
		APIKey:  os.Getenv(EnvAPIKey),
		Model:   os.Getenv(EnvModel),
	}
	for _, model := range strings.Split(os.Getenv(EnvModels), ",") {
		if model = strings.TrimSpace(model); model != "" {
			cfg.Models = append(cfg.Models, model)
		}
	}
	return cfg, nil
}

// Merge returns f with every non-empty field of override applied on top.
func (f File) Merge(override File) File {
	if override.BaseURL != "" {
		f.BaseURL = override.BaseURL
	}
	if override.APIKey != "" {
		f.APIKey = override.APIKey
	}
	if override.Model != "" {
		f.Model = override.Model
	}
	if len(override.Models) > 0 {
		f.Models = override.Models
	}
	if override.Retry != nil {
		f.Retry = override.Retry
	}
	return f
}

// Validate performs sanity checks on the configuration.
func (f File) Validate() error {
	if strings.TrimSpace(f.BaseURL) == "" {
		return fmt.Errorf("base_url must be provided")
	}
	for _, model := range f.Models {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("models: model id must not be empty")
		}
	}
	if f.Retry == nil {
		return nil
	}

	r := f.Retry
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative, got %d", *r.MaxRetries)
	}
	if r.BaseDelay < 0 || r.MaxDelay < 0 || r.MaxElapsed < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if r.MaxDelay > 0 && r.BaseDelay > r.MaxDelay {
		return fmt.Errorf("retry.base_delay %s exceeds retry.max_delay %s", r.BaseDelay, r.MaxDelay)
	}
	if r.Multiplier < 0 {
		return fmt.Errorf("retry.multiplier must not be negative, got %v", r.Multiplier)
	}
	for _, class := range r.RetryOn {
		if !retryableClasses[apierror.Class(class)] {
			return fmt.Errorf("retry.retry_on: unknown error class %q", class)
		}
	}
	return nil
}

// RetryConfig returns the retry policy, starting from retry.DefaultConfig.
func (f File) RetryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	r := f.Retry
	if r == nil {
		return cfg
	}

	if r.MaxRetries != nil {
		cfg.MaxRetries = *r.MaxRetries
	}
	if r.BaseDelay > 0 {
		cfg.BaseDelay = r.BaseDelay
	}
	if r.MaxDelay > 0 {
		cfg.MaxDelay = r.MaxDelay
	}
	if r.MaxElapsed > 0 {
		cfg.MaxElapsed = r.MaxElapsed
	}
	if r.Jitter != nil {
		cfg.Jitter = *r.Jitter
	}
	if r.Multiplier > 0 {
		cfg.Multiplier = r.Multiplier
	}
	if r.RetryOn != nil {
		cfg.RetryOn = make([]apierror.Class, 0, len(r.RetryOn))
		for _, class := range r.RetryOn {
			cfg.RetryOn = append(cfg.RetryOn, apierror.Class(class))
		}
	}
	return cfg
}

// ClientConfig converts the file into a client configuration. Transport,
// observer and middleware are left for the caller.
func (f File) ClientConfig() client.Config {
	policy := f.RetryConfig()
	return client.Config{
		BaseURL: f.BaseURL,
		APIKey:  f.APIKey,
		Model:   f.Model,
		Models:  f.Models,
		Retry:   &policy,
	}
}
