package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"citizenportal/internal/domain"
)

// FileName is the config file looked up in the workspace.
const FileName = "portal.yml"

// Config models portal.yml.
type Config struct {
	Intake struct {
		PhoneCountryCode   string `yaml:"phone_country_code"`
		MaxAttachmentBytes int64  `yaml:"max_attachment_bytes"`
		ReferencePrefix    string `yaml:"reference_prefix"`
	} `yaml:"intake"`
	// Categories overrides the built-in catalog when non-empty.
	Categories []domain.Category `yaml:"categories,omitempty"`
	Storage    struct {
		Driver      string        `yaml:"driver"`
		Timeout     time.Duration `yaml:"timeout"`
		ReadRetries int           `yaml:"read_retries"`
	} `yaml:"storage"`
	Auth struct {
		SessionTTL time.Duration `yaml:"session_ttl"`
		Issuer     string        `yaml:"issuer"`
	} `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Webhooks  []WebhookConfig `yaml:"webhooks,omitempty"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

var (
	countryCodePattern = regexp.MustCompile(`^\d{1,4}$`)
	prefixPattern      = regexp.MustCompile(`^[A-Z0-9]+-$`)
)

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if !countryCodePattern.MatchString(c.Intake.PhoneCountryCode) {
		return fmt.Errorf("config.intake.phone_country_code must be 1-4 digits")
	}
	if c.Intake.MaxAttachmentBytes <= 0 {
		return fmt.Errorf("config.intake.max_attachment_bytes must be positive")
	}
	if !prefixPattern.MatchString(c.Intake.ReferencePrefix) {
		return fmt.Errorf("config.intake.reference_prefix must be uppercase alphanumerics followed by '-'")
	}
	switch c.Storage.Driver {
	case DriverSQLite, DriverFile:
	default:
		return fmt.Errorf("config.storage.driver must be %q or %q", DriverSQLite, DriverFile)
	}
	if c.Storage.Timeout <= 0 {
		return fmt.Errorf("config.storage.timeout must be positive")
	}
	if c.Storage.ReadRetries < 0 {
		return fmt.Errorf("config.storage.read_retries must not be negative")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("config.auth.session_ttl must be positive")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config.rate_limit values must not be negative")
	}
	seen := map[string]bool{}
	for _, cat := range c.Categories {
		if cat.Value == "" || cat.Label == "" {
			return fmt.Errorf("config.categories entries need value and label")
		}
		if seen[cat.Value] {
			return fmt.Errorf("category %s defined twice", cat.Value)
		}
		seen[cat.Value] = true
		if len(cat.Services) == 0 {
			return fmt.Errorf("category %s has no services", cat.Value)
		}
		for _, s := range cat.Services {
			if s.Value == "" {
				return fmt.Errorf("category %s has a service without value", cat.Value)
			}
		}
	}
	for i, hook := range c.Webhooks {
		u := strings.TrimSpace(hook.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			return fmt.Errorf("webhook %d: url must be http(s)", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d: timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Catalog returns the configured categories, or the built-in catalog.
func (c *Config) Catalog() domain.Catalog {
	if len(c.Categories) > 0 {
		return domain.Catalog(c.Categories)
	}
	return domain.DefaultCatalog()
}

// Rules returns the intake validation rules.
func (c *Config) Rules() domain.Rules {
	return domain.Rules{PhoneCountryCode: c.Intake.PhoneCountryCode}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with portal config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(defaultTemplate), &cfg); err != nil {
		panic(fmt.Sprintf("default config template: %v", err))
	}
	return &cfg
}

// FromYAML parses config from raw YAML bytes on top of the defaults and validates it.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// YAML renders the effective config.
func (c *Config) YAML() (string, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

const defaultTemplate = `intake:
  phone_country_code: "211"
  max_attachment_bytes: 5242880
  reference_prefix: "REQ-"

storage:
  driver: sqlite
  timeout: 5s
  read_retries: 3

auth:
  session_ttl: 8h
  issuer: citizenportal

rate_limit:
  requests_per_minute: 30
  burst: 10
  trust_proxy: false

# webhooks:
#   - url: https://example.org/hooks/portal
#     events: [request.submitted, request.status_changed]
#     secret: change-me
`
