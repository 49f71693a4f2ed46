// Package config loads the snaprpc host configuration from a YAML file with
// environment overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"snaprpc/server/internal/broker"
	"snaprpc/server/internal/hooks"
)

// Default values for the host configuration.
const (
	DefaultApprovalPolicy = PolicyAuto
	DefaultRateLimit      = 50
	DefaultClientVersion  = "0.0.0-dev"
	DefaultLocale         = "en"
	DefaultCurrency       = "usd"
)

// Approval policies.
const (
	PolicyAuto      = "auto"
	PolicyDeny      = "deny"
	PolicyAllowlist = "allowlist"
)

// DatabaseConfig selects the permission store. An empty URL uses the
// in-memory store.
type DatabaseConfig struct {
	URL                string `yaml:"url,omitempty"`
	StateEncryptionKey string `yaml:"state_encryption_key,omitempty"`
}

// ApprovalConfig decides how permission prompts are answered.
type ApprovalConfig struct {
	Policy  string   `yaml:"policy,omitempty"`
	Origins []string `yaml:"origins,omitempty"`
}

// ClientConfig holds the client status reported to snaps.
type ClientConfig struct {
	Version string `yaml:"version,omitempty"`
	Locked  bool   `yaml:"locked,omitempty"`
	Active  *bool  `yaml:"active,omitempty"`
}

// Config is the top-level host configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database,omitempty"`
	Approval    ApprovalConfig    `yaml:"approval,omitempty"`
	RateLimit   int               `yaml:"rate_limit,omitempty"`
	Client      ClientConfig      `yaml:"client,omitempty"`
	Preferences hooks.Preferences `yaml:"preferences,omitempty"`
	// CurrencyRates maps a crypto currency code to its rate in the
	// preferred fiat currency.
	CurrencyRates map[string]float64 `yaml:"currency_rates,omitempty"`
	BlockedSnaps  []string           `yaml:"blocked_snaps,omitempty"`
}

// New returns a Config with all defaults populated.
func New() *Config {
	active := true
	return &Config{
		Approval:  ApprovalConfig{Policy: DefaultApprovalPolicy},
		RateLimit: DefaultRateLimit,
		Client: ClientConfig{
			Version: DefaultClientVersion,
			Active:  &active,
		},
		Preferences: hooks.Preferences{
			Locale:         DefaultLocale,
			Currency:       DefaultCurrency,
			SecurityAlerts: true,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with DATABASE_URL, STATE_ENCRYPTION_KEY,
// RATE_LIMIT_PER_SECOND and APPROVAL_POLICY when set.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("STATE_ENCRYPTION_KEY"); v != "" {
		cfg.Database.StateEncryptionKey = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "RATE_LIMIT_PER_SECOND")
		}
		cfg.RateLimit = n
	}
	if v := os.Getenv("APPROVAL_POLICY"); v != "" {
		cfg.Approval.Policy = v
	}
	return nil
}

// Validate checks values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Approval.Policy {
	case PolicyAuto, PolicyDeny:
	case PolicyAllowlist:
		if len(c.Approval.Origins) == 0 {
			return errors.New("approval policy allowlist needs at least one origin")
		}
	default:
		return errors.Errorf("unknown approval policy %q", c.Approval.Policy)
	}
	if c.RateLimit < 0 {
		return errors.Errorf("rate_limit must not be negative, got %d", c.RateLimit)
	}
	if c.Database.URL != "" && c.Database.StateEncryptionKey == "" {
		return errors.New("state_encryption_key is required with a database")
	}
	return nil
}

// Approver builds the approver for the configured policy.
func (c *Config) Approver() broker.Approver {
	switch c.Approval.Policy {
	case PolicyDeny:
		return broker.DenyAll{}
	case PolicyAllowlist:
		return broker.AllowlistApprover{Origins: c.Approval.Origins}
	default:
		return broker.AutoApprove{}
	}
}

// HostSettings converts the configuration to host settings.
func (c *Config) HostSettings() broker.Settings {
	rates := make(map[string]hooks.CurrencyRate, len(c.CurrencyRates))
	now := time.Now().Unix()
	for code, rate := range c.CurrencyRates {
		rates[strings.ToLower(code)] = hooks.CurrencyRate{
			Currency:       c.Preferences.Currency,
			ConversionRate: rate,
			ConversionDate: now,
		}
	}
	return broker.Settings{
		ClientVersion: c.Client.Version,
		Locked:        c.Client.Locked,
		Active:        c.Client.Active == nil || *c.Client.Active,
		Preferences:   c.Preferences,
		CurrencyRates: rates,
		BlockedSnaps:  c.BlockedSnaps,
		RateLimit:     c.RateLimit,
	}
}
