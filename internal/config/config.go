package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tidymail/tidymail/internal/classify"
	"github.com/tidymail/tidymail/internal/cleanup"
	"github.com/tidymail/tidymail/internal/notify"
	gmailprovider "github.com/tidymail/tidymail/internal/provider/gmail"
	imapprovider "github.com/tidymail/tidymail/internal/provider/imap"
)

// Config represents the application configuration.
type Config struct {
	// Provider is "gmail", "imap" or "auto".
	Provider string `yaml:"provider"`
	// CheckInterval is the polling period in seconds.
	CheckInterval int                  `yaml:"check_interval"`
	Gmail         gmailprovider.Config `yaml:"gmail"`
	IMAP          imapprovider.Config  `yaml:"imap"`
	Labels        []classify.Rule      `yaml:"labels"`
	Cleanup       cleanup.Policy       `yaml:"cleanup"`
	Classifier    ClassifierConfig     `yaml:"classifier"`
	Notifications notify.Config        `yaml:"notifications"`
}

// ClassifierConfig holds settings for the optional secondary (LLM)
// classifier.
type ClassifierConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// Load reads and parses the configuration file. The returned config is
// already defaulted, normalized and validated, so the engines receive
// lowercased, de-duplicated criteria sets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Provider == "" {
		c.Provider = "auto"
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = 300
	}
	if c.Gmail.ProcessedLabel == "" {
		c.Gmail.ProcessedLabel = "Processed"
	}
	if c.Gmail.PageSize == 0 {
		c.Gmail.PageSize = 100
	}
	if c.IMAP.Port == 0 {
		c.IMAP.Port = 993
	}
	if c.IMAP.Folder == "" {
		c.IMAP.Folder = "INBOX"
	}
	if c.IMAP.TrackerPath == "" {
		c.IMAP.TrackerPath = "./tidymail.db"
	}
	if c.Classifier.Model == "" {
		c.Classifier.Model = "gpt-4o-mini"
	}
	if c.Notifications.Method == "" {
		c.Notifications.Method = "none"
	}
}

// normalize lowercases and de-duplicates every criteria set so the
// decision engines receive pre-normalized input.
func (c *Config) normalize() {
	for i := range c.Labels {
		cr := &c.Labels[i].Criteria
		cr.From = normalizeSet(cr.From)
		cr.FromDomain = normalizeSet(cr.FromDomain)
		cr.FromName = normalizeSet(cr.FromName)
		cr.SubjectContains = normalizeSet(cr.SubjectContains)
		cr.BodyContains = normalizeSet(cr.BodyContains)
	}
	c.Cleanup.NewsletterDomains = normalizeSet(c.Cleanup.NewsletterDomains)
}

func normalizeSet(values []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (c *Config) validate() error {
	switch c.ResolveProvider() {
	case "gmail", "imap":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	seen := make(map[string]struct{}, len(c.Labels))
	for _, rule := range c.Labels {
		if rule.Name == "" {
			return fmt.Errorf("label rule with empty name")
		}
		if _, dup := seen[rule.Name]; dup {
			return fmt.Errorf("duplicate label rule %q", rule.Name)
		}
		seen[rule.Name] = struct{}{}
		if rule.Criteria.Empty() {
			return fmt.Errorf("label rule %q has no criteria and would match every email", rule.Name)
		}
	}

	if c.Cleanup.DeleteOlderThanDays < 0 {
		return fmt.Errorf("cleanup delete_older_than must not be negative")
	}
	if c.Classifier.Enabled && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier enabled without an api_key")
	}
	return nil
}

// ResolveProvider decides between the Gmail and IMAP adapters when the
// provider is "auto", following the account address domain the way the
// IMAP settings describe it.
func (c *Config) ResolveProvider() string {
	if c.Provider != "auto" {
		return c.Provider
	}
	if strings.Contains(strings.ToLower(c.IMAP.Username), "@gmail.com") {
		return "gmail"
	}
	if c.IMAP.Server == "" && c.Gmail.CredentialsFile != "" {
		return "gmail"
	}
	return "imap"
}

// Interval returns the polling period.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

// LabelNames returns the configured rule names in order; the secondary
// classifier is restricted to this set.
func (c *Config) LabelNames() []string {
	names := make([]string, len(c.Labels))
	for i, rule := range c.Labels {
		names[i] = rule.Name
	}
	return names
}
