package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "ARXIV_DIGEST_CONFIG"
	webhookURLEnv     = "DISCORD_WEBHOOK_URL"
	databaseDSNEnv    = "DATABASE_DSN"
	statePathEnv      = "ARXIV_DIGEST_STATE_PATH"
	minInterQueryWait = 3.0
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Arxiv   ArxivConfig   `yaml:"arxiv"`
	Discord DiscordConfig `yaml:"discord"`
	State   StateConfig   `yaml:"state"`
	Digest  DigestConfig  `yaml:"digest"`
	Topics  []TopicConfig `yaml:"topics"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ArxivConfig describes how the metadata API is queried.
type ArxivConfig struct {
	Endpoint               string  `yaml:"endpoint"`
	UserAgent              string  `yaml:"userAgent"`
	RequestTimeoutSeconds  int     `yaml:"requestTimeoutSeconds"`
	InterQueryDelaySeconds float64 `yaml:"interQueryDelaySeconds"`
	MaxResultsPerTopic     int     `yaml:"maxResultsPerTopic"`
	PageSize               int     `yaml:"pageSize"`
	MaxRetries             int     `yaml:"maxRetries"`
}

// DiscordConfig wires the webhook delivery channel and rendering limits.
type DiscordConfig struct {
	WebhookURL            string `yaml:"webhookUrl"`
	MaxContentLength      int    `yaml:"maxContentLength"`
	TitleMaxLength        int    `yaml:"titleMaxLength"`
	HeaderTemplate        string `yaml:"headerTemplate"`
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds"`
	MaxRetries            int    `yaml:"maxRetries"`
	SkipEmptyTopics       bool   `yaml:"skipEmptyTopics"`
}

// StateConfig selects and configures the run-state backend.
type StateConfig struct {
	Backend     string `yaml:"backend"` // "file" or "postgres"
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgresDsn"`
}

// DigestConfig controls the cutoff window and per-topic list sizes.
type DigestConfig struct {
	LookbackHours          int    `yaml:"lookbackHours"`
	MaxLatestPerTopic      int    `yaml:"maxLatestPerTopic"`
	MaxEducationalPerTopic int    `yaml:"maxEducationalPerTopic"`
	ReportTimezone         string `yaml:"reportTimezone"`
	location               *time.Location
}

// Location resolves the report timezone string to a time.Location.
func (d DigestConfig) Location() *time.Location {
	if d.location != nil {
		return d.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// TopicConfig describes a single named query against the search space.
type TopicConfig struct {
	Name       string          `yaml:"name"`
	Source     string          `yaml:"source"` // "api" (default) or "listing"
	QueryTerms []string        `yaml:"queryTerms"`
	Categories []string        `yaml:"categories"`
	Listings   []ListingConfig `yaml:"listings"`
}

// ListingConfig holds a concrete listing-page endpoint for the listing source.
type ListingConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Load reads YAML configuration (if present), applies environment overrides
// and normalizes values the rest of the system relies on.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = defaultConfig()
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Discord.WebhookURL = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.State.PostgresDSN = v
	}

	if v := os.Getenv(statePathEnv); v != "" {
		c.State.Path = v
	}
}

// normalize clamps values with hard external contracts. The inter-query delay
// must respect the arXiv API usage policy of one request per three seconds.
func (c *Config) normalize() {
	if c.Arxiv.InterQueryDelaySeconds < minInterQueryWait {
		log.Printf("config: interQueryDelaySeconds %.2f is below the arXiv minimum, using 3.1", c.Arxiv.InterQueryDelaySeconds)
		c.Arxiv.InterQueryDelaySeconds = 3.1
	}
	if c.Arxiv.MaxResultsPerTopic <= 0 {
		c.Arxiv.MaxResultsPerTopic = 200
	}
	if c.Arxiv.PageSize <= 0 || c.Arxiv.PageSize > c.Arxiv.MaxResultsPerTopic {
		c.Arxiv.PageSize = c.Arxiv.MaxResultsPerTopic
	}
	if c.Arxiv.MaxRetries < 0 {
		c.Arxiv.MaxRetries = 0
	}

	if c.Digest.LookbackHours < 1 {
		log.Printf("config: lookbackHours %d is invalid, using 36", c.Digest.LookbackHours)
		c.Digest.LookbackHours = 36
	}
	if c.Digest.MaxLatestPerTopic < 0 {
		c.Digest.MaxLatestPerTopic = 0
	}
	if c.Digest.MaxEducationalPerTopic < 0 {
		c.Digest.MaxEducationalPerTopic = 0
	}

	if c.Discord.MaxContentLength <= 0 {
		c.Discord.MaxContentLength = 2000
	}
	if c.Discord.TitleMaxLength <= 0 {
		c.Discord.TitleMaxLength = 120
	}

	if c.State.Backend == "" {
		c.State.Backend = "file"
	}

	c.bindTimezone()
}

func (c *Config) bindTimezone() {
	tz := c.Digest.ReportTimezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Digest.location = loc
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Arxiv: ArxivConfig{
			Endpoint:               "https://export.arxiv.org/api/query",
			UserAgent:              "ArxivDigest/1.0 (mailto:ops@example.org)",
			RequestTimeoutSeconds:  30,
			InterQueryDelaySeconds: 3.1,
			MaxResultsPerTopic:     200,
			PageSize:               100,
			MaxRetries:             3,
		},
		Discord: DiscordConfig{
			MaxContentLength:      2000,
			TitleMaxLength:        120,
			HeaderTemplate:        "arXiv Digest ({date})",
			RequestTimeoutSeconds: 30,
			MaxRetries:            2,
		},
		State: StateConfig{
			Backend: "file",
			Path:    "state/state.json",
		},
		Digest: DigestConfig{
			LookbackHours:          36,
			MaxLatestPerTopic:      5,
			MaxEducationalPerTopic: 1,
			ReportTimezone:         defaultTimezone,
			location:               tz,
		},
		Topics: []TopicConfig{
			{
				Name:       "llm",
				QueryTerms: []string{"large language model"},
				Categories: []string{"cs.CL", "cs.LG"},
			},
		},
	}
}
