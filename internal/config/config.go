package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultPort           = "8080"
	DefaultNormalizerURL  = "https://nodenormalization-sri.renci.org"
	DefaultTimeoutSeconds = 30
	DefaultPerKPRequests  = 4
	DefaultConcurrentKPs  = 8
	NormalizerNodeNorm    = "nodenorm"
	NormalizerKG2         = "kg2"
)

type ServerConfig struct {
	Port string `toml:"port"`
}

type LoggingConfig struct {
	Mode string `toml:"mode"`
}

type NormalizerConfig struct {
	Provider          string   `toml:"provider"`
	URL               string   `toml:"url"`
	TimeoutSeconds    int      `toml:"timeout_seconds"`
	PreferredPrefixes []string `toml:"preferred_prefixes"`
}

type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type ConcurrencyConfig struct {
	// PerKPRequests caps parallel requests to a KP without batch support.
	PerKPRequests int `toml:"per_kp_requests"`
	// KPs caps how many KPs are queried at once for the same query graph.
	KPs int `toml:"kps"`
}

// KPConfig describes one knowledge provider.
type KPConfig struct {
	Endpoint       string `toml:"endpoint"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	// Batch is false for KPs that accept only one input curie per request.
	Batch *bool `toml:"batch"`

	CategoryOverrides  map[string]string `toml:"category_overrides"`
	PreferredPrefixes  map[string]string `toml:"preferred_prefixes"`
	AcceptedCategories []string          `toml:"accepted_categories"`
	AcceptedPredicates []string          `toml:"accepted_predicates"`
	// ConvertCuries rewrites curie prefixes into this KP's convention on the
	// way out and back into the internal one on the way in.
	ConvertCuries bool `toml:"convert_curies"`
	// PrefixRenames extends the default internal -> KP prefix table.
	PrefixRenames map[string]string `toml:"prefix_renames"`

	ScoreTypes       map[string]string `toml:"score_types"`
	PrimaryScore     string            `toml:"primary_score"`
	IncludeAllScores bool              `toml:"include_all_scores"`
}

func (k KPConfig) SupportsBatch() bool {
	return k.Batch == nil || *k.Batch
}

func (k KPConfig) Timeout() time.Duration {
	if k.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(k.TimeoutSeconds) * time.Second
}

type Config struct {
	Server      ServerConfig        `toml:"server"`
	Logging     LoggingConfig       `toml:"logging"`
	Normalizer  NormalizerConfig    `toml:"normalizer"`
	Neo4j       Neo4jConfig         `toml:"neo4j"`
	Concurrency ConcurrencyConfig   `toml:"concurrency"`
	KPs         map[string]KPConfig `toml:"kps"`
}

func (n NormalizerConfig) Timeout() time.Duration {
	if n.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(n.TimeoutSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a config with no KPs and the public node normalizer.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Normalizer.Provider == "" {
		c.Normalizer.Provider = NormalizerNodeNorm
	}
	if c.Normalizer.URL == "" && c.Normalizer.Provider == NormalizerNodeNorm {
		c.Normalizer.URL = DefaultNormalizerURL
	}
	if c.Concurrency.PerKPRequests <= 0 {
		c.Concurrency.PerKPRequests = DefaultPerKPRequests
	}
	if c.Concurrency.KPs <= 0 {
		c.Concurrency.KPs = DefaultConcurrentKPs
	}
	if c.KPs == nil {
		c.KPs = make(map[string]KPConfig)
	}
}

// ApplyEnv overrides file settings with environment variables when set.
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		c.Server.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		c.Logging.Mode = v
	}
	if v := strings.TrimSpace(os.Getenv("NORMALIZER_PROVIDER")); v != "" {
		c.Normalizer.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("NORMALIZER_URL")); v != "" {
		c.Normalizer.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("NORMALIZER_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			c.Normalizer.TimeoutSeconds = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEO4J_URI")); v != "" {
		c.Neo4j.URI = v
	}
	if v := strings.TrimSpace(os.Getenv("NEO4J_USER")); v != "" {
		c.Neo4j.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		c.Neo4j.Password = v
	}
}

func (c *Config) Validate() error {
	switch c.Normalizer.Provider {
	case NormalizerNodeNorm:
		if c.Normalizer.URL == "" {
			return fmt.Errorf("normalizer: url is required for provider %q", NormalizerNodeNorm)
		}
	case NormalizerKG2:
		if c.Neo4j.URI == "" {
			return fmt.Errorf("normalizer: neo4j uri is required for provider %q", NormalizerKG2)
		}
	default:
		return fmt.Errorf("normalizer: unsupported provider %q", c.Normalizer.Provider)
	}

	for name, kp := range c.KPs {
		if strings.TrimSpace(kp.Endpoint) == "" {
			return fmt.Errorf("kp %q: endpoint is required", name)
		}
		seen := make(map[string]string, len(kp.PrefixRenames))
		for internal, external := range kp.PrefixRenames {
			if other, ok := seen[external]; ok {
				return fmt.Errorf("kp %q: prefixes %q and %q both rename to %q", name, other, internal, external)
			}
			seen[external] = internal
		}
	}
	return nil
}

// KP looks up a KP by name.
func (c *Config) KP(name string) (KPConfig, bool) {
	kp, ok := c.KPs[name]
	return kp, ok
}
