package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where commands look for the configuration file.
const DefaultPath = "bento.yml"

// DefaultVersionCode is written as version_code when bento.yml omits it.
const DefaultVersionCode = 1

// BentoConfig represents the top-level bento.yml configuration
type BentoConfig struct {
	Version     string            `yaml:"version"`
	Instance    string            `yaml:"instance"`
	Redis       RedisConfig       `yaml:"redis"`
	Participant ParticipantConfig `yaml:"participant"`
	Feed        string            `yaml:"feed"`                   // conversation feed new bentos are created in
	VersionCode int               `yaml:"version_code,omitempty"` // schema version of published state
	LogLevel    slog.Level        `yaml:"log_level"`
}

// RedisConfig holds the feed connection
type RedisConfig struct {
	URL string `yaml:"url"`
}

// ParticipantConfig identifies the local participant
type ParticipantConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// NewDefaultConfig returns a config with defaults for every optional field.
func NewDefaultConfig() *BentoConfig {
	return &BentoConfig{
		Version:     "1.0",
		Instance:    "default",
		Redis:       RedisConfig{URL: "redis://localhost:6379"},
		VersionCode: DefaultVersionCode,
		LogLevel:    slog.LevelWarn,
	}
}

// Validate performs strict validation on the configuration
func (c *BentoConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if err := validation.ValidateStruct(c,
		validation.Field(&c.Instance, validation.Required),
		validation.Field(&c.Feed, validation.Required),
		validation.Field(&c.VersionCode, validation.Min(0)),
	); err != nil {
		return err
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := c.Participant.Validate(); err != nil {
		return fmt.Errorf("participant: %w", err)
	}
	return nil
}

// Validate checks the connection URL is present.
func (c *RedisConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
	)
}

// Validate checks the local participant is fully identified.
func (c *ParticipantConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

// Load reads bento.yml from path, expands ${VAR} references, applies the
// REDIS_URL override and validates the result.
func Load(path string) (*BentoConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %s not found: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates bento.yml content.
func Parse(data []byte) (*BentoConfig, error) {
	config := NewDefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Redis.URL = url
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Example returns a starter bento.yml for the given participant.
func Example(participantID, name, feed string) ([]byte, error) {
	c := NewDefaultConfig()
	c.Participant = ParticipantConfig{ID: participantID, Name: name}
	c.Feed = feed
	return yaml.Marshal(c)
}
