package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"readyforus/internal/domain"
)

// Config models readyforus.yml.
type Config struct {
	Participant struct {
		Name string `yaml:"name"`
	} `yaml:"participant"`
	Checkin struct {
		DefaultMode string `yaml:"default_mode"`
		SchemaPath  string `yaml:"schema_path"`
	} `yaml:"checkin"`
	Export struct {
		Directory string `yaml:"directory"`
	} `yaml:"export"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with rfu config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Checkin.DefaultMode {
	case "", string(domain.ModeLite), string(domain.ModeFull):
	default:
		return fmt.Errorf("config.checkin.default_mode must be %q or %q", domain.ModeLite, domain.ModeFull)
	}
	if c.Checkin.SchemaPath != "" {
		if _, err := os.Stat(c.Checkin.SchemaPath); err != nil {
			return fmt.Errorf("config.checkin.schema_path: %w", err)
		}
	}
	return nil
}

// DefaultMode returns the configured starting mode, lite when unset.
func (c *Config) DefaultMode() domain.Mode {
	if c != nil && c.Checkin.DefaultMode == string(domain.ModeFull) {
		return domain.ModeFull
	}
	return domain.ModeLite
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "readyforus.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(participantName string) string {
	return fmt.Sprintf(defaultTemplate, participantName)
}

// Default returns the default Config struct for a participant.
func Default(participantName string) *Config {
	var cfg Config
	cfg.Participant.Name = participantName
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, participantName))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `participant:
  name: %q

checkin:
  # lite is the 10 question set; full is all 24.
  default_mode: lite

  # Uncomment to load a custom questionnaire instead of the built-in one.
  # schema_path: ./my-checkin.yml

export:
  # Where "rfu export" writes files. Empty means the current directory.
  directory: ""
`
