package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes YAML durations written as "5s", "1m30s", etc.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config models reviewapi.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret   string   `yaml:"jwt_secret"`
		M2MSubjects []string `yaml:"m2m_subjects"`
	} `yaml:"auth"`
	Storage struct {
		DataDir     string `yaml:"data_dir"`
		ArtifactDir string `yaml:"artifact_dir"`
	} `yaml:"storage"`
	Services struct {
		ChallengeURL string   `yaml:"challenge_url"`
		ResourceURL  string   `yaml:"resource_url"`
		MemberURL    string   `yaml:"member_url"`
		BusURL       string   `yaml:"bus_url"`
		AuthURL      string   `yaml:"auth_url"`
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		Timeout      Duration `yaml:"timeout"`
	} `yaml:"services"`
	Email struct {
		Sender           string `yaml:"sender"`
		ApprovedTemplate string `yaml:"approved_template"`
		RejectedTemplate string `yaml:"rejected_template"`
	} `yaml:"email"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config.auth.jwt_secret is required")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("config.storage.data_dir is required")
	}
	if c.Storage.ArtifactDir == "" {
		return fmt.Errorf("config.storage.artifact_dir is required")
	}
	if c.Services.Timeout < 0 {
		return fmt.Errorf("config.services.timeout must not be negative")
	}
	if c.Email.ApprovedTemplate == "" || c.Email.RejectedTemplate == "" {
		return fmt.Errorf("config.email templates are required")
	}
	return nil
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
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

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: "127.0.0.1:8080"
  base_path: /v1

auth:
  jwt_secret: dev-secret
  m2m_subjects: [review-pipeline, autopilot]

storage:
  data_dir: ./data
  artifact_dir: ./data/artifacts

services:
  challenge_url: http://localhost:9001
  resource_url: http://localhost:9002
  member_url: http://localhost:9003
  bus_url: http://localhost:9004
  auth_url: http://localhost:9005/oauth/token
  client_id: reviewapi
  client_secret: ""
  timeout: 5s

email:
  sender: noreply@reviewapi.local
  approved_template: review-application-approved
  rejected_template: review-application-rejected
`
