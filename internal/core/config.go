package core

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// CommandConfig represents a generic preprocessing command configuration
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type OCR struct {
	Language string `yaml:"language"`
}

type ServiceConfig struct {
	Port           int             `yaml:"port"`
	Database       Database        `yaml:"database"`
	ImageDirectory string          `yaml:"imageDirectory"`
	OCR            OCR             `yaml:"ocr"`
	Preprocess     []CommandConfig `yaml:"preprocess"`
}

// Secrets holds credentials sourced from the process environment. The
// channel credentials are mandatory; the service cannot talk to the chat
// platform without them, so startup fails early instead of rejecting every
// collaborator call later.
type Secrets struct {
	ChannelAccessToken string `envconfig:"CHANNEL_ACCESS_TOKEN" required:"true"`
	ChannelSecret      string `envconfig:"CHANNEL_SECRET" required:"true"`
	RedisURL           string `envconfig:"REDIS_URL"`
	Environment        string `envconfig:"ENVIRONMENT" default:"development"`
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var config ServiceConfig
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	applyDefaults(&config)

	if err := validateCommands(config.Preprocess); err != nil {
		return nil, fmt.Errorf("invalid preprocess configuration: %w", err)
	}

	return &config, nil
}

// LoadSecrets reads the environment-sourced secrets. Call godotenv.Load
// beforehand when a local .env file should be honored.
func LoadSecrets() (*Secrets, error) {
	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &secrets, nil
}

func applyDefaults(config *ServiceConfig) {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.Database.Type == "" {
		config.Database.Type = "sqlite"
	}
	if config.Database.ConnectionString == "" {
		config.Database.ConnectionString = "database.db"
	}
	if config.ImageDirectory == "" {
		config.ImageDirectory = "static/images"
	}
	if config.OCR.Language == "" {
		config.OCR.Language = "tha"
	}
}

// validateCommands ensures all command configurations have required fields
func validateCommands(commands []CommandConfig) error {
	seenNames := make(map[string]bool)

	for i, cmd := range commands {
		if cmd.Name == "" {
			return fmt.Errorf("command at index %d has empty name", i)
		}

		if seenNames[cmd.Name] {
			return fmt.Errorf("duplicate command name: %s", cmd.Name)
		}
		seenNames[cmd.Name] = true
	}

	return nil
}
