package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	IDPMon IDPMonConfig `yaml:"idpmon"`
}

// IDPMonConfig is the project configuration.
type IDPMonConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Queue        QueueConfig        `yaml:"queue"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Graph        GraphConfig        `yaml:"graph"`
	Autotask     AutotaskConfig     `yaml:"autotask"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Email        EmailConfig        `yaml:"email"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig controls the webhook intake listener.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	SecretKey string `yaml:"secret_key"`
}

// QueueConfig controls the Redis notification queue.
type QueueConfig struct {
	Redis        RedisConfig   `yaml:"redis"`
	Key          string        `yaml:"key"`
	ProcessedTTL time.Duration `yaml:"processed_ttl"`
}

// RedisConfig controls Redis access.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	BlockTimeout time.Duration `yaml:"block_timeout"`
}

// PipelineConfig controls notification processing workers.
type PipelineConfig struct {
	Workers int `yaml:"workers"`
}

// GraphConfig controls access to the alerting service API.
type GraphConfig struct {
	TenantID     string        `yaml:"tenant_id"`
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

// AutotaskConfig controls access to the ticketing system API.
type AutotaskConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	OrgID   int           `yaml:"org_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// SubscriptionConfig controls webhook subscription reconciliation.
type SubscriptionConfig struct {
	NotificationURL string        `yaml:"notification_url"`
	Resource        string        `yaml:"resource"`
	ClientState     string        `yaml:"client_state"`
	ExpirationDays  int           `yaml:"expiration_days"`
	Interval        time.Duration `yaml:"interval"`
}

// EmailConfig controls the unrecognized-alert-type notification email. The
// fallback is skipped when endpoint, api_key, from or to are unset.
type EmailConfig struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	ToEmail   string `yaml:"to_email"`
	ToName    string `yaml:"to_name"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
