package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"driver-console/internal/general/contracts"
)

type Config struct {
	Backend struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"backend"`

	Events struct {
		Transport    string `yaml:"transport"` // "websocket" or "rabbitmq"
		WebSocketURL string `yaml:"websocket_url"`
		Queue        string `yaml:"queue"` // AMQP queue when transport=rabbitmq
	} `yaml:"events"`

	RabbitMQ struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"rabbitmq"`

	Geocoder struct {
		BaseURL           string  `yaml:"base_url"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
	} `yaml:"geocoder"`

	Polling struct {
		ApprovalsSeconds     int `yaml:"approvals_seconds"`
		JobsSeconds          int `yaml:"jobs_seconds"`
		PostsSeconds         int `yaml:"posts_seconds"`
		TransactionsSeconds  int `yaml:"transactions_seconds"`
		NotificationsSeconds int `yaml:"notifications_seconds"`
		AnalyticsSeconds     int `yaml:"analytics_seconds"`
	} `yaml:"polling"`

	Console struct {
		Port int `yaml:"port"`
	} `yaml:"console"`

	Session struct {
		TokenFile string `yaml:"token_file"`
	} `yaml:"session"`
}

// LoadFromFile loads config from a YAML file, applies defaults, and
// validates required fields.
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// BackendTimeout returns the HTTP client timeout for backend calls.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// applyDefaults sets safe defaults for some fields.
func applyDefaults(cfg *Config) {
	if cfg.Backend.TimeoutSeconds == 0 {
		cfg.Backend.TimeoutSeconds = 10
	}

	if cfg.Events.Transport == "" {
		cfg.Events.Transport = "websocket"
	}
	if cfg.Events.Queue == "" {
		cfg.Events.Queue = contracts.QueueConsoleEvents
	}

	if cfg.RabbitMQ.Host == "" {
		cfg.RabbitMQ.Host = "localhost"
	}
	if cfg.RabbitMQ.Port == 0 {
		cfg.RabbitMQ.Port = 5672
	}

	if cfg.Geocoder.RequestsPerSecond == 0 {
		cfg.Geocoder.RequestsPerSecond = 2
	}

	// poll cadences mirror the dashboard's refresh tiers: negotiation
	// traffic fastest, analytics slowest
	if cfg.Polling.ApprovalsSeconds == 0 {
		cfg.Polling.ApprovalsSeconds = 3
	}
	if cfg.Polling.JobsSeconds == 0 {
		cfg.Polling.JobsSeconds = 5
	}
	if cfg.Polling.PostsSeconds == 0 {
		cfg.Polling.PostsSeconds = 10
	}
	if cfg.Polling.TransactionsSeconds == 0 {
		cfg.Polling.TransactionsSeconds = 12
	}
	if cfg.Polling.NotificationsSeconds == 0 {
		cfg.Polling.NotificationsSeconds = 15
	}
	if cfg.Polling.AnalyticsSeconds == 0 {
		cfg.Polling.AnalyticsSeconds = 20
	}

	if cfg.Console.Port == 0 {
		cfg.Console.Port = 3100
	}
}

// validate checks required fields and basic ranges.
func (c *Config) validate() error {
	var problems []string

	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		problems = append(problems, "backend.base_url is required")
	}
	if c.Backend.TimeoutSeconds < 1 {
		problems = append(problems, "backend.timeout_seconds must be >= 1")
	}

	switch c.Events.Transport {
	case "websocket":
		if strings.TrimSpace(c.Events.WebSocketURL) == "" {
			problems = append(problems, "events.websocket_url is required for the websocket transport")
		}
	case "rabbitmq":
		if c.RabbitMQ.User == "" {
			problems = append(problems, "rabbitmq.user is required for the rabbitmq transport")
		}
		if c.RabbitMQ.Password == "" {
			problems = append(problems, "rabbitmq.password is required for the rabbitmq transport")
		}
		if c.RabbitMQ.Port <= 0 || c.RabbitMQ.Port > 65535 {
			problems = append(problems, "rabbitmq.port must be in 1..65535")
		}
	default:
		problems = append(problems, fmt.Sprintf("events.transport must be websocket or rabbitmq, got %q", c.Events.Transport))
	}

	if strings.TrimSpace(c.Geocoder.BaseURL) == "" {
		problems = append(problems, "geocoder.base_url is required")
	}
	if c.Geocoder.RequestsPerSecond <= 0 {
		problems = append(problems, "geocoder.requests_per_second must be positive")
	}

	for name, v := range map[string]int{
		"polling.approvals_seconds":     c.Polling.ApprovalsSeconds,
		"polling.jobs_seconds":          c.Polling.JobsSeconds,
		"polling.posts_seconds":         c.Polling.PostsSeconds,
		"polling.transactions_seconds":  c.Polling.TransactionsSeconds,
		"polling.notifications_seconds": c.Polling.NotificationsSeconds,
		"polling.analytics_seconds":     c.Polling.AnalyticsSeconds,
	} {
		if v < 1 {
			problems = append(problems, name+" must be >= 1")
		}
	}

	if c.Console.Port <= 0 || c.Console.Port > 65535 {
		problems = append(problems, "console.port must be in 1..65535")
	}

	if strings.TrimSpace(c.Session.TokenFile) == "" {
		problems = append(problems, "session.token_file is required")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// AMQPURL builds the broker URL for the rabbitmq transport.
func (c *Config) AMQPURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
