package config

import (
	"fmt"
	"os"
	"time"

	"drill-review-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Leaders struct {
		TTL    string         `yaml:"ttl"`
		Roster []LeaderConfig `yaml:"roster"`
	} `yaml:"leaders"`
	Scoring struct {
		MaxAttempts       int `yaml:"max_attempts"`
		PointsPerApproval int `yaml:"points_per_approval"`
	} `yaml:"scoring"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Events struct {
		Topic        string   `yaml:"topic"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
	} `yaml:"events"`
}

// LeaderConfig is one roster entry in the YAML seed.
type LeaderConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Email          string `yaml:"email"`
	Team           string `yaml:"team"`
	AssignedXconID string `yaml:"assigned_xcon_id"`
}

// Load reads YAML config from path, expanding ${VAR} references from the
// environment first. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Storage.Driver == "" {
		switch {
		case c.Postgres.URL != "":
			c.Storage.Driver = DriverPostgres
		case c.Redis.Addr != "":
			c.Storage.Driver = DriverRedis
		default:
			c.Storage.Driver = DriverMemory
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "drill.answers"
	}
}

// Validate checks that the selected storage driver has its connection settings.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("storage driver %q requires redis.addr", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("storage driver %q requires postgres.url", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Scoring.MaxAttempts < 0 || c.Scoring.PointsPerApproval < 0 {
		return fmt.Errorf("scoring values must not be negative")
	}
	return nil
}

// RosterLeaders converts the YAML roster into domain leaders.
func (c Config) RosterLeaders() []domain.Leader {
	out := make([]domain.Leader, 0, len(c.Leaders.Roster))
	for _, l := range c.Leaders.Roster {
		out = append(out, domain.Leader{
			ID:             l.ID,
			Name:           l.Name,
			Email:          l.Email,
			Team:           l.Team,
			AssignedXconID: l.AssignedXconID,
		})
	}
	return out
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
