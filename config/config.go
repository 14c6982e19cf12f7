package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Facility   FacilityConfig   `yaml:"facility"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Email      EmailConfig      `yaml:"email"`
	SMS        SMSConfig        `yaml:"sms"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port               int           `yaml:"port"`
	RateLimitPerSec    float64       `yaml:"rate_limit_per_sec"`
	RateLimitBurst     int           `yaml:"rate_limit_burst"`
	CacheTTLSeconds    int           `yaml:"cache_ttl_seconds"`
	CacheTTL           time.Duration `yaml:"-"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres, sqlite or memory
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// LockerSeed is one locker provisioned at start-up when missing.
type LockerSeed struct {
	Number   string `yaml:"number"`
	Location string `yaml:"location"`
	Type     string `yaml:"type"`
}

// FacilityConfig holds the facility-wide settings used by the core.
type FacilityConfig struct {
	Timezone            string         `yaml:"timezone"`
	Location            *time.Location `yaml:"-"`
	OverdueGraceMinutes int            `yaml:"overdue_grace_minutes"`
	OverdueGrace        time.Duration  `yaml:"-"`
	RevenueWindowDays   int            `yaml:"revenue_window_days"`
	TagPrefix           string         `yaml:"tag_prefix"`
	Lockers             []LockerSeed   `yaml:"lockers"`
}

// MonitorConfig controls the periodic overdue sweep.
type MonitorConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 1m"
}

// EmailConfig holds the SendGrid settings for receipt emails.
type EmailConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKey    string `yaml:"sendgrid_api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
}

// SMSConfig holds the Twilio settings for overdue reminders.
type SMSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration usable without a file: in-memory storage
// and the stock locker set.
func Default() *Config {
	cfg := &Config{
		Database: DatabaseConfig{Driver: "memory"},
		Facility: FacilityConfig{
			Lockers: []LockerSeed{
				{Number: "101", Location: "Floor 1", Type: "small"},
				{Number: "102", Location: "Floor 1", Type: "medium"},
				{Number: "103", Location: "Floor 1", Type: "large"},
				{Number: "201", Location: "Floor 2", Type: "small"},
				{Number: "202", Location: "Floor 2", Type: "medium"},
			},
		},
	}
	applyEnv(cfg)
	if err := cfg.applyDefaults(); err != nil {
		// UTC always loads.
		panic(err)
	}
	return cfg
}

// applyEnv lets secrets come from the environment instead of the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.Email.APIKey = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.SMS.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.SMS.AuthToken = v
	}
	if v := os.Getenv("VAPID_PRIVATE_KEY"); v != "" {
		cfg.Push.PrivateKey = v
	}
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Facility.Timezone == "" {
		cfg.Facility.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(cfg.Facility.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Facility.Timezone, err)
	}
	cfg.Facility.Location = loc

	if cfg.Facility.OverdueGraceMinutes <= 0 {
		cfg.Facility.OverdueGraceMinutes = 30
	}
	cfg.Facility.OverdueGrace = time.Duration(cfg.Facility.OverdueGraceMinutes) * time.Minute

	if cfg.Facility.RevenueWindowDays <= 0 {
		cfg.Facility.RevenueWindowDays = 7
	}
	if cfg.Facility.TagPrefix == "" {
		cfg.Facility.TagPrefix = "LUG"
	}

	if cfg.Monitor.Schedule == "" {
		cfg.Monitor.Schedule = "@every 1m"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "Luggage Storage"
	}
	return nil
}
