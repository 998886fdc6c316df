package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Honeypot   HoneypotConfig   `mapstructure:"honeypot"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	State      StateConfig      `mapstructure:"state"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Geo        GeoConfig        `mapstructure:"geo"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	Forensics  ForensicsConfig  `mapstructure:"forensics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type HoneypotConfig struct {
	// TargetPassword is the one credential that "succeeds" into the bait.
	TargetPassword string        `mapstructure:"target_password"`
	BanThreshold   int64         `mapstructure:"ban_threshold"`
	TarpitAfter    int64         `mapstructure:"tarpit_after"`
	TarpitDelay    time.Duration `mapstructure:"tarpit_delay"`
	UploadMaxBytes int64         `mapstructure:"upload_max_bytes"`
	ScriptPath     string        `mapstructure:"script_path"`
	DecoyRows      int           `mapstructure:"decoy_rows"`
	DecoySeed      int64         `mapstructure:"decoy_seed"`
}

type LedgerConfig struct {
	BatchSize int    `mapstructure:"batch_size"`
	SpoolPath string `mapstructure:"spool_path"`
}

type DatabaseConfig struct {
	// Type selects the ledger and decoy backend: memory or postgres.
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type StateConfig struct {
	// Backend selects the attacker-state store: memory or redis.
	Backend   string        `mapstructure:"backend"`
	Retention time.Duration `mapstructure:"retention"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type GeoConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ClassifierConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MirrorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type ForensicsConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8443)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("honeypot.ban_threshold", 7)
	v.SetDefault("honeypot.tarpit_after", 3)
	v.SetDefault("honeypot.tarpit_delay", "5s")
	v.SetDefault("honeypot.upload_max_bytes", 10485760)
	v.SetDefault("honeypot.decoy_rows", 25)
	v.SetDefault("honeypot.decoy_seed", 1)
	v.SetDefault("ledger.batch_size", 50)
	v.SetDefault("ledger.spool_path", "chameleon-spool.jsonl")
	v.SetDefault("database.type", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "chameleon")
	v.SetDefault("database.name", "chameleon")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("state.backend", "memory")
	v.SetDefault("state.retention", "0")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("geo.url", "https://ipapi.co")
	v.SetDefault("geo.timeout", "3s")
	v.SetDefault("classifier.url", "http://localhost:5000/predict")
	v.SetDefault("classifier.timeout", "4s")
	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.url", "nats://localhost:4222")
	v.SetDefault("mirror.subject", "chameleon.events")
	v.SetDefault("forensics.token_ttl", "12h")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/chameleon")
	}

	// Environment variables override
	v.SetEnvPrefix("CHAMELEON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the process cannot run with.
func (c *Config) Validate() error {
	if c.Honeypot.TargetPassword == "" {
		return fmt.Errorf("honeypot.target_password is required")
	}
	if c.Forensics.JWTSecret == "" {
		return fmt.Errorf("forensics.jwt_secret is required")
	}
	if c.Honeypot.TarpitAfter >= c.Honeypot.BanThreshold {
		return fmt.Errorf("honeypot.tarpit_after must be below honeypot.ban_threshold")
	}
	switch c.Database.Type {
	case "memory", "postgres":
	default:
		return fmt.Errorf("database.type must be memory or postgres, got %q", c.Database.Type)
	}
	switch c.State.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("state.backend must be memory or redis, got %q", c.State.Backend)
	}
	return nil
}
