package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-tracker/internal/quota"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Kafka    KafkaConfig    `toml:"kafka"`
	Refresh  RefreshConfig  `toml:"refresh"`
	Quota    QuotaConfig    `toml:"quota"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `toml:"host"`
	Port           string `toml:"port"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	DBName         string `toml:"dbname"`
	SSLMode        string `toml:"sslmode"`
	MigrationsPath string `toml:"migrations_path"`
}

// RedisConfig holds the quote cache configuration. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// KafkaConfig holds Kafka configuration. No brokers disables ingest and publishing.
type KafkaConfig struct {
	Brokers       []string `toml:"brokers"`
	IngestTopic   string   `toml:"ingest_topic"`
	SnapshotTopic string   `toml:"snapshot_topic"`
	GroupID       string   `toml:"group_id"`
}

// RefreshConfig controls quote gathering and valuation
type RefreshConfig struct {
	ReportingCurrency string   `toml:"reporting_currency"`
	QuoteTTL          Duration `toml:"quote_ttl"`
	RateTTL           Duration `toml:"rate_ttl"`
	ProviderRPS       int      `toml:"provider_rps"`
	Interval          Duration `toml:"interval"`
}

// QuotaConfig holds the NISA limits in yen
type QuotaConfig struct {
	AccumulationAnnual int64 `toml:"accumulation_annual"`
	GrowthAnnual       int64 `toml:"growth_annual"`
	Lifetime           int64 `toml:"lifetime"`
	GrowthLifetime     int64 `toml:"growth_lifetime"`
}

// Duration is a time.Duration written as "90s" or "15m" in the config file
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	d.Duration = v
	return nil
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// Default returns the built-in configuration
func Default() *Config {
	limits := quota.DefaultLimits()
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "postgres",
			Password:       "postgres",
			DBName:         "portfolio",
			SSLMode:        "disable",
			MigrationsPath: "db/migrations",
		},
		Kafka: KafkaConfig{
			IngestTopic:   "portfolio-ingest",
			SnapshotTopic: "portfolio-snapshots",
			GroupID:       "portfolio-tracker",
		},
		Refresh: RefreshConfig{
			ReportingCurrency: "JPY",
			QuoteTTL:          Duration{time.Minute},
			RateTTL:           Duration{15 * time.Minute},
			ProviderRPS:       5,
			Interval:          Duration{15 * time.Minute},
		},
		Quota: QuotaConfig{
			AccumulationAnnual: limits.AccumulationAnnual.IntPart(),
			GrowthAnnual:       limits.GrowthAnnual.IntPart(),
			Lifetime:           limits.Lifetime.IntPart(),
			GrowthLifetime:     limits.GrowthLifetime.IntPart(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the optional TOML file named by CONFIG_FILE and then applies
// environment variables, which take precedence
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.MigrationsPath = getEnv("DB_MIGRATIONS_PATH", c.Database.MigrationsPath)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Kafka.IngestTopic = getEnv("KAFKA_INGEST_TOPIC", c.Kafka.IngestTopic)
	c.Kafka.SnapshotTopic = getEnv("KAFKA_SNAPSHOT_TOPIC", c.Kafka.SnapshotTopic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)

	c.Refresh.ReportingCurrency = strings.ToUpper(getEnv("REPORTING_CURRENCY", c.Refresh.ReportingCurrency))
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	var err error
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.Refresh.ProviderRPS, err = getEnvInt("PROVIDER_RPS", c.Refresh.ProviderRPS); err != nil {
		return err
	}
	if c.Refresh.QuoteTTL.Duration, err = getEnvDuration("QUOTE_TTL", c.Refresh.QuoteTTL.Duration); err != nil {
		return err
	}
	if c.Refresh.RateTTL.Duration, err = getEnvDuration("RATE_TTL", c.Refresh.RateTTL.Duration); err != nil {
		return err
	}
	if c.Refresh.Interval.Duration, err = getEnvDuration("REFRESH_INTERVAL", c.Refresh.Interval.Duration); err != nil {
		return err
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Limits converts the configured yen amounts into quota limits
func (q QuotaConfig) Limits() quota.Limits {
	return quota.Limits{
		AccumulationAnnual: decimal.NewFromInt(q.AccumulationAnnual),
		GrowthAnnual:       decimal.NewFromInt(q.GrowthAnnual),
		Lifetime:           decimal.NewFromInt(q.Lifetime),
		GrowthLifetime:     decimal.NewFromInt(q.GrowthLifetime),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
