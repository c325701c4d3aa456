package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Security SecurityConfig `mapstructure:"security"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
	IDGen    IDGenConfig    `mapstructure:"idgen"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN uses UTC so that day windows computed in Go match the stored instants.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type PostgresConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// LockTTL bounds how long a crashed holder can keep an account lock.
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	LockRetryInterval time.Duration `mapstructure:"lock_retry_interval"`
	LockMaxRetries    int           `mapstructure:"lock_max_retries"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	AccountActivity string `mapstructure:"account_activity"`
}

type SecurityConfig struct {
	Auth AuthConfig `mapstructure:"auth"`
	JWT  JWTConfig  `mapstructure:"jwt"`
}

type AuthConfig struct {
	MaxFailedAttempts   int `mapstructure:"max_failed_attempts"`
	LockDurationMinutes int `mapstructure:"lock_duration_minutes"`
}

func (c AuthConfig) LockDuration() time.Duration {
	return time.Duration(c.LockDurationMinutes) * time.Minute
}

type JWTConfig struct {
	Secret            string `mapstructure:"secret"`
	ExpirationSeconds int64  `mapstructure:"expiration_seconds"`
}

func (c JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationSeconds) * time.Second
}

type OutboxConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	MaxRetryCount int           `mapstructure:"max_retry_count"`
	PurgeSchedule string        `mapstructure:"purge_schedule"`
	Retention     time.Duration `mapstructure:"retention"`
}

type IDGenConfig struct {
	WorkerID int64 `mapstructure:"worker_id"`
}

type SeedConfig struct {
	Customers []SeedCustomer `mapstructure:"customers"`
}

// SeedCustomer describes a customer provisioned at startup. Money values are
// decimal strings so they never pass through float64.
type SeedCustomer struct {
	Name       string `mapstructure:"name"`
	CardNumber string `mapstructure:"card_number"`
	PIN        string `mapstructure:"pin"`
	Balance    string `mapstructure:"balance"`
	DailyLimit string `mapstructure:"daily_limit"`
}

const envPrefix = "ATM"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("storage.driver", DriverMemory)

	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "atm")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "atm")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 50)
	v.SetDefault("postgres.max_idle_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("redis.lock_retry_interval", 100*time.Millisecond)
	v.SetDefault("redis.lock_max_retries", 30)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic.account_activity", "atm.account.activity")

	v.SetDefault("security.auth.max_failed_attempts", 3)
	v.SetDefault("security.auth.lock_duration_minutes", 15)
	v.SetDefault("security.jwt.secret", "change-me")
	v.SetDefault("security.jwt.expiration_seconds", 3600)

	v.SetDefault("outbox.poll_interval", 500*time.Millisecond)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.max_retry_count", 5)
	v.SetDefault("outbox.purge_schedule", "@daily")
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("idgen.worker_id", 1)
}

// LoadConfig reads the YAML file at configPath, applies ATM_* environment
// overrides and validates the result. A missing file falls back to defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMySQL, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver)
	}
	if c.Security.Auth.MaxFailedAttempts <= 0 {
		return errors.New("security.auth.max_failed_attempts must be positive")
	}
	if c.Security.Auth.LockDurationMinutes <= 0 {
		return errors.New("security.auth.lock_duration_minutes must be positive")
	}
	if c.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is required")
	}
	if c.Security.JWT.ExpirationSeconds <= 0 {
		return errors.New("security.jwt.expiration_seconds must be positive")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic.AccountActivity == "") {
		return errors.New("kafka: brokers and topic.account_activity are required when enabled")
	}
	if c.Kafka.Enabled && c.Outbox.PollInterval <= 0 {
		return errors.New("outbox.poll_interval must be positive when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.LockMaxRetries <= 0 {
		return errors.New("redis.lock_max_retries must be positive when redis is enabled")
	}
	return nil
}
