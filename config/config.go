package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Journey     JourneyConfig
	Search      SearchConfig
	Reservation ReservationConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// KafkaConfig holds event bus settings.
//
// The flight-created topic is partitioned by flight id so events for a
// given flight arrive in order. GroupID identifies the single logical
// generator consumer per deployment; scaling happens through partition
// count, not extra consumers per partition.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"KAFKA_BROKERS"`
	Topic        string        `mapstructure:"KAFKA_FLIGHT_TOPIC"`
	GroupID      string        `mapstructure:"KAFKA_GROUP_ID"`
	WriteTimeout time.Duration `mapstructure:"KAFKA_WRITE_TIMEOUT"`
}

// JourneyConfig holds the journey graph expansion constraints.
type JourneyConfig struct {
	LayoverMin  time.Duration `mapstructure:"LAYOVER_MIN"`
	LayoverMax  time.Duration `mapstructure:"LAYOVER_MAX"`
	MaxDuration time.Duration `mapstructure:"JOURNEY_MAX_DURATION"`
	MaxLegs     int           `mapstructure:"MAX_LEGS"`
}

// SearchConfig holds search cache settings.
type SearchConfig struct {
	CacheTTL time.Duration `mapstructure:"SEARCH_CACHE_TTL"`
}

// ReservationConfig holds seat hold settings.
type ReservationConfig struct {
	TTL time.Duration `mapstructure:"RESERVATION_TTL"`
	// TTLBuffer is added on top of TTL for the coarse key expiry so
	// abandoned hold collections self-delete.
	TTLBuffer time.Duration `mapstructure:"RESERVATION_TTL_BUFFER"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "localhost")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "flywise")
	viper.SetDefault("POSTGRES_PASSWORD", "flywise_secret")
	viper.SetDefault("POSTGRES_DB", "flywise_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_FLIGHT_TOPIC", "flight-created")
	viper.SetDefault("KAFKA_GROUP_ID", "journey-generator")
	viper.SetDefault("KAFKA_WRITE_TIMEOUT", "10s")

	viper.SetDefault("LAYOVER_MIN", "30m")
	viper.SetDefault("LAYOVER_MAX", "4h")
	viper.SetDefault("JOURNEY_MAX_DURATION", "24h")
	viper.SetDefault("MAX_LEGS", 3)

	viper.SetDefault("SEARCH_CACHE_TTL", "10m")

	viper.SetDefault("RESERVATION_TTL", "5m")
	viper.SetDefault("RESERVATION_TTL_BUFFER", "30s")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	// ── Server ──────────────────────────────────────────
	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	// ── Postgres ────────────────────────────────────────
	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	// ── Redis ───────────────────────────────────────────
	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	// ── Kafka ───────────────────────────────────────────
	cfg.Kafka = KafkaConfig{
		Brokers:      viper.GetStringSlice("KAFKA_BROKERS"),
		Topic:        viper.GetString("KAFKA_FLIGHT_TOPIC"),
		GroupID:      viper.GetString("KAFKA_GROUP_ID"),
		WriteTimeout: viper.GetDuration("KAFKA_WRITE_TIMEOUT"),
	}

	// ── Domain constants ────────────────────────────────
	cfg.Journey = JourneyConfig{
		LayoverMin:  viper.GetDuration("LAYOVER_MIN"),
		LayoverMax:  viper.GetDuration("LAYOVER_MAX"),
		MaxDuration: viper.GetDuration("JOURNEY_MAX_DURATION"),
		MaxLegs:     viper.GetInt("MAX_LEGS"),
	}
	cfg.Search = SearchConfig{
		CacheTTL: viper.GetDuration("SEARCH_CACHE_TTL"),
	}
	cfg.Reservation = ReservationConfig{
		TTL:       viper.GetDuration("RESERVATION_TTL"),
		TTLBuffer: viper.GetDuration("RESERVATION_TTL_BUFFER"),
	}

	return cfg, nil
}
