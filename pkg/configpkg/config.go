// Package configpkg provides parsing functionality for environment variables.
package configpkg

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config stores all configuration of the application.
//
// The values are read by viper from a config file or environment variables.
type Config struct {
	DBDriver           string        `mapstructure:"DB_DRIVER"`
	DBSource           string        `mapstructure:"DB_SOURCE"`
	ServerAddress      string        `mapstructure:"SERVER_ADDRESS"`
	Environment        string        `mapstructure:"GO_ENV"`
	Storage            string        `mapstructure:"STORAGE"`
	MigrationURL       string        `mapstructure:"MIGRATION_URL"`
	LockTimeout        time.Duration `mapstructure:"LOCK_TIMEOUT"`
	AppendMaxAttempts  int           `mapstructure:"APPEND_MAX_ATTEMPTS"`
	AppendRetryBackoff time.Duration `mapstructure:"APPEND_RETRY_BACKOFF"`
	RedisURL           string        `mapstructure:"REDIS_URL"`
	IdempotencyTTL     time.Duration `mapstructure:"IDEMPOTENCY_TTL"`
	KafkaBrokers       string        `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic         string        `mapstructure:"KAFKA_TOPIC"`
	RateLimit          string        `mapstructure:"RATE_LIMIT"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

// Load reads configuration from file or environment variables.
func Load(path string) (Config, error) {
	var c Config

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("GO_ENV", "production")
	v.SetDefault("STORAGE", StoragePostgres)
	v.SetDefault("LOCK_TIMEOUT", "5s")
	v.SetDefault("APPEND_MAX_ATTEMPTS", 3)
	v.SetDefault("APPEND_RETRY_BACKOFF", "50ms")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("KAFKA_TOPIC", "transaction.appended")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return c, err
	}

	err = v.Unmarshal(&c)
	if err != nil {
		return c, err
	}

	return c, nil
}

// Brokers splits the comma separated KAFKA_BROKERS value.
func (c Config) Brokers() []string {
	var brokers []string

	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return brokers
}
