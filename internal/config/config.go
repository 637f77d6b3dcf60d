package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"payment-ledger/internal/infrastructure/database"
)

// ConfigFileEnv names an optional YAML file. Environment variables override
// values read from it.
const ConfigFileEnv = "PAYMENTS_CONFIG_FILE"

type Config struct {
	LogLevel string `yaml:"log_level" env:"PAYMENTS_LOG_LEVEL" env-default:"info"`

	HTTP struct {
		Port            int           `yaml:"port" env:"PAYMENTS_HTTP_PORT" env-default:"8082"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"PAYMENTS_HTTP_READ_TIMEOUT" env-default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"PAYMENTS_HTTP_WRITE_TIMEOUT" env-default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PAYMENTS_HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	} `yaml:"http"`

	DBConfig struct {
		Host              string        `yaml:"host" env:"PAYMENTS_DB_HOST" env-default:"localhost"`
		Port              int           `yaml:"port" env:"PAYMENTS_DB_PORT" env-default:"5432"`
		User              string        `yaml:"user" env:"PAYMENTS_DB_USER" env-default:"user"`
		Password          string        `yaml:"password" env:"PAYMENTS_DB_PASSWORD" env-default:"password"`
		Name              string        `yaml:"name" env:"PAYMENTS_DB_NAME" env-default:"payments_db"`
		SSLMode           string        `yaml:"ssl_mode" env:"PAYMENTS_DB_SSLMODE" env-default:"disable"`
		MaxOpenConns      int           `yaml:"max_open_conns" env:"PAYMENTS_DB_MAX_OPEN_CONNS" env-default:"25"`
		MaxIdleConns      int           `yaml:"max_idle_conns" env:"PAYMENTS_DB_MAX_IDLE_CONNS" env-default:"5"`
		ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" env:"PAYMENTS_DB_CONN_MAX_LIFETIME" env-default:"30m"`
		ConnectRetries    int           `yaml:"connect_retries" env:"PAYMENTS_DB_CONNECT_RETRIES" env-default:"10"`
		ConnectRetryDelay time.Duration `yaml:"connect_retry_delay" env:"PAYMENTS_DB_CONNECT_RETRY_DELAY" env-default:"5s"`
	} `yaml:"db"`

	Kafka struct {
		Enabled                bool          `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"true"`
		BrokerURL              string        `yaml:"broker_url" env:"KAFKA_BROKER_URL" env-default:"localhost:9092"`
		ChargeRequestsTopic    string        `yaml:"charge_requests_topic" env:"KAFKA_CHARGE_REQUESTS_TOPIC" env-default:"payment_charge_requests"`
		TransactionEventsTopic string        `yaml:"transaction_events_topic" env:"KAFKA_TRANSACTION_EVENTS_TOPIC" env-default:"payment_transactions"`
		ConsumerGroup          string        `yaml:"consumer_group" env:"KAFKA_CONSUMER_GROUP" env-default:"payments-service-group"`
		TopicPartitions        int           `yaml:"topic_partitions" env:"KAFKA_TOPIC_PARTITIONS" env-default:"1"`
		WriteTimeout           time.Duration `yaml:"write_timeout" env:"KAFKA_WRITE_TIMEOUT" env-default:"10s"`
		HandlerTimeout         time.Duration `yaml:"handler_timeout" env:"KAFKA_HANDLER_TIMEOUT" env-default:"25s"`
	} `yaml:"kafka"`

	Outbox struct {
		PollInterval time.Duration `yaml:"poll_interval" env:"OUTBOX_POLL_INTERVAL" env-default:"1s"`
		PollTimeout  time.Duration `yaml:"poll_timeout" env:"OUTBOX_POLL_TIMEOUT" env-default:"500ms"`
		BatchSize    int           `yaml:"batch_size" env:"OUTBOX_BATCH_SIZE" env-default:"50"`
	} `yaml:"outbox"`

	Gateway struct {
		ChargeLimitCents int64 `yaml:"charge_limit_cents" env:"GATEWAY_CHARGE_LIMIT_CENTS" env-default:"100000"`
	} `yaml:"gateway"`
}

// LoadConfig reads .env (if present), then the optional YAML file, then the
// environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	var err error
	if path := os.Getenv(ConfigFileEnv); path != "" {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.DBConfig.ConnectRetries <= 0 {
		return fmt.Errorf("db connect retries must be positive, got %d", c.DBConfig.ConnectRetries)
	}
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("outbox poll interval must be positive, got %s", c.Outbox.PollInterval)
	}
	if c.Kafka.Enabled && len(c.GetKafkaBrokers()) == 0 {
		return errors.New("kafka is enabled but KAFKA_BROKER_URL is empty")
	}
	return nil
}

func (c *Config) Database() database.DBConfig {
	return database.DBConfig{
		Host:            c.DBConfig.Host,
		Port:            c.DBConfig.Port,
		User:            c.DBConfig.User,
		Password:        c.DBConfig.Password,
		DBName:          c.DBConfig.Name,
		SSLMode:         c.DBConfig.SSLMode,
		MaxOpenConns:    c.DBConfig.MaxOpenConns,
		MaxIdleConns:    c.DBConfig.MaxIdleConns,
		ConnMaxLifetime: c.DBConfig.ConnMaxLifetime,
	}
}

func (c *Config) GetKafkaBrokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.BrokerURL, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Usage describes every supported variable, for the CLI help output.
func Usage() string {
	desc, err := cleanenv.GetDescription(&Config{}, nil)
	if err != nil {
		return ""
	}
	return desc
}
