package outbox

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	defaultPollInterval = 100 * time.Millisecond
	defaultBatchSize    = 100
)

var (
	// ErrEmptyConsumerGroup is returned when the consumer group name is empty.
	ErrEmptyConsumerGroup = errors.New("consumer group must not be empty")

	// ErrEmptyDestination is returned when the publish destination is empty.
	ErrEmptyDestination = errors.New("destination must not be empty")

	// ErrInvalidPollInterval is returned when the poll interval is not positive.
	ErrInvalidPollInterval = errors.New("poll interval must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be positive")

	// ErrParsingEnvConfigFailed wraps failures to parse the environment.
	ErrParsingEnvConfigFailed = errors.New("parsing outbox config from environment failed")
)

// Config holds the pump's runtime settings.
type Config struct {
	// ConsumerGroup names the durable cursor this pump reads and advances.
	ConsumerGroup string `env:"OUTBOX_CONSUMER_GROUP"`

	// Destination is passed to the Publisher with every event.
	Destination string `env:"OUTBOX_DESTINATION"`

	// PollInterval is the idle delay between polls of the global event order.
	PollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"100ms"`

	// BatchSize caps how many events one poll reads from the store.
	BatchSize int `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// NewConfig builds a Config with defaults applied, then validated.
func NewConfig(consumerGroup string, destination string, opts ...ConfigOption) (Config, error) {
	cfg := Config{
		ConsumerGroup: consumerGroup,
		Destination:   destination,
		PollInterval:  defaultPollInterval,
		BatchSize:     defaultBatchSize,
	}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// NewConfigFromEnv reads the OUTBOX_* environment variables.
func NewConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingEnvConfigFailed, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.ConsumerGroup == "":
		return ErrEmptyConsumerGroup
	case c.Destination == "":
		return ErrEmptyDestination
	case c.PollInterval <= 0:
		return ErrInvalidPollInterval
	case c.BatchSize <= 0:
		return ErrInvalidBatchSize
	}

	return nil
}

// ConfigOption adjusts a Config built with NewConfig.
type ConfigOption func(*Config) error

// WithPollInterval overrides the idle delay between polls.
func WithPollInterval(interval time.Duration) ConfigOption {
	return func(c *Config) error {
		if interval <= 0 {
			return ErrInvalidPollInterval
		}

		c.PollInterval = interval

		return nil
	}
}

// WithBatchSize overrides how many events one poll reads.
func WithBatchSize(size int) ConfigOption {
	return func(c *Config) error {
		if size <= 0 {
			return ErrInvalidBatchSize
		}

		c.BatchSize = size

		return nil
	}
}
