package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Discord   DiscordConfig
	Scheduler SchedulerConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Pairing   PairingConfig
	Commands  CommandConfig
	Retention RetentionConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address string `env:"SERVER_ADDRESS" envDefault:":8080"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	URL    string `env:"DATABASE_URL,required"`
}

type DiscordConfig struct {
	Token   string `env:"DISCORD_BOT_TOKEN,required"`
	APIBase string `env:"DISCORD_API_BASE" envDefault:"https://discord.com/api/v10"`
}

type SchedulerConfig struct {
	Interval  time.Duration `env:"SCHED_INTERVAL" envDefault:"1500ms"`
	BatchSize int           `env:"SCHED_BATCH_SIZE" envDefault:"10"`
	ClaimTTL  time.Duration `env:"SCHED_CLAIM_TTL" envDefault:"2m"`
	AutoStart bool          `env:"SCHED_AUTOSTART" envDefault:"true"`
}

type RedisConfig struct {
	Address  string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"24h"`
}

func (c RedisConfig) Enabled() bool { return c.Address != "" }

type KafkaConfig struct {
	Brokers      []string `env:"KAFKA_BROKERS" envSeparator:","`
	CommandTopic string   `env:"KAFKA_COMMAND_TOPIC" envDefault:"relay.commands"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type PairingConfig struct {
	CodeTTL time.Duration `env:"PAIRING_CODE_TTL" envDefault:"10m"`
}

type CommandConfig struct {
	RatePerMinute float64 `env:"COMMAND_RATE_PER_MINUTE" envDefault:"30"`
	Burst         int     `env:"COMMAND_BURST" envDefault:"5"`
}

type RetentionConfig struct {
	Cron string `env:"RETENTION_CRON" envDefault:"0 3 * * *"`
	// Days is how long terminal rows are kept; 0 disables retention.
	Days int `env:"RETENTION_DAYS" envDefault:"14"`
}

func (c RetentionConfig) Enabled() bool { return c.Days > 0 }

func (c RetentionConfig) MaxAge() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

func LoadAll() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be postgres or sqlite, got %q", cfg.Database.Driver))
	}
	if cfg.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("SCHED_BATCH_SIZE must be > 0"))
	}
	if cfg.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("SCHED_INTERVAL must be > 0"))
	}
	if cfg.Scheduler.ClaimTTL <= 0 {
		errs = append(errs, errors.New("SCHED_CLAIM_TTL must be > 0"))
	}
	if cfg.Redis.Enabled() && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL must be > 0"))
	}
	if cfg.Kafka.Enabled() && cfg.Kafka.CommandTopic == "" {
		errs = append(errs, errors.New("KAFKA_COMMAND_TOPIC must be set when KAFKA_BROKERS is"))
	}
	if cfg.Pairing.CodeTTL <= 0 {
		errs = append(errs, errors.New("PAIRING_CODE_TTL must be > 0"))
	}
	if cfg.Commands.RatePerMinute < 0 {
		errs = append(errs, errors.New("COMMAND_RATE_PER_MINUTE must be >= 0"))
	}
	if cfg.Commands.Burst <= 0 {
		errs = append(errs, errors.New("COMMAND_BURST must be > 0"))
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, errors.New("RETENTION_DAYS must be >= 0"))
	}
	if cfg.Retention.Enabled() && !gronx.IsValid(cfg.Retention.Cron) {
		errs = append(errs, fmt.Errorf("RETENTION_CRON is not a valid cron expression: %q", cfg.Retention.Cron))
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.Log.Format))
	}

	return errors.Join(errs...)
}
