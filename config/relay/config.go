package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const EnvDevelopment = "development"

type Config struct {
	Port        int    `env:"PORT" env-default:"3000"`
	Environment string `env:"APP_ENV" env-default:"production"`
	// TrustProxy derives the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy     bool  `env:"TRUST_PROXY" env-default:"false"`
	BodyLimit      int64 `env:"BODY_LIMIT_BYTES" env-default:"10485760"`
	GRPCHealthPort int   `env:"GRPC_HEALTH_PORT" env-default:"0"`

	CORS      CORSConfig
	RateLimit RateLimitConfig `env-prefix:"RATE_LIMIT_"`
	Abacus    UpstreamConfig  `env-prefix:"ABACUS_"`
	Log       LogConfig       `env-prefix:"LOG_"`
}

type CORSConfig struct {
	AllowedOriginPrefix string `env:"ALLOWED_ORIGIN_PREFIX" env-default:"chrome-extension://"`
}

type RateLimitConfig struct {
	Max    int           `env:"MAX" env-default:"20"`
	Window time.Duration `env:"WINDOW" env-default:"5m"`
}

type UpstreamConfig struct {
	URL     string        `env:"URL" env-default:"https://api.abacus.ai/api/v0/evaluatePrompt"`
	Model   string        `env:"MODEL" env-default:"route-llm"`
	Timeout time.Duration `env:"TIMEOUT" env-default:"2m"`
}

type LogConfig struct {
	Level      string `env:"LEVEL" env-default:"info"`
	Format     string `env:"FORMAT" env-default:"text"`
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" env-default:"50"`
	MaxBackups int    `env:"MAX_BACKUPS" env-default:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" env-default:"14"`
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	if c.GRPCHealthPort < 0 || c.GRPCHealthPort > 65535 {
		errs = append(errs, fmt.Errorf("GRPC_HEALTH_PORT must be between 0 and 65535, got %d", c.GRPCHealthPort))
	}
	if c.GRPCHealthPort != 0 && c.GRPCHealthPort == c.Port {
		errs = append(errs, errors.New("GRPC_HEALTH_PORT must differ from PORT"))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, fmt.Errorf("BODY_LIMIT_BYTES must be positive, got %d", c.BodyLimit))
	}
	if c.RateLimit.Max <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be positive, got %d", c.RateLimit.Max))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.RateLimit.Window))
	}
	if c.Abacus.URL == "" {
		errs = append(errs, errors.New("ABACUS_URL is required"))
	}
	if c.Abacus.Timeout < 0 {
		errs = append(errs, fmt.Errorf("ABACUS_TIMEOUT must not be negative, got %s", c.Abacus.Timeout))
	}
	return errors.Join(errs...)
}

// LoadDotenv loads variables from the given files (".env" by default) without
// overriding the ones already set. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}
