// Package config содержит логику чтения конфигурации программы лояльности.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"
)

const defaultRunAddress = "localhost:8080"

// Config содержит параметры конфигурации программы лояльности.
type Config struct {
	RunAddress          string `env:"RUN_ADDRESS" validate:"required,hostname_port"`
	DatabaseURI         string `env:"DATABASE_URI"`
	PayoutSystemAddress string `env:"PAYOUT_SYSTEM_ADDRESS"`

	AuthSecret  string        `env:"AUTH_SECRET" envDefault:"dev-secret-change-me" validate:"min=8"`
	TokenTTL    time.Duration `env:"TOKEN_TTL" envDefault:"24h" validate:"gt=0"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info" validate:"loglevel"`
	CORSOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	WithdrawalMin  decimal.Decimal `env:"WITHDRAWAL_MIN" envDefault:"100"`
	WithdrawalMax  decimal.Decimal `env:"WITHDRAWAL_MAX" envDefault:"50000"`
	CommissionRate decimal.Decimal `env:"WITHDRAWAL_COMMISSION_RATE" envDefault:"0.05"`
	EarningsRate   decimal.Decimal `env:"SALE_EARNINGS_RATE" envDefault:"0.05"`

	OrderAutoConfirmAfter time.Duration `env:"ORDER_AUTO_CONFIRM_AFTER" envDefault:"48h" validate:"gte=0"`
	JobInterval           time.Duration `env:"JOB_INTERVAL" envDefault:"5s" validate:"gt=0"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPayoutAddress := cfg.PayoutSystemAddress

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PayoutSystemAddress, "p", "", "payout system address")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPayoutAddress != "" {
		cfg.PayoutSystemAddress = envPayoutAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func validateLogLevel(fl validator.FieldLevel) bool {
	_, err := zapcore.ParseLevel(fl.Field().String())
	return err == nil
}

// Validate проверяет значения конфигурации.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return err
	}

	switch {
	case c.WithdrawalMin.IsNegative():
		return errors.New("WITHDRAWAL_MIN must not be negative")
	case c.WithdrawalMax.IsPositive() && c.WithdrawalMax.LessThan(c.WithdrawalMin):
		return errors.New("WITHDRAWAL_MAX must not be less than WITHDRAWAL_MIN")
	case c.CommissionRate.IsNegative() || c.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		return errors.New("WITHDRAWAL_COMMISSION_RATE must be in [0, 1)")
	case c.EarningsRate.IsNegative() || c.EarningsRate.GreaterThan(decimal.NewFromInt(1)):
		return errors.New("SALE_EARNINGS_RATE must be in [0, 1]")
	}
	return nil
}
