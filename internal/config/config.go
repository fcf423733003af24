// Package config loads service settings from the environment, an optional
// YAML file named by CONFIG_PATH and an optional .env file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env         string `yaml:"env" env:"APP_ENV" env-default:"development"`
	Port        int    `yaml:"port" env:"PORT" env-default:"8080"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" env-required:"true"`
	DBMaxConns  int32  `yaml:"db_max_conns" env:"DB_MAX_CONNS" env-default:"10"`

	Log          Log          `yaml:"log"`
	JWT          JWT          `yaml:"jwt"`
	Redis        Redis        `yaml:"redis"`
	Minio        Minio        `yaml:"minio"`
	AMQP         AMQP         `yaml:"amqp"`
	Subscription Subscription `yaml:"subscription"`
	Payments     Payments     `yaml:"payments"`
	Bootstrap    Bootstrap    `yaml:"bootstrap"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

type JWT struct {
	Secret           string        `yaml:"secret" env:"JWT_SECRET"`
	TokenTTL         time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"24h"`
	ImpersonationTTL time.Duration `yaml:"impersonation_ttl" env:"JWT_IMPERSONATION_TTL" env-default:"15m"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Minio struct {
	Endpoint      string        `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKey     string        `yaml:"access_key" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretKey     string        `yaml:"secret_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	UseSSL        bool          `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
	ReceiptBucket string        `yaml:"receipt_bucket" env:"MINIO_RECEIPT_BUCKET" env-default:"receipts"`
	PresignExpiry time.Duration `yaml:"presign_expiry" env:"MINIO_PRESIGN_EXPIRY" env-default:"10m"`
}

// AMQP is optional; an empty URL disables event publishing.
type AMQP struct {
	URL      string `yaml:"url" env:"AMQP_URL"`
	Exchange string `yaml:"exchange" env:"AMQP_EXCHANGE" env-default:"subscription.events"`
}

type Subscription struct {
	TrialPeriod     time.Duration `yaml:"trial_period" env:"TRIAL_PERIOD" env-default:"336h"`
	OverdueGrace    time.Duration `yaml:"overdue_grace" env:"OVERDUE_GRACE" env-default:"720h"`
	LifecycleEvery  time.Duration `yaml:"lifecycle_every" env:"LIFECYCLE_EVERY" env-default:"1h"`
	MaxReceiptBytes int64         `yaml:"max_receipt_bytes" env:"MAX_RECEIPT_BYTES" env-default:"10485760"`
	Currency        string        `yaml:"currency" env:"BILLING_CURRENCY" env-default:"ETB"`
	OverviewTTL     time.Duration `yaml:"overview_ttl" env:"BILLING_OVERVIEW_TTL" env-default:"1m"`
}

// Payments holds the static account details shown to landlords.
type Payments struct {
	BankName          string `yaml:"bank_name" env:"PAY_BANK_NAME" env-default:"Commercial Bank of Ethiopia"`
	BankAccountName   string `yaml:"bank_account_name" env:"PAY_BANK_ACCOUNT_NAME" env-default:"Rentdesk PLC"`
	BankAccountNumber string `yaml:"bank_account_number" env:"PAY_BANK_ACCOUNT_NUMBER" env-default:"1000123456789"`
	TelebirrName      string `yaml:"telebirr_name" env:"PAY_TELEBIRR_NAME" env-default:"Rentdesk PLC"`
	TelebirrNumber    string `yaml:"telebirr_number" env:"PAY_TELEBIRR_NUMBER" env-default:"0911000000"`
	CardMerchantName  string `yaml:"card_merchant_name" env:"PAY_CARD_MERCHANT_NAME" env-default:"Rentdesk PLC"`
	CardMerchantID    string `yaml:"card_merchant_id" env:"PAY_CARD_MERCHANT_ID" env-default:"RD-0001"`
}

// Bootstrap seeds the first platform admin when both fields are set.
type Bootstrap struct {
	AdminEmail    string `yaml:"admin_email" env:"BOOTSTRAP_ADMIN_EMAIL"`
	AdminPassword string `yaml:"admin_password" env:"BOOTSTRAP_ADMIN_PASSWORD"`
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("cannot read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Env == "production" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.Subscription.MaxReceiptBytes <= 0 {
		return fmt.Errorf("MAX_RECEIPT_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
