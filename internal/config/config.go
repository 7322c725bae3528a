// Package config loads process configuration from a YAML file with
// environment overrides. Configuration is read once at start-up.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/votepay/internal/money"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Card        CardConfig        `mapstructure:"card"`
	MobileMoney MobileMoneyConfig `mapstructure:"mobile_money"`
	Payments    PaymentsConfig    `mapstructure:"payments"`
	Reconcile   ReconcileConfig   `mapstructure:"reconcile"`
	Frontend    FrontendConfig    `mapstructure:"frontend"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// ConnString returns DSN when set, otherwise a libpq keyword string.
func (c DatabaseConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type CardConfig struct {
	SecretKey          string   `mapstructure:"secret_key"`
	WebhookSecret      string   `mapstructure:"webhook_secret"`
	PaymentMethodTypes []string `mapstructure:"payment_method_types"`
}

type MobileMoneyConfig struct {
	SecretKey          string `mapstructure:"secret_key"`
	BaseURL            string `mapstructure:"base_url"`
	SettlementCurrency string `mapstructure:"settlement_currency"`
}

type PaymentsConfig struct {
	DefaultCommissionRate string        `mapstructure:"default_commission_rate"`
	ProviderTimeout       time.Duration `mapstructure:"provider_timeout"`
}

// CommissionRate parses DefaultCommissionRate.
func (c PaymentsConfig) CommissionRate() (decimal.Decimal, error) {
	return decimal.NewFromString(c.DefaultCommissionRate)
}

type ReconcileConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	BatchSize  int           `mapstructure:"batch_size"`
	PendingAge time.Duration `mapstructure:"pending_age"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

type FrontendConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CallbackURL is where the mobile money provider sends the voter after paying.
func (c FrontendConfig) CallbackURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/payment/callback"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 45*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "votepay")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "votepay.events")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("card.secret_key", "")
	v.SetDefault("card.webhook_secret", "")
	v.SetDefault("card.payment_method_types", []string{"card"})

	v.SetDefault("mobile_money.secret_key", "")
	v.SetDefault("mobile_money.base_url", "https://api.paystack.co")
	v.SetDefault("mobile_money.settlement_currency", "GHS")

	v.SetDefault("payments.default_commission_rate", "0.05")
	v.SetDefault("payments.provider_timeout", 30*time.Second)

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", time.Minute)
	v.SetDefault("reconcile.batch_size", 100)
	v.SetDefault("reconcile.pending_age", 15*time.Minute)
	v.SetDefault("reconcile.lock_ttl", 2*time.Minute)

	v.SetDefault("frontend.base_url", "http://localhost:3000")
}

// Load reads configPath (optional) and overlays VOTEPAY_* environment
// variables, e.g. VOTEPAY_CARD_SECRET_KEY for card.secret_key.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("votepay")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	rate, err := cfg.Payments.CommissionRate()
	if err == nil {
		err = money.ValidateRate(rate)
	}
	if err != nil {
		return nil, fmt.Errorf("payments.default_commission_rate: %w", err)
	}
	return &cfg, nil
}
