package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	CORS           CORSConfig
	Log            LogConfig
	Services       ServicesConfig
	Reconciliation ReconciliationConfig
	Payments       PaymentsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ServicesConfig points at the external collaborators: the batches roster
// service, the billing (payment-required) service, the payment gateway and
// the notification service.
type ServicesConfig struct {
	BatchesBaseURL  string
	BillingBaseURL  string
	GatewayBaseURL  string
	NotifierBaseURL string
	AuthToken       string
	Timeout         time.Duration
}

// ReconciliationConfig tunes the payment verification loop.
type ReconciliationConfig struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// PaymentsConfig governs payment-requirement resolution and the redirect
// resume record.
type PaymentsConfig struct {
	// FailOpen treats a failed payment-required check as "no payment
	// required". When false, check failure is a transient error instead.
	FailOpen       bool
	ResumeTokenTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Services = ServicesConfig{
		BatchesBaseURL:  v.GetString("BATCHES_BASE_URL"),
		BillingBaseURL:  v.GetString("BILLING_BASE_URL"),
		GatewayBaseURL:  v.GetString("GATEWAY_BASE_URL"),
		NotifierBaseURL: v.GetString("NOTIFIER_BASE_URL"),
		AuthToken:       v.GetString("SERVICES_AUTH_TOKEN"),
		Timeout:         parseDuration(v.GetString("SERVICES_TIMEOUT"), 10*time.Second),
	}

	cfg.Reconciliation = ReconciliationConfig{
		PollInterval: parseDuration(v.GetString("RECONCILE_POLL_INTERVAL"), 2*time.Second),
		Timeout:      parseDuration(v.GetString("RECONCILE_TIMEOUT"), 5*time.Minute),
	}

	cfg.Payments = PaymentsConfig{
		FailOpen:       v.GetBool("PAYMENT_CHECK_FAIL_OPEN"),
		ResumeTokenTTL: parseDuration(v.GetString("RESUME_TOKEN_TTL"), 30*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admissions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BATCHES_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("BILLING_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("GATEWAY_BASE_URL", "http://localhost:3100")
	v.SetDefault("NOTIFIER_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("SERVICES_AUTH_TOKEN", "")
	v.SetDefault("SERVICES_TIMEOUT", "10s")

	v.SetDefault("RECONCILE_POLL_INTERVAL", "2s")
	v.SetDefault("RECONCILE_TIMEOUT", "5m")

	v.SetDefault("PAYMENT_CHECK_FAIL_OPEN", true)
	v.SetDefault("RESUME_TOKEN_TTL", "30m")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
