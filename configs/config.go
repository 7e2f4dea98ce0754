package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Stripe struct {
	SecretKey         string
	WebhookSecret     string
	PriceEntry        string
	PriceStandard     string
	PriceProfessional string
}

type Config struct {
	AppID               string
	ListenAddr          string
	LogLevel            string
	GoogleClientID      string
	GoogleClientSecret  string
	GoogleRedirectURI   string
	PostgresURI         string
	RedisURI            string
	FrontendURL         string
	SecretKey           string
	CookieName          string
	DemoCookieName      string
	DemoModeEnabled     bool
	Stripe              Stripe
	BillingSyncInterval time.Duration
}

func LoadConfig() *Config {
	return &Config{
		AppID:              getEnv("APP_ID", "misepo"),
		ListenAddr:         getEnv("LISTEN_ADDR", ":3000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", "localhost:6379"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:          getEnv("SECRET_KEY", ""),
		CookieName:         getEnv("COOKIE_NAME", "misepo_session"),
		DemoCookieName:     getEnv("DEMO_COOKIE_NAME", "misepo_demo"),
		DemoModeEnabled:    getEnvBool("DEMO_MODE_ENABLED", false),
		Stripe: Stripe{
			SecretKey:         getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:     getEnv("STRIPE_WEBHOOK_SECRET", ""),
			PriceEntry:        getEnv("STRIPE_PRICE_ENTRY", ""),
			PriceStandard:     getEnv("STRIPE_PRICE_STANDARD", ""),
			PriceProfessional: getEnv("STRIPE_PRICE_PROFESSIONAL", ""),
		},
		BillingSyncInterval: getEnvDuration("BILLING_SYNC_INTERVAL", 6*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
