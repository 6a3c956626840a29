package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env              string
	APIEndpoint      string
	LocalAPIEndpoint string
	LogLevel         string
	RequestTimeout   time.Duration

	// Session persistence
	SessionStore  string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Booking defaults
	SessionPrice      int64
	SessionMRP        int64
	Currency          string
	MerchantName      string
	CheckoutThemeHex  string
	RazorpayKeyID     string
	RazorpayKeySecret string

	// Sandbox backend
	SandboxPort              string
	SandboxDatabaseURL       string
	SandboxJWTSecret         string
	SandboxTaxPercentage     float64
	SandboxCardFeePercentage float64
	SandboxRateLimit         float64
	SandboxRateBurst         int
	CORSAllowedOrigins       []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:              getEnv("ENV", "development"),
		APIEndpoint:      getEnv("API_ENDPOINT", "https://drkm.api.adsdigitalmedia.com/api/v1"),
		LocalAPIEndpoint: getEnv("LOCAL_API_ENDPOINT", "http://localhost:8090/api/v1"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RequestTimeout:   getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),

		SessionStore:  strings.ToLower(strings.TrimSpace(getEnv("SESSION_STORE", "memory"))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		SessionPrice:      int64(getEnvAsInt("SESSION_PRICE", 10000)),
		SessionMRP:        int64(getEnvAsInt("SESSION_MRP", 12000)),
		Currency:          getEnv("CURRENCY", "INR"),
		MerchantName:      getEnv("MERCHANT_NAME", "Dr. Rajneesh Kant Clinic"),
		CheckoutThemeHex:  getEnv("CHECKOUT_THEME_COLOR", "#6366f1"),
		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),

		SandboxPort:              getEnv("SANDBOX_PORT", "8090"),
		SandboxDatabaseURL:       getEnv("SANDBOX_DATABASE_URL", ""),
		SandboxJWTSecret:         getEnv("SANDBOX_JWT_SECRET", "sandbox-secret"),
		SandboxTaxPercentage:     getEnvAsFloat("SANDBOX_TAX_PERCENTAGE", 18),
		SandboxCardFeePercentage: getEnvAsFloat("SANDBOX_CARD_FEE_PERCENTAGE", 2),
		SandboxRateLimit:         getEnvAsFloat("SANDBOX_RATE_LIMIT", 20),
		SandboxRateBurst:         getEnvAsInt("SANDBOX_RATE_BURST", 40),
		CORSAllowedOrigins:       getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
	}
}

// IsDevelopment reports whether the build environment is development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "development")
}

// APIBaseURL returns the backend base URL for the build environment.
func (c *Config) APIBaseURL() string {
	if c.IsDevelopment() {
		return strings.TrimRight(c.LocalAPIEndpoint, "/")
	}
	return strings.TrimRight(c.APIEndpoint, "/")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
