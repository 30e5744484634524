package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	Daraja DarajaConfig
	Verify VerifyConfig

	// Passphrase protects payer data held in memory. Optional: when empty a
	// process-local one is generated, which breaks cross-process decryption.
	Passphrase string
}

// DarajaConfig carries the gateway credentials and endpoints.
type DarajaConfig struct {
	Shortcode      string
	TillNumber     string
	ConsumerKey    string
	ConsumerSecret string
	TokenURL       string
	PushURL        string
	QueryURL       string
	Passkey        string
	CallbackURL    string
}

// VerifyConfig bounds the payment verification loop.
type VerifyConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Expiry      time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "paygate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Daraja: DarajaConfig{
			Shortcode:      strings.TrimSpace(getenv("SAF_SHORTCODE", "")),
			TillNumber:     strings.TrimSpace(getenv("SAF_TILL_NUMBER", "")),
			ConsumerKey:    strings.TrimSpace(getenv("SAF_CONSUMER_KEY", "")),
			ConsumerSecret: strings.TrimSpace(getenv("SAF_CONSUMER_SECRET", "")),
			TokenURL:       strings.TrimSpace(getenv("SAF_ACCESS_TOKEN_API", "")),
			PushURL:        strings.TrimSpace(getenv("SAF_STK_PUSH_API", "")),
			QueryURL:       strings.TrimSpace(getenv("SAF_STK_PUSH_QUERY_API", "")),
			Passkey:        strings.TrimSpace(getenv("SAF_PASS_KEY", "")),
			CallbackURL:    strings.TrimSpace(getenv("CALLBACK_URL", "")),
		},
		Verify: VerifyConfig{
			MaxAttempts: getenvInt("VERIFY_MAX_ATTEMPTS", 5),
			Delay:       time.Duration(getenvInt("VERIFY_DELAY_SECONDS", 5)) * time.Second,
			Expiry:      time.Duration(getenvInt("PAYMENT_EXPIRY_MINUTES", 30)) * time.Minute,
		},
		Passphrase: strings.TrimSpace(getenv("PAYMENT_PASSPHRASE", "")),
	}
}

// Validate reports every missing required gateway variable at once.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"SAF_SHORTCODE", c.Daraja.Shortcode},
		{"SAF_TILL_NUMBER", c.Daraja.TillNumber},
		{"SAF_CONSUMER_KEY", c.Daraja.ConsumerKey},
		{"SAF_CONSUMER_SECRET", c.Daraja.ConsumerSecret},
		{"SAF_ACCESS_TOKEN_API", c.Daraja.TokenURL},
		{"SAF_STK_PUSH_API", c.Daraja.PushURL},
		{"SAF_STK_PUSH_QUERY_API", c.Daraja.QueryURL},
		{"SAF_PASS_KEY", c.Daraja.Passkey},
		{"CALLBACK_URL", c.Daraja.CallbackURL},
	}

	var missing []string
	for _, v := range required {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
