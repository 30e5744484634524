package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SAF_SHORTCODE", "600000")
	t.Setenv("SAF_TILL_NUMBER", "123456")
	t.Setenv("SAF_CONSUMER_KEY", "key")
	t.Setenv("SAF_CONSUMER_SECRET", "secret")
	t.Setenv("SAF_ACCESS_TOKEN_API", "https://gateway.example/oauth/token")
	t.Setenv("SAF_STK_PUSH_API", "https://gateway.example/stkpush")
	t.Setenv("SAF_STK_PUSH_QUERY_API", "https://gateway.example/stkquery")
	t.Setenv("SAF_PASS_KEY", "passkey")
	t.Setenv("CALLBACK_URL", "https://app.example/callbacks/daraja")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg := Load()
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 5, cfg.Verify.MaxAttempts)
	require.Equal(t, 5*time.Second, cfg.Verify.Delay)
	require.Equal(t, 30*time.Minute, cfg.Verify.Expiry)
	require.Empty(t, cfg.Passphrase)
}

func TestLoadVerifyOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VERIFY_MAX_ATTEMPTS", "3")
	t.Setenv("VERIFY_DELAY_SECONDS", "2")
	t.Setenv("PAYMENT_EXPIRY_MINUTES", "10")

	cfg := Load()
	require.Equal(t, 3, cfg.Verify.MaxAttempts)
	require.Equal(t, 2*time.Second, cfg.Verify.Delay)
	require.Equal(t, 10*time.Minute, cfg.Verify.Expiry)
}

func TestLoadIgnoresUnparsableInts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VERIFY_MAX_ATTEMPTS", "many")

	cfg := Load()
	require.Equal(t, 5, cfg.Verify.MaxAttempts)
}

func TestValidateListsEveryMissingVariable(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SAF_CONSUMER_KEY", "")
	t.Setenv("CALLBACK_URL", "")

	err := Load().Validate()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "SAF_CONSUMER_KEY"))
	require.True(t, strings.Contains(err.Error(), "CALLBACK_URL"))
	require.False(t, strings.Contains(err.Error(), "SAF_SHORTCODE"))
}
