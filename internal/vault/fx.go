package vault

import (
	"github.com/google/uuid"
	"github.com/wakilihq/paygate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig builds the vault from the configured passphrase, generating a
// process-local one when unset.
func NewFromConfig(cfg config.Config, log *zap.Logger) (*Vault, error) {
	passphrase := cfg.Passphrase
	if passphrase == "" {
		passphrase = uuid.NewString()
		log.Warn("PAYMENT_PASSPHRASE not set, generated a process-local passphrase; ciphertext will not decrypt across processes")
	}
	return New(passphrase)
}

// Module wires the crypto vault.
var Module = fx.Module("vault",
	fx.Provide(NewFromConfig),
)
