// Package providers selects the configured payment gateway.
package providers

import (
	"fmt"

	"github.com/fedsport/backend/config"
	"github.com/fedsport/backend/internal/payments"
	"github.com/fedsport/backend/internal/payments/stub"
)

// New builds the provider selected by configuration.
func New(cfg config.PaymentsConfig) (payments.Provider, error) {
	switch cfg.Provider {
	case stub.Name:
		if cfg.WebhookSecret == "" {
			return nil, fmt.Errorf("payment provider %s: webhook secret required", stub.Name)
		}
		return stub.New(cfg.WebhookSecret, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %s", cfg.Provider)
	}
}
