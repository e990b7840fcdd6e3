package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
)

// LocalGateway issues checkout references without talking to a payment
// provider. Payments are confirmed through the worker-token callback
// endpoint or the CLI.
type LocalGateway struct {
	successURL string
}

var _ core.PaymentGateway = (*LocalGateway)(nil)

// NewLocalGateway creates a LocalGateway.
func NewLocalGateway(cfg *config.BillingConfig) *LocalGateway {
	return &LocalGateway{successURL: cfg.SuccessURL}
}

// CreateCheckout returns a fresh "local_" reference.
func (g *LocalGateway) CreateCheckout(_ context.Context, req core.CheckoutRequest) (*core.CheckoutSession, error) {
	if req.Credits <= 0 || req.PriceCents < 0 {
		return nil, fmt.Errorf("invalid checkout request for %d credits", req.Credits)
	}
	ref := "local_" + uuid.NewString()
	return &core.CheckoutSession{Reference: ref, URL: g.checkoutURL(ref)}, nil
}

func (g *LocalGateway) checkoutURL(ref string) string {
	if g.successURL == "" {
		return ""
	}
	return strings.ReplaceAll(g.successURL, "{CHECKOUT_SESSION_ID}", url.QueryEscape(ref))
}

// NewGateway picks the Stripe gateway when a secret key is configured and the
// local gateway otherwise.
func NewGateway(cfg *config.BillingConfig, logger *slog.Logger) core.PaymentGateway {
	if cfg.StripeSecretKey == "" {
		logger.Info("no stripe key configured, using local payment gateway")
		return NewLocalGateway(cfg)
	}
	return NewStripeGateway(cfg, logger)
}

// NewWebhookVerifier returns nil when no webhook secret is configured.
func NewWebhookVerifier(cfg *config.BillingConfig) WebhookVerifier {
	if cfg.StripeWebhookSecret == "" {
		return nil
	}
	return NewStripeWebhooks(cfg.StripeWebhookSecret)
}
