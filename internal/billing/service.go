// Package billing sells credit packages through a payment gateway and grants
// credits exactly once per completed checkout.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/storage"
)

// Service coordinates the gateway, the checkout records and the ledger.
type Service struct {
	store    storage.Store
	gateway  core.PaymentGateway
	webhooks WebhookVerifier
	packages []core.CreditPackage
	logger   *slog.Logger
}

// NewService creates a billing Service. webhooks may be nil when no gateway
// sends signed notifications.
func NewService(store storage.Store, gateway core.PaymentGateway, webhooks WebhookVerifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		gateway:  gateway,
		webhooks: webhooks,
		packages: slices.Clone(core.DefaultCreditPackages),
		logger:   logger,
	}
}

// Packages returns the credit price list.
func (s *Service) Packages() []core.CreditPackage {
	return slices.Clone(s.packages)
}

// CreateCheckout opens a hosted checkout for one of the catalog packages and
// records it as pending. A gateway failure leaves no local record.
func (s *Service) CreateCheckout(ctx context.Context, email string, credits int) (*core.Checkout, error) {
	pkg, err := core.FindCreditPackage(s.packages, credits)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, email); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckout(ctx, core.CheckoutRequest{
		UserEmail:  email,
		Credits:    pkg.Credits,
		PriceCents: pkg.PriceCents,
	})
	if err != nil {
		s.logger.Error("payment gateway rejected checkout", "user", email, "credits", credits, "error", err)
		return nil, fmt.Errorf("%w: %w", core.ErrGateway, err)
	}

	checkout := &core.Checkout{
		Reference:   session.Reference,
		UserEmail:   email,
		Credits:     pkg.Credits,
		PriceCents:  pkg.PriceCents,
		CheckoutURL: session.URL,
	}
	if err := s.store.CreateCheckout(ctx, checkout); err != nil {
		return nil, fmt.Errorf("failed to record checkout: %w", err)
	}

	s.logger.Info("checkout created", "user", email, "reference", checkout.Reference, "credits", pkg.Credits)
	return checkout, nil
}

// OnPaymentSuccess grants the credits of a paid checkout. Repeated calls for
// the same reference return applied=false and grant nothing.
func (s *Service) OnPaymentSuccess(ctx context.Context, reference string) (*core.Checkout, bool, error) {
	checkout, applied, err := s.store.ApplyCheckout(ctx, reference)
	if err != nil {
		return nil, false, err
	}
	if applied {
		s.logger.Info("credits granted", "user", checkout.UserEmail, "reference", reference, "credits", checkout.Credits)
	} else {
		s.logger.Info("ignoring duplicate payment callback", "reference", reference)
	}
	return checkout, applied, nil
}

// HandleWebhook verifies a gateway notification and applies it. Events that do
// not describe a paid checkout are acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhooks == nil {
		return fmt.Errorf("%w: webhooks are not configured", core.ErrNotFound)
	}

	reference, err := s.webhooks.PaidCheckout(payload, signature)
	if err != nil {
		return err
	}
	if reference == "" {
		return nil
	}

	if _, _, err := s.OnPaymentSuccess(ctx, reference); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Sessions created outside this service share the webhook endpoint.
			s.logger.Warn("webhook for unknown checkout", "reference", reference)
			return nil
		}
		return err
	}
	return nil
}
