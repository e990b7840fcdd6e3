package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
)

// WebhookVerifier authenticates gateway notifications. PaidCheckout returns
// the checkout reference of a completed payment, or "" for events that need
// no action.
type WebhookVerifier interface {
	PaidCheckout(payload []byte, signature string) (string, error)
}

const eventCheckoutCompleted = "checkout.session.completed"

type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeGateway opens Stripe hosted checkout sessions. Calls go through a
// circuit breaker so an unavailable Stripe API fails fast.
type StripeGateway struct {
	newSession sessionCreator
	breaker    *gobreaker.CircuitBreaker
	cfg        *config.BillingConfig
	logger     *slog.Logger
}

var _ core.PaymentGateway = (*StripeGateway)(nil)

// NewStripeGateway creates a gateway backed by the Stripe API.
func NewStripeGateway(cfg *config.BillingConfig, logger *slog.Logger) *StripeGateway {
	sc := client.New(cfg.StripeSecretKey, nil)
	return newStripeGateway(sc.CheckoutSessions.New, cfg, logger)
}

func newStripeGateway(create sessionCreator, cfg *config.BillingConfig, logger *slog.Logger) *StripeGateway {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stripe-checkout",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &StripeGateway{newSession: create, breaker: breaker, cfg: cfg, logger: logger}
}

// CreateCheckout creates a one-off payment session for a credit package.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req core.CheckoutRequest) (*core.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail:     stripe.String(req.UserEmail),
		ClientReferenceID: stripe.String(req.UserEmail),
		SuccessURL:        stripe.String(g.cfg.SuccessURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("%d benchmark credits", req.Credits)),
					},
					UnitAmount: stripe.Int64(req.PriceCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_email", req.UserEmail)
	params.AddMetadata("credits", strconv.Itoa(req.Credits))

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.newSession(params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("stripe temporarily unavailable: %w", err)
		}
		return nil, fmt.Errorf("failed to create stripe checkout session: %w", err)
	}

	session, ok := out.(*stripe.CheckoutSession)
	if !ok || session == nil || session.ID == "" {
		return nil, errors.New("stripe returned an empty checkout session")
	}
	g.logger.Debug("stripe checkout session created", "session_id", session.ID)
	return &core.CheckoutSession{Reference: session.ID, URL: session.URL}, nil
}

// StripeWebhooks verifies Stripe-Signature headers.
type StripeWebhooks struct {
	secret string
}

// NewStripeWebhooks creates a verifier for the endpoint signing secret.
func NewStripeWebhooks(secret string) *StripeWebhooks {
	return &StripeWebhooks{secret: secret}
}

// PaidCheckout extracts the session id of a paid checkout.session.completed event.
func (w *StripeWebhooks) PaidCheckout(payload []byte, signature string) (string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, w.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return "", fmt.Errorf("%w: invalid webhook signature: %w", core.ErrUnauthorized, err)
	}

	if string(event.Type) != eventCheckoutCompleted {
		return "", nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", fmt.Errorf("%w: malformed checkout session payload: %w", core.ErrValidation, err)
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return "", nil
	}
	return session.ID, nil
}
