package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/logger"
	"github.com/sevigo/archnet/internal/storage"
	"github.com/sevigo/archnet/mocks"
)

const buyer = "buyer@example.com"

type stubVerifier struct {
	reference string
	err       error
}

func (v stubVerifier) PaidCheckout([]byte, string) (string, error) {
	return v.reference, v.err
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	s := storage.NewMemoryStore()
	_, _, err := s.CreateUser(context.Background(), buyer)
	require.NoError(t, err)
	return s
}

func TestService_Packages(t *testing.T) {
	svc := NewService(newStore(t), NewLocalGateway(&config.BillingConfig{}), nil, logger.Discard())

	pkgs := svc.Packages()
	require.Len(t, pkgs, 3)
	assert.Equal(t, 10, pkgs[0].Credits)
	assert.Equal(t, int64(490), pkgs[0].PriceCents)

	pkgs[0].Credits = 1000
	assert.Equal(t, 10, svc.Packages()[0].Credits)
}

func TestService_CreateCheckout(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t)
	gateway := mocks.NewMockPaymentGateway(ctrl)
	gateway.EXPECT().
		CreateCheckout(gomock.Any(), core.CheckoutRequest{UserEmail: buyer, Credits: 25, PriceCents: 990}).
		Return(&core.CheckoutSession{Reference: "cs_123", URL: "https://pay.example.com/cs_123"}, nil)

	svc := NewService(store, gateway, nil, logger.Discard())

	checkout, err := svc.CreateCheckout(ctx, buyer, 25)
	require.NoError(t, err)
	assert.Equal(t, "cs_123", checkout.Reference)
	assert.Equal(t, core.CheckoutStatusPending, checkout.Status)

	stored, err := store.GetCheckout(ctx, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, 25, stored.Credits)

	balance, err := store.GetBalance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, core.SignupCredits, balance, "credits arrive only after payment")
}

func TestService_CreateCheckoutRejectsUnknownPackage(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewService(newStore(t), mocks.NewMockPaymentGateway(ctrl), nil, logger.Discard())

	_, err := svc.CreateCheckout(context.Background(), buyer, 7)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestService_CreateCheckoutGatewayFailure(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := newStore(t)
	gateway := mocks.NewMockPaymentGateway(ctrl)
	gateway.EXPECT().CreateCheckout(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	svc := NewService(store, gateway, nil, logger.Discard())

	_, err := svc.CreateCheckout(ctx, buyer, 10)
	assert.ErrorIs(t, err, core.ErrGateway)

	balance, err := store.GetBalance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, core.SignupCredits, balance)
}

func TestService_OnPaymentSuccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	svc := NewService(store, NewLocalGateway(&config.BillingConfig{}), nil, logger.Discard())

	checkout, err := svc.CreateCheckout(ctx, buyer, 10)
	require.NoError(t, err)

	_, applied, err := svc.OnPaymentSuccess(ctx, checkout.Reference)
	require.NoError(t, err)
	assert.True(t, applied)

	_, applied, err = svc.OnPaymentSuccess(ctx, checkout.Reference)
	require.NoError(t, err)
	assert.False(t, applied)

	balance, err := store.GetBalance(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, core.SignupCredits+10, balance)
}

func TestService_HandleWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		svc := NewService(newStore(t), NewLocalGateway(&config.BillingConfig{}), nil, logger.Discard())
		assert.ErrorIs(t, svc.HandleWebhook(ctx, nil, ""), core.ErrNotFound)
	})

	t.Run("bad signature", func(t *testing.T) {
		svc := NewService(newStore(t), NewLocalGateway(&config.BillingConfig{}), stubVerifier{err: core.ErrUnauthorized}, logger.Discard())
		assert.ErrorIs(t, svc.HandleWebhook(ctx, nil, "sig"), core.ErrUnauthorized)
	})

	t.Run("ignored event", func(t *testing.T) {
		svc := NewService(newStore(t), NewLocalGateway(&config.BillingConfig{}), stubVerifier{}, logger.Discard())
		assert.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	})

	t.Run("unknown checkout is acknowledged", func(t *testing.T) {
		svc := NewService(newStore(t), NewLocalGateway(&config.BillingConfig{}), stubVerifier{reference: "cs_other"}, logger.Discard())
		assert.NoError(t, svc.HandleWebhook(ctx, nil, "sig"))
	})

	t.Run("paid checkout grants once", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := newStore(t)
		gateway := mocks.NewMockPaymentGateway(ctrl)
		gateway.EXPECT().CreateCheckout(gomock.Any(), gomock.Any()).Return(&core.CheckoutSession{Reference: "cs_paid"}, nil)

		svc := NewService(store, gateway, stubVerifier{reference: "cs_paid"}, logger.Discard())
		_, err := svc.CreateCheckout(ctx, buyer, 100)
		require.NoError(t, err)

		require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))
		require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

		balance, err := store.GetBalance(ctx, buyer)
		require.NoError(t, err)
		assert.Equal(t, core.SignupCredits+100, balance)
	})
}

func TestLocalGateway(t *testing.T) {
	g := NewLocalGateway(&config.BillingConfig{SuccessURL: "http://localhost/?session_id={CHECKOUT_SESSION_ID}"})

	a, err := g.CreateCheckout(context.Background(), core.CheckoutRequest{UserEmail: buyer, Credits: 10, PriceCents: 490})
	require.NoError(t, err)
	b, err := g.CreateCheckout(context.Background(), core.CheckoutRequest{UserEmail: buyer, Credits: 10, PriceCents: 490})
	require.NoError(t, err)

	assert.NotEqual(t, a.Reference, b.Reference)
	assert.Contains(t, a.Reference, "local_")
	assert.Equal(t, "http://localhost/?session_id="+a.Reference, a.URL)

	_, err = g.CreateCheckout(context.Background(), core.CheckoutRequest{Credits: 0})
	assert.Error(t, err)
}

func TestNewGatewaySelection(t *testing.T) {
	_, isLocal := NewGateway(&config.BillingConfig{}, logger.Discard()).(*LocalGateway)
	assert.True(t, isLocal)

	_, isStripe := NewGateway(&config.BillingConfig{StripeSecretKey: "sk_test_123"}, logger.Discard()).(*StripeGateway)
	assert.True(t, isStripe)

	assert.Nil(t, NewWebhookVerifier(&config.BillingConfig{}))
	assert.NotNil(t, NewWebhookVerifier(&config.BillingConfig{StripeWebhookSecret: "whsec_123"}))
}
