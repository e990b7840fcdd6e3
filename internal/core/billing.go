package core

import (
	"context"
	"fmt"
	"time"
)

// CreditPackage is an entry of the static credit price list.
type CreditPackage struct {
	Credits    int    `json:"credits"`
	PriceCents int64  `json:"price_cents"`
	Label      string `json:"label"`
}

// DefaultCreditPackages is the catalog offered at checkout.
var DefaultCreditPackages = []CreditPackage{
	{Credits: 10, PriceCents: 490, Label: "10 Credits - $4.90"},
	{Credits: 25, PriceCents: 990, Label: "25 Credits - $9.90"},
	{Credits: 100, PriceCents: 2990, Label: "100 Credits - $29.90"},
}

// FindCreditPackage returns the package granting the given number of credits.
func FindCreditPackage(packages []CreditPackage, credits int) (CreditPackage, error) {
	for _, p := range packages {
		if p.Credits == credits {
			return p, nil
		}
	}
	return CreditPackage{}, fmt.Errorf("%w: no credit package with %d credits", ErrValidation, credits)
}

// CheckoutStatus tracks whether a purchase has been granted.
type CheckoutStatus string

const (
	CheckoutStatusPending   CheckoutStatus = "pending"
	CheckoutStatusCompleted CheckoutStatus = "completed"
)

// Checkout is a purchase intent created at the payment gateway. The reference
// is the gateway's identifier and is used to deduplicate success callbacks.
type Checkout struct {
	Reference   string         `json:"reference" db:"reference"`
	UserEmail   string         `json:"user_email" db:"user_email"`
	Credits     int            `json:"credits" db:"credits"`
	PriceCents  int64          `json:"price_cents" db:"price_cents"`
	Status      CheckoutStatus `json:"status" db:"status"`
	CheckoutURL string         `json:"checkout_url" db:"checkout_url"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// CheckoutRequest is what the gateway needs to open a hosted checkout page.
type CheckoutRequest struct {
	UserEmail  string
	Credits    int
	PriceCents int64
}

// CheckoutSession is the gateway's answer to a checkout request.
type CheckoutSession struct {
	Reference string
	URL       string
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}
