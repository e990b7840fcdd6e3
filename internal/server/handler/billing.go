package handler

import (
	"log/slog"
	"net/http"

	"github.com/sevigo/archnet/internal/billing"
)

// BillingHandler serves the credit price list and starts checkouts.
type BillingHandler struct {
	billing *billing.Service
	logger  *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(svc *billing.Service, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{billing: svc, logger: logger}
}

// Packages lists the credit packages.
func (h *BillingHandler) Packages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"packages": h.billing.Packages()})
}

type checkoutRequest struct {
	Credits int `json:"credits" validate:"required,gt=0"`
}

// Checkout opens a hosted checkout for the acting user.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())

	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	checkout, err := h.billing.CreateCheckout(r.Context(), email, req.Credits)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkout)
}
