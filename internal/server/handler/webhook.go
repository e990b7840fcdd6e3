package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/archnet/internal/billing"
	"github.com/sevigo/archnet/internal/core"
)

// PaymentCallbackHandler processes payment confirmations from the gateway.
type PaymentCallbackHandler struct {
	billing *billing.Service
	logger  *slog.Logger
}

// NewPaymentCallbackHandler creates a PaymentCallbackHandler.
func NewPaymentCallbackHandler(svc *billing.Service, logger *slog.Logger) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{billing: svc, logger: logger}
}

// Webhook processes signed Stripe notifications.
func (h *PaymentCallbackHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("%w: could not read webhook body: %w", core.ErrValidation, err))
		return
	}

	if err := h.billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.logger.Error("webhook rejected", "error", err)
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type completeResponse struct {
	Checkout *core.Checkout `json:"checkout"`
	Applied  bool           `json:"applied"`
}

// Complete confirms a checkout by reference. Replays answer 200 with
// applied=false.
func (h *PaymentCallbackHandler) Complete(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	checkout, applied, err := h.billing.OnPaymentSuccess(r.Context(), reference)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, completeResponse{Checkout: checkout, Applied: applied})
}
