package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/Shivanand-hulikatti/votepay/internal/provider"
)

const maxWebhookBody = 1 << 20

// CardWebhook handles POST /webhooks/card
func (h *Handler) CardWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, h.CardIngestor, "Stripe-Signature")
}

// MobileMoneyWebhook handles POST /webhooks/mobile-money
func (h *Handler) MobileMoneyWebhook(w http.ResponseWriter, r *http.Request) {
	h.webhook(w, r, h.MobileMoneyIngestor, "x-paystack-signature")
}

// webhook passes the raw body through untouched; signatures are computed
// over the exact bytes the provider sent. Every verified delivery is
// acknowledged with 200 so the provider stops retrying.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request, in ingestor, signatureHeader string) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	if err := in.Ingest(r.Context(), payload, r.Header.Get(signatureHeader)); err != nil {
		if errors.Is(err, provider.ErrSignatureInvalid) {
			writeServiceError(w, r, "webhook", err)
			return
		}
		h.log.ErrorContext(r.Context(), "webhook ingest failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
