package handler

import (
	"errors"
	"net/http"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/service"
	"github.com/go-chi/chi/v5"
)

// CreateCardPayment handles POST /payments/card/create
func (h *Handler) CreateCardPayment(w http.ResponseWriter, r *http.Request) {
	h.createPayment(w, r, model.MethodCard)
}

// InitializeMobileMoney handles POST /payments/mobile-money/initialize
func (h *Handler) InitializeMobileMoney(w http.ResponseWriter, r *http.Request) {
	h.createPayment(w, r, model.MethodMobileMoney)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request, method model.PaymentMethod) {
	id, _ := identityFrom(r.Context())

	var req model.CreatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Email == "" {
		req.Email = id.Email
	}

	intent, err := h.Payments.CreateIntent(r.Context(), id.UserID, method, req)
	if err != nil {
		writeServiceError(w, r, "create_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, intent)
}

// VerifyPayment handles GET /payments/verify/{id}
// Re-checks a pending payment with its provider and commits the vote when
// the provider reports success.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	v, err := h.Verifications.Verify(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeServiceError(w, r, "verify_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// CancelPayment handles POST /payments/cancel/{id}
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	p, err := h.Payments.Cancel(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeServiceError(w, r, "cancel_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CheckEligibility handles POST /payments/eligibility
// A pre-flight check with no side effects.
func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	var req model.EligibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	e, err := h.Eligibility.Check(r.Context(), req.ContestantID, req.Amount, h.now())
	if err != nil {
		writeServiceError(w, r, "check_eligibility", err)
		return
	}
	writeJSON(w, http.StatusOK, model.EligibilityResult{
		Eligible:     true,
		EventID:      e.Event.ID,
		CategoryID:   e.Category.ID,
		ContestantID: e.Contestant.ID,
		VotePrice:    e.Event.VotePrice,
		Currency:     e.Event.Currency,
	})
}

// CreateVote handles POST /votes
// Returns 201 for a new vote and 200 with the existing vote when the payment
// was already committed.
func (h *Handler) CreateVote(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req model.CreateVoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	v, err := h.Votes.CommitForVoter(r.Context(), req.PaymentID, id.UserID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, v)
	case errors.Is(err, service.ErrAlreadyCommitted):
		writeJSON(w, http.StatusOK, v)
	default:
		writeServiceError(w, r, "create_vote", err)
	}
}

// PublicSettings handles GET /payments/settings
// Exposes the commission rate and which providers accept payments.
func (h *Handler) PublicSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, r, "get_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings handles PUT /admin/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s, err := h.Settings.Update(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "update_settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
