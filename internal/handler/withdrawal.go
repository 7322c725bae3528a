package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/go-chi/chi/v5"
)

// Balance handles GET /organizer/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	b, err := h.Withdrawals.Balance(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, "get_balance", err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ListWithdrawals handles GET /organizer/withdrawals
func (h *Handler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	list, err := h.Withdrawals.List(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, "list_withdrawals", err)
		return
	}
	if list == nil {
		list = []model.Withdrawal{}
	}
	writeJSON(w, http.StatusOK, list)
}

// RequestWithdrawal handles POST /organizer/withdrawals
// Rejected with the available balance in details when the amount is too high.
func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req model.WithdrawalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	wd, err := h.Withdrawals.Request(r.Context(), id.UserID, req)
	if err != nil {
		writeServiceError(w, r, "request_withdrawal", err)
		return
	}
	writeJSON(w, http.StatusCreated, wd)
}

// ProcessWithdrawal handles POST /admin/withdrawals/{id}/process
func (h *Handler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	wd, err := h.Withdrawals.Process(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "process_withdrawal", err)
		return
	}
	writeJSON(w, http.StatusOK, wd)
}
