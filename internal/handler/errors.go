package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/Shivanand-hulikatti/votepay/internal/provider"
	"github.com/Shivanand-hulikatti/votepay/internal/repository"
	"github.com/Shivanand-hulikatti/votepay/internal/service"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// writeServiceError maps a service-layer error onto a status and envelope.
// Unexpected errors are logged and reported without internals.
func writeServiceError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var pe *service.PreconditionError
	switch {
	case errors.Is(err, service.ErrValidation):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Reason: "ValidationError"})
	case errors.As(err, &pe):
		status := http.StatusBadRequest
		switch pe.Reason {
		case service.ReasonNotOwner:
			status = http.StatusForbidden
		case service.ReasonNotFound:
			status = http.StatusNotFound
		}
		writeJSON(w, status, model.ErrorResponse{Error: pe.Error(), Reason: string(pe.Reason), Details: pe.Details})
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, model.ErrorResponse{Error: "resource not found", Reason: string(service.ReasonNotFound)})
	case errors.Is(err, provider.ErrSignatureInvalid):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid signature", Reason: "SignatureInvalid"})
	case errors.Is(err, provider.ErrProvider):
		slog.Default().WarnContext(r.Context(), "payment provider failure",
			"operation", operation, "request_id", chimiddleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusBadGateway, model.ErrorResponse{Error: "payment provider unavailable, retry later", Reason: "ProviderError"})
	default:
		slog.Default().ErrorContext(r.Context(), "http operation failed",
			"operation", operation, "request_id", chimiddleware.GetReqID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
