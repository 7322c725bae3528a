package handler

import (
	"net/http"

	"github.com/Shivanand-hulikatti/votepay/internal/model"
	"github.com/go-chi/chi/v5"
)

// CreateEvent handles POST /events
// Creates a draft event owned by the calling organizer.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	event, err := h.Events.CreateEvent(r.Context(), id.UserID, req)
	if err != nil {
		writeServiceError(w, r, "create_event", err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Events.ListEvents(r.Context())
	if err != nil {
		writeServiceError(w, r, "list_events", err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Events.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get_event", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PATCH /events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req model.UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	event, err := h.Events.UpdateEvent(r.Context(), id, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, "update_event", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// AddCategory handles POST /events/{id}/categories
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req model.CreateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	c, err := h.Events.AddCategory(r.Context(), id, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, "add_category", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// AddContestant handles POST /categories/{id}/contestants
func (h *Handler) AddContestant(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req model.CreateContestantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	c, err := h.Events.AddContestant(r.Context(), id, chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, "add_contestant", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// DeleteContestant handles DELETE /contestants/{id}
func (h *Handler) DeleteContestant(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	if err := h.Events.DeleteContestant(r.Context(), id, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, "delete_contestant", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateEvent handles POST /events/{id}/activate
func (h *Handler) ActivateEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	event, err := h.Events.Activate(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "activate_event", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// EndEvent handles POST /events/{id}/end
func (h *Handler) EndEvent(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	event, err := h.Events.End(r.Context(), id, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "end_event", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}
