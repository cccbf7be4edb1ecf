// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mlorenc/birthday-notify/internal/model"
	"github.com/mlorenc/birthday-notify/internal/service"
)

// errorResponse is a standard JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

// SubjectHandler holds the HTTP handlers for the subject management API.
type SubjectHandler struct {
	svc *service.SubjectService
}

// NewSubjectHandler constructs a SubjectHandler.
func NewSubjectHandler(svc *service.SubjectService) *SubjectHandler {
	return &SubjectHandler{svc: svc}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// writeDomainError maps service-layer errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrDuplicateEvent):
		writeError(w, http.StatusConflict, "event already scheduled")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Create handles POST /subjects
// Registers a subject and provisions their first birthday event.
func (h *SubjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSubjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	subj, err := h.svc.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subj)
}

// Get handles GET /subjects/{id}
func (h *SubjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	subj, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subj)
}

// List handles GET /subjects
func (h *SubjectHandler) List(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subjects")
		return
	}
	// Return an empty array rather than null for better client compatibility.
	if subjects == nil {
		subjects = []model.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

// Delete handles DELETE /subjects/{id}
func (h *SubjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEvents handles GET /subjects/{id}/events
// Returns the subject's scheduled, completed, and failed events for audit.
func (h *SubjectHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if events == nil {
		events = []*model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *SubjectHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
