package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/alert"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/constants"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/store"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/middleware"
)

// AlertsHandler handles alert listing and lifecycle endpoints.
type AlertsHandler struct {
	svc    *alert.Service
	alerts store.AlertStore
}

// NewAlertsHandler creates a new alerts handler.
func NewAlertsHandler(svc *alert.Service, alerts store.AlertStore) *AlertsHandler {
	return &AlertsHandler{svc: svc, alerts: alerts}
}

// List returns the newest alerts.
func (h *AlertsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := constants.DefaultAlertListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, constants.MaxAlertListLimit)
	}

	out, err := h.alerts.ListRecentAlerts(r.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"alerts": out, "count": len(out)})
}

// Get returns one alert by id.
func (h *AlertsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.alerts.GetAlert(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// Assign hands a pending alert to a field officer.
func (h *AlertsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Assignee string `json:"assignee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if body.Assignee == "" {
		respondError(w, http.StatusBadRequest, "assignee is required")
		return
	}
	h.transition(w, r, alert.TransitionAssign, body.Assignee)
}

// Reject dismisses a pending alert.
func (h *AlertsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, alert.TransitionReject, "")
}

// Complete resolves an assigned alert.
func (h *AlertsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, alert.TransitionComplete, "")
}

func (h *AlertsHandler) transition(w http.ResponseWriter, r *http.Request, action alert.Transition, assignee string) {
	role := middleware.RoleFromContext(r.Context())
	a, err := h.svc.Transition(r.Context(), chi.URLParam(r, "id"), action, role, assignee)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}
