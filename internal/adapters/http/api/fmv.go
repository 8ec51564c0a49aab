package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/domain/advisor"
	"github.com/okian/nilcore/internal/domain/fmv"
)

// FMVDependencies defines the FMV operations the API needs.
type FMVDependencies interface {
	CalculateFMV(ctx context.Context, signals fmv.Signals, trigger fmv.Trigger) (*fmv.Result, error)
	GetFMV(ctx context.Context, athleteID string) (*fmv.Result, error)
	SetVisibility(ctx context.Context, athleteID string, public bool) (*fmv.Result, error)
	Notifications(ctx context.Context, athleteID string) ([]advisor.Notification, error)
	AcknowledgeNotifications(ctx context.Context, athleteID string) (*fmv.Result, error)
}

// FMVHandler serves /v1/fmv.
type FMVHandler struct {
	deps FMVDependencies
	errs errorWriter
}

// NewFMVHandler creates a new FMV handler.
func NewFMVHandler(deps FMVDependencies, errs errorWriter) *FMVHandler {
	return &FMVHandler{deps: deps, errs: errs}
}

type visibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

// HandleCalculate handles POST /v1/fmv/calculate. The first call for an
// athlete is free; later calls count against the daily allowance.
func (h *FMVHandler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	var signals fmv.Signals
	if err := decodeJSON(w, r, &signals); err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	res, err := h.deps.CalculateFMV(r.Context(), signals, fmv.TriggerManual)
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGet handles GET /v1/fmv/{athleteID}.
func (h *FMVHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.GetFMV(r.Context(), chi.URLParam(r, "athleteID"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleVisibility handles PUT /v1/fmv/{athleteID}/visibility.
func (h *FMVHandler) HandleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	if req.IsPublic == nil {
		h.errs.writeDomainError(w, r, eris.Wrap(ErrBadRequest, "isPublic is required"))
		return
	}
	res, err := h.deps.SetVisibility(r.Context(), chi.URLParam(r, "athleteID"), *req.IsPublic)
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleNotifications handles GET /v1/fmv/{athleteID}/notifications.
func (h *FMVHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.deps.Notifications(r.Context(), chi.URLParam(r, "athleteID"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: ns})
}

// HandleAcknowledge handles POST /v1/fmv/{athleteID}/notifications/ack.
func (h *FMVHandler) HandleAcknowledge(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.AcknowledgeNotifications(r.Context(), chi.URLParam(r, "athleteID"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
