package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/nilcore/internal/domain/advisor"
	"github.com/okian/nilcore/internal/domain/compliance"
)

// ComplianceDependencies defines the compliance operations the API needs.
type ComplianceDependencies interface {
	ScoreCompliance(ctx context.Context, deal compliance.Deal, athlete compliance.AthleteContext, version string) (*compliance.Result, error)
	GetCompliance(ctx context.Context, dealID string) (*compliance.Result, error)
	OverrideCompliance(ctx context.Context, dealID string, o compliance.Override) (*compliance.Result, error)
	ComplianceNotifications(ctx context.Context, dealID string) ([]advisor.Notification, error)
}

// ComplianceHandler serves /v1/compliance.
type ComplianceHandler struct {
	deps ComplianceDependencies
	errs errorWriter
}

// NewComplianceHandler creates a new compliance handler.
func NewComplianceHandler(deps ComplianceDependencies, errs errorWriter) *ComplianceHandler {
	return &ComplianceHandler{deps: deps, errs: errs}
}

// scoreRequest mirrors the OpenAPI schema for POST /v1/compliance/score.
type scoreRequest struct {
	Deal         compliance.Deal           `json:"deal"`
	Athlete      compliance.AthleteContext `json:"athlete"`
	ScoreVersion string                    `json:"scoreVersion,omitempty"`
}

type overrideRequest struct {
	OfficerID     string  `json:"officerId"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

type notificationsResponse struct {
	Notifications []advisor.Notification `json:"notifications"`
}

// HandleScore handles POST /v1/compliance/score.
func (h *ComplianceHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	res, err := h.deps.ScoreCompliance(r.Context(), req.Deal, req.Athlete, req.ScoreVersion)
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleGet handles GET /v1/compliance/{dealID}.
func (h *ComplianceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	res, err := h.deps.GetCompliance(r.Context(), chi.URLParam(r, "dealID"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleOverride handles POST /v1/compliance/{dealID}/override.
func (h *ComplianceHandler) HandleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	res, err := h.deps.OverrideCompliance(r.Context(), chi.URLParam(r, "dealID"), compliance.Override{
		OfficerID:     req.OfficerID,
		Score:         req.Score,
		Justification: req.Justification,
	})
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleNotifications handles GET /v1/compliance/{dealID}/notifications.
func (h *ComplianceHandler) HandleNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := h.deps.ComplianceNotifications(r.Context(), chi.URLParam(r, "dealID"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{Notifications: ns})
}
