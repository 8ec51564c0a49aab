package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/nilcore/internal/domain/reconsider"
)

// ResponseDependencies defines the invite and match operations the API needs.
type ResponseDependencies interface {
	CreateResponse(ctx context.Context, id string, kind reconsider.Kind, athleteID, subjectID string) (*reconsider.Record, error)
	GetResponse(ctx context.Context, id string) (*reconsider.Record, error)
	Respond(ctx context.Context, id string, action reconsider.Action) (*reconsider.Record, error)
	CanReconsider(ctx context.Context, id string) (*reconsider.Eligibility, error)
	Reconsider(ctx context.Context, id string) (*reconsider.Record, error)
}

// ResponsesHandler serves /v1/responses.
type ResponsesHandler struct {
	deps ResponseDependencies
	errs errorWriter
}

// NewResponsesHandler creates a new responses handler.
func NewResponsesHandler(deps ResponseDependencies, errs errorWriter) *ResponsesHandler {
	return &ResponsesHandler{deps: deps, errs: errs}
}

type createResponseRequest struct {
	ID        string          `json:"id,omitempty"`
	Kind      reconsider.Kind `json:"kind"`
	AthleteID string          `json:"athleteId"`
	SubjectID string          `json:"subjectId"`
}

type respondRequest struct {
	Action reconsider.Action `json:"action"`
}

// HandleCreate handles POST /v1/responses.
func (h *ResponsesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	rec, err := h.deps.CreateResponse(r.Context(), req.ID, req.Kind, req.AthleteID, req.SubjectID)
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleGet handles GET /v1/responses/{id}.
func (h *ResponsesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.GetResponse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleRespond handles POST /v1/responses/{id}/respond.
func (h *ResponsesHandler) HandleRespond(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	rec, err := h.deps.Respond(r.Context(), chi.URLParam(r, "id"), req.Action)
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleEligibility handles GET /v1/responses/{id}/reconsider: whether the
// response can be reopened now, and how long the window has left.
func (h *ResponsesHandler) HandleEligibility(w http.ResponseWriter, r *http.Request) {
	e, err := h.deps.CanReconsider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// HandleReconsider handles POST /v1/responses/{id}/reconsider.
func (h *ResponsesHandler) HandleReconsider(w http.ResponseWriter, r *http.Request) {
	rec, err := h.deps.Reconsider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
