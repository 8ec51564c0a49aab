package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, athleteID, sport string) (Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
	errs errorWriter
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies, errs errorWriter) *RankHandler {
	return &RankHandler{deps: deps, errs: errs}
}

// HandleGetRank handles GET /v1/fmv/{athleteID}/rank?sport=S. The rank is
// among every athlete in the cohort, whether or not their score is public.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	entry, err := h.deps.Rank(r.Context(), chi.URLParam(r, "athleteID"), r.URL.Query().Get("sport"))
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
