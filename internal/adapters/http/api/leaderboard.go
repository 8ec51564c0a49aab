package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
)

const defaultLeaderboardLimit = 10

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, sport string, n int) ([]Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	errs     errorWriter
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, errs errorWriter, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, errs: errs, maxLimit: maxLimit}
}

type leaderboardResponse struct {
	Sport   string  `json:"sport,omitempty"`
	Entries []Entry `json:"entries"`
}

// HandleGetLeaderboard handles GET /v1/fmv/leaderboard?sport=S&limit=N.
// Only athletes who made their score public are listed.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n := defaultLeaderboardLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			h.errs.writeDomainError(w, r, eris.Wrap(ErrBadRequest, "limit must be a positive integer"))
			return
		}
		n = v
	}
	if n > h.maxLimit {
		h.errs.writeDomainError(w, r, eris.Wrapf(ErrBadRequest, "limit must not exceed %d", h.maxLimit))
		return
	}

	sport := q.Get("sport")
	entries, err := h.deps.Leaderboard(r.Context(), sport, n)
	if err != nil {
		h.errs.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{Sport: sport, Entries: entries})
}
