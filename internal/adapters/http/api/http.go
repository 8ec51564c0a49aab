// Package api exposes the decision engines over a chi REST router.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/types"
	"github.com/okian/nilcore/pkg/logger"
	"github.com/okian/nilcore/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	ComplianceDependencies
	FMVDependencies
	LeaderboardDependencies
	RankDependencies
	ResponseDependencies
	StatsProvider
	HealthChecker
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	complianceHandler  *ComplianceHandler
	fmvHandler         *FMVHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	responsesHandler   *ResponsesHandler

	corsOrigins []string
	ratePerSec  float64
	rateBurst   int
	maxLimit    int
	clock       clock.Clock
	logger      logger.Logger
	mounts      []func(chi.Router)
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		corsOrigins: []string{"*"},
		ratePerSec:  20,
		rateBurst:   40,
		maxLimit:    100,
		clock:       clock.System{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}

	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	s.complianceHandler = NewComplianceHandler(deps, s)
	s.fmvHandler = NewFMVHandler(deps, s)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s, s.maxLimit)
	s.rankHandler = NewRankHandler(deps, s)
	s.responsesHandler = NewResponsesHandler(deps, s)
	return s
}

// Router builds the chi router with middleware and every route.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Retry-After", "X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	for _, mount := range s.mounts {
		mount(r)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(NewIPRateLimiter(ctx, s.ratePerSec, s.rateBurst).Middleware)

		r.Route("/compliance", func(r chi.Router) {
			r.Post("/score", s.complianceHandler.HandleScore)
			r.Get("/{dealID}", s.complianceHandler.HandleGet)
			r.Post("/{dealID}/override", s.complianceHandler.HandleOverride)
			r.Get("/{dealID}/notifications", s.complianceHandler.HandleNotifications)
		})

		r.Route("/fmv", func(r chi.Router) {
			r.Post("/calculate", s.fmvHandler.HandleCalculate)
			r.Get("/leaderboard", s.leaderboardHandler.HandleGetLeaderboard)
			r.Get("/{athleteID}", s.fmvHandler.HandleGet)
			r.Get("/{athleteID}/rank", s.rankHandler.HandleGetRank)
			r.Put("/{athleteID}/visibility", s.fmvHandler.HandleVisibility)
			r.Get("/{athleteID}/notifications", s.fmvHandler.HandleNotifications)
			r.Post("/{athleteID}/notifications/ack", s.fmvHandler.HandleAcknowledge)
		})

		r.Route("/responses", func(r chi.Router) {
			r.Post("/", s.responsesHandler.HandleCreate)
			r.Get("/{id}", s.responsesHandler.HandleGet)
			r.Post("/{id}/respond", s.responsesHandler.HandleRespond)
			r.Get("/{id}/reconsider", s.responsesHandler.HandleEligibility)
			r.Post("/{id}/reconsider", s.responsesHandler.HandleReconsider)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a single JSON document of at most maxBodyBytes into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return eris.Wrap(ErrBadBody, "empty body")
		}
		return eris.Wrap(ErrBadBody, err.Error())
	}
	return nil
}

// now is the server's notion of the current time, used for Retry-After.
func (s *Server) now() time.Time { return s.clock.Now() }
