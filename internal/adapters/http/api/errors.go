package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/nilcore/internal/adapters/repository"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/pkg/logger"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrBadBody    = errors.New("malformed request body")
)

// Error codes written in the body of every non-2xx response.
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	CodeTooMany       = "TOO_MANY_REQUESTS"
	CodeNotFound      = "NOT_FOUND"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeInternal      = "INTERNAL_ERROR"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// conflictCode turns a conflict reason such as "already-used" into ALREADY_USED.
func conflictCode(r faults.ConflictReason) string {
	return strings.ToUpper(strings.ReplaceAll(string(r), "-", "_"))
}

// retryAfter is the Retry-After value in whole seconds, at least one.
func retryAfter(resetAt, now time.Time) string {
	secs := math.Ceil(resetAt.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(int(secs))
}

// errorWriter is implemented by Server; handlers use it to report failures.
type errorWriter interface {
	writeDomainError(w http.ResponseWriter, r *http.Request, err error)
}

// writeDomainError maps err onto a status, code and details.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *faults.ValidationError
		rl *faults.RateLimitExceeded
		sc *faults.StateConflict
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code: CodeValidation, Message: ve.Error(),
			Details: map[string]any{"field": ve.Field, "reason": ve.Reason},
		})
	case errors.As(err, &rl):
		w.Header().Set("Retry-After", retryAfter(rl.ResetAt, s.now()))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Code: CodeRateLimited, Message: rl.Error(),
			Details: map[string]any{"limit": rl.Limit, "used": rl.Used, "resetAt": rl.ResetAt.UTC().Format(time.RFC3339)},
		})
	case errors.As(err, &sc):
		writeJSON(w, http.StatusConflict, errorResponse{
			Code: conflictCode(sc.Reason), Message: sc.Error(),
			Details: map[string]any{"reason": string(sc.Reason)},
		})
	case errors.Is(err, repository.ErrAlreadyExists):
		writeError(w, http.StatusConflict, CodeAlreadyExists, err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err)
	case errors.Is(err, repository.ErrInvalidLimit), errors.Is(err, ErrBadRequest), errors.Is(err, ErrBadBody):
		writeError(w, http.StatusBadRequest, CodeValidation, err)
	default:
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, CodeInternal, nil)
	}
}
