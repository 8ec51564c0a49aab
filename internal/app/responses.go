package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/reconsider"
	"github.com/okian/nilcore/pkg/logger"
	"github.com/okian/nilcore/pkg/metrics"
)

const outcomeReconsidered = "reconsidered"

// CreateResponse opens a deal invite or agency match for an athlete. An empty
// id is replaced with a random one.
func (s *Service) CreateResponse(ctx context.Context, id string, kind reconsider.Kind, athleteID, subjectID string) (*reconsider.Record, error) {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	rec, err := reconsider.New(id, kind, athleteID, subjectID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateResponse(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetResponse returns a stored response.
func (s *Service) GetResponse(ctx context.Context, id string) (*reconsider.Record, error) {
	return s.store.GetResponse(ctx, id)
}

// Respond accepts, declines or rejects an open response.
func (s *Service) Respond(ctx context.Context, id string, action reconsider.Action) (*reconsider.Record, error) {
	rec, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := reconsider.Respond(*rec, action, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.ApplyTransition(ctx, t); err != nil {
		return nil, err
	}
	return &t.Record, nil
}

// CanReconsider reports whether id may be reopened now, with the window countdown.
func (s *Service) CanReconsider(ctx context.Context, id string) (*reconsider.Eligibility, error) {
	rec, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	e := reconsider.CanReconsider(*rec, s.now())
	return &e, nil
}

// Reconsider reopens a declined or rejected response once, within 48 hours of
// the decision. Two concurrent attempts cannot both succeed: the loser gets a
// concurrent-update StateConflict from the store.
func (s *Service) Reconsider(ctx context.Context, id string) (*reconsider.Record, error) {
	rec, err := s.store.GetResponse(ctx, id)
	if err != nil {
		return nil, err
	}
	t, err := reconsider.Reconsider(*rec, s.now())
	if err == nil {
		err = s.store.ApplyTransition(ctx, t)
	}
	if err != nil {
		if reason, ok := faults.ReasonOf(err); ok {
			metrics.RecordReconsiderAttempt(string(reason))
			s.logger.Debug(ctx, "reconsideration refused",
				logger.String("response_id", id), logger.String("reason", string(reason)))
		}
		return nil, err
	}

	metrics.RecordReconsiderAttempt(outcomeReconsidered)
	s.logger.Info(ctx, "response reconsidered",
		logger.String("response_id", id),
		logger.String("kind", string(t.Record.Kind)),
		logger.String("status", string(t.NewStatus)),
	)
	return &t.Record, nil
}
