package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/nilcore/internal/adapters/repository"
	"github.com/okian/nilcore/internal/domain/advisor"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/model"
	"github.com/okian/nilcore/internal/domain/types"
	"github.com/okian/nilcore/pkg/logger"
	"github.com/okian/nilcore/pkg/metrics"
)

// initialAttempts bounds the retry when two first computations race.
const initialAttempts = 2

// CalculateFMV computes and persists an athlete's FMV. The store applies the
// admission predicate in the same statement as the write: a first computation
// is inserted only if absent, a manual recalculation increments the daily
// counter only while it is below the limit, and a scheduled refresh leaves the
// counter alone. A refused manual recalculation changes nothing.
//
// A scheduled refresh uses only signals.AthleteID: it recomputes from the
// signals stored with the record, so it cannot carry new input past the limit.
func (s *Service) CalculateFMV(ctx context.Context, signals fmv.Signals, trigger fmv.Trigger) (*fmv.Result, error) {
	start := time.Now()
	signals.AthleteID = strings.TrimSpace(signals.AthleteID)
	if signals.AthleteID == "" {
		return nil, faults.Invalid("athleteId", "required")
	}

	for attempt := 1; ; attempt++ {
		saved, err := s.calculateOnce(ctx, signals, trigger)
		if errors.Is(err, repository.ErrAlreadyExists) && attempt < initialAttempts {
			s.logger.Debug(ctx, "first computation raced, retrying against the stored record",
				logger.String("athlete_id", signals.AthleteID))
			continue
		}
		if err != nil {
			if errors.Is(err, faults.ErrRateLimited) {
				metrics.RecordFMVRateLimited()
			}
			return nil, err
		}

		s.cohort.UpdateScore(ctx, saved.AthleteID, saved.Sport, saved.Score, saved.IsPublic)
		metrics.UpdateCohortSize(s.cohort.Count(ctx, ""))
		applied := trigger
		if n := len(saved.History); n > 0 {
			applied = saved.History[n-1].Trigger
		}
		metrics.RecordFMVCalculation(string(applied), sinceMs(start))
		s.logger.Debug(ctx, "fmv calculated",
			logger.String("athlete_id", saved.AthleteID),
			logger.String("trigger", string(applied)),
			logger.Float64("score", saved.Score),
			logger.String("tier", string(saved.Tier)),
		)
		return saved, nil
	}
}

func (s *Service) calculateOnce(ctx context.Context, signals fmv.Signals, trigger fmv.Trigger) (*fmv.Result, error) {
	if trigger == fmv.TriggerScheduled {
		return s.refreshOnce(ctx, signals.AthleteID)
	}

	var (
		prior *fmv.Result
		peers []fmv.Peer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, err := s.store.GetFMV(gctx, signals.AthleteID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		prior = rec
		return nil
	})
	g.Go(func() error {
		peers = s.cohort.Sample(gctx, signals.Sport, s.cohortSampleSize)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := s.fmv.Calculate(fmv.Request{Signals: signals, Cohort: peers, Prior: prior, Trigger: trigger})
	if err != nil {
		return nil, err
	}

	mode := repository.WriteCounted
	if prior == nil {
		mode = repository.WriteInitial
	}
	return s.store.SaveFMV(ctx, *res, mode, s.limiter.Limit(), res.LastCalculatedAt)
}

// refreshOnce recomputes an existing record from its stored signals.
func (s *Service) refreshOnce(ctx context.Context, athleteID string) (*fmv.Result, error) {
	prior, err := s.store.GetFMV(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	signals := prior.Signals
	signals.AthleteID = prior.AthleteID
	if signals.Sport == "" {
		signals.Sport = prior.Sport
	}

	peers := s.cohort.Sample(ctx, signals.Sport, s.cohortSampleSize)
	res, err := s.fmv.Calculate(fmv.Request{Signals: signals, Cohort: peers, Prior: prior, Trigger: fmv.TriggerScheduled})
	if err != nil {
		return nil, err
	}
	return s.store.SaveFMV(ctx, *res, repository.WriteUncounted, s.limiter.Limit(), res.LastCalculatedAt)
}

// GetFMV returns the stored FMV record.
func (s *Service) GetFMV(ctx context.Context, athleteID string) (*fmv.Result, error) {
	return s.store.GetFMV(ctx, athleteID)
}

// SetVisibility publishes or hides an athlete's score on the leaderboard.
func (s *Service) SetVisibility(ctx context.Context, athleteID string, public bool) (*fmv.Result, error) {
	if err := s.store.SetFMVVisibility(ctx, athleteID, public); err != nil {
		return nil, err
	}
	if err := s.cohort.SetPublic(ctx, athleteID, public); err != nil {
		s.logger.Warn(ctx, "cohort index missing athlete", logger.String("athlete_id", athleteID), logger.Error(err))
	}
	return s.store.GetFMV(ctx, athleteID)
}

// Notifications derives the athlete's FMV notices as of now.
func (s *Service) Notifications(ctx context.Context, athleteID string) ([]advisor.Notification, error) {
	rec, err := s.store.GetFMV(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	return recordAdvised(s.advisor.ForFMV(*rec, s.now())), nil
}

// AcknowledgeNotifications moves the notified baseline to the current score,
// which clears a pending score-increase notice.
func (s *Service) AcknowledgeNotifications(ctx context.Context, athleteID string) (*fmv.Result, error) {
	rec, err := s.store.GetFMV(ctx, athleteID)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkFMVNotified(ctx, athleteID, rec.Score); err != nil {
		return nil, err
	}
	acked := fmv.MarkNotified(*rec)
	return &acked, nil
}

// Leaderboard returns the top n public athletes, optionally within one sport.
func (s *Service) Leaderboard(ctx context.Context, sport string, n int) ([]types.Entry, error) {
	return s.cohort.TopN(ctx, sport, n)
}

// Rank returns an athlete's position within their cohort, public or not.
func (s *Service) Rank(ctx context.Context, athleteID, sport string) (types.Entry, error) {
	return s.cohort.Rank(ctx, athleteID, sport)
}

// ScheduleRecompute queues a scheduled FMV refresh of a stored record. It
// reports false without error when the athlete already has a refresh pending.
func (s *Service) ScheduleRecompute(ctx context.Context, athleteID string) (bool, error) {
	athleteID = strings.TrimSpace(athleteID)
	if athleteID == "" {
		return false, faults.Invalid("athleteId", "required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return false, ErrNotStarted
	}
	if _, err := s.store.GetFMV(ctx, athleteID); err != nil {
		return false, err
	}

	if !s.deduper.Claim(ctx, athleteID) {
		metrics.RecordQueueDeduplicated()
		s.logger.Debug(ctx, "recompute already pending, skipping",
			logger.String("athlete_id", athleteID))
		return false, nil
	}

	job := model.RecomputeJob{ID: uuid.NewString(), Athlete: athleteID, EnqueuedAt: s.now()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Release(ctx, athleteID)
		return false, err
	}
	return true, nil
}

// RefreshStale queues a scheduled refresh for every record last computed at
// least staleAfter ago and returns how many were queued.
func (s *Service) RefreshStale(ctx context.Context) (int, error) {
	records, err := s.store.ListFMV(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	queued := 0
	for _, r := range records {
		if now.Sub(r.LastCalculatedAt) < s.staleAfter {
			continue
		}
		ok, err := s.ScheduleRecompute(ctx, r.AthleteID)
		if err != nil {
			return queued, err
		}
		if ok {
			queued++
		}
	}
	if queued > 0 {
		s.logger.Info(ctx, "stale fmv records queued for refresh",
			logger.Int("queued", queued),
			logger.Duration("stale_after", s.staleAfter))
	}
	return queued, nil
}

// refreshLoop runs RefreshStale every refreshInterval until ctx ends.
func (s *Service) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RefreshStale(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn(ctx, "stale refresh sweep failed", logger.Error(err))
			}
		}
	}
}

// handleRecompute runs one scheduled job and frees the athlete for the next one.
func (s *Service) handleRecompute(ctx context.Context, j model.RecomputeJob) error {
	defer s.deduper.Release(ctx, j.AthleteID())

	if _, err := s.CalculateFMV(ctx, fmv.Signals{AthleteID: j.AthleteID()}, fmv.TriggerScheduled); err != nil {
		s.logger.Warn(ctx, "scheduled recompute failed",
			logger.String("job_id", j.ID),
			logger.String("athlete_id", j.AthleteID()),
			logger.Error(err),
		)
		return err
	}
	s.logger.Debug(ctx, "scheduled recompute done",
		logger.String("job_id", j.ID),
		logger.String("athlete_id", j.AthleteID()),
		logger.Duration("queued_for", j.Wait(s.now())),
	)
	return nil
}
