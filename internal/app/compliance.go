package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/nilcore/internal/adapters/repository"
	"github.com/okian/nilcore/internal/domain/advisor"
	"github.com/okian/nilcore/internal/domain/compliance"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/pkg/logger"
	"github.com/okian/nilcore/pkg/metrics"
)

// ScoreCompliance scores one deal version and stores the immutable result.
// The version and identifiers are checked before anything is fetched. The
// athlete's FMV estimate, the prior version of the deal and a contract
// analysis are fetched concurrently when the request does not carry them.
// Scoring the same deal id twice fails with repository.ErrAlreadyExists.
func (s *Service) ScoreCompliance(ctx context.Context, deal compliance.Deal, athlete compliance.AthleteContext, version string) (*compliance.Result, error) {
	start := time.Now()
	if version == "" {
		version = s.scoreVersion
	}
	if _, ok := s.compliance.Version(version); !ok {
		metrics.RecordComplianceValidationError()
		return nil, faults.Invalid("scoreVersion", fmt.Sprintf("unknown version %q", version))
	}
	if err := compliance.ValidateIdentity(deal, athlete); err != nil {
		metrics.RecordComplianceValidationError()
		return nil, err
	}
	athleteID := strings.TrimSpace(deal.AthleteID)

	var (
		estimate *fmv.DealValue
		analysed *compliance.DocumentAnalysis
	)
	g, gctx := errgroup.WithContext(ctx)
	if athlete.FMVEstimate == nil && athleteID != "" {
		g.Go(func() error {
			rec, err := s.store.GetFMV(gctx, athleteID)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			estimate = &rec.EstimatedDealValue
			return nil
		})
	}
	if deal.PriorDealID != "" {
		g.Go(func() error {
			prior, err := s.store.GetCompliance(gctx, deal.PriorDealID)
			if errors.Is(err, repository.ErrNotFound) {
				return faults.Invalid("priorDealId", "unknown deal "+deal.PriorDealID)
			}
			if err != nil {
				return err
			}
			if prior.AthleteID != athleteID {
				return faults.Invalid("priorDealId", "belongs to a different athlete")
			}
			return nil
		})
	}
	if deal.Analysis == nil && strings.TrimSpace(deal.ContractText) != "" && s.analyzer != nil {
		g.Go(func() error {
			a, err := s.analyzer.Analyze(gctx, deal)
			if err != nil {
				s.logger.Warn(gctx, "contract analysis unavailable, scoring without it",
					logger.String("deal_id", deal.ID), logger.Error(err))
				return nil
			}
			analysed = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, faults.ErrValidation) {
			metrics.RecordComplianceValidationError()
		}
		return nil, err
	}
	if estimate != nil {
		athlete.FMVEstimate = estimate
	}
	if analysed != nil {
		deal.Analysis = analysed
	}

	res, err := s.compliance.Score(deal, athlete, version)
	if err != nil {
		metrics.RecordComplianceValidationError()
		return nil, err
	}
	if err := s.store.InsertCompliance(ctx, *res); err != nil {
		return nil, err
	}

	for _, d := range res.FaultedDimensions {
		metrics.RecordScorerFault(string(d))
		s.logger.Warn(ctx, "dimension scorer faulted",
			logger.String("deal_id", res.DealID), logger.String("dimension", string(d)))
	}
	metrics.RecordComplianceScored(string(res.RiskTier), res.CriticalForced, sinceMs(start))
	s.logger.Debug(ctx, "deal scored",
		logger.String("deal_id", res.DealID),
		logger.Float64("score", res.TotalScore),
		logger.String("tier", string(res.RiskTier)),
	)
	return res, nil
}

// GetCompliance returns the stored result for dealID, override included.
func (s *Service) GetCompliance(ctx context.Context, dealID string) (*compliance.Result, error) {
	return s.store.GetCompliance(ctx, dealID)
}

// OverrideCompliance records an officer override beside the computed verdict.
// An earlier override stays on file in the result's OverrideHistory.
func (s *Service) OverrideCompliance(ctx context.Context, dealID string, o compliance.Override) (*compliance.Result, error) {
	cur, err := s.store.GetCompliance(ctx, dealID)
	if err != nil {
		return nil, err
	}
	next, err := s.compliance.ApplyOverride(*cur, o)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetOverride(ctx, dealID, *next.Override); err != nil {
		return nil, err
	}
	metrics.RecordComplianceOverride()
	s.logger.Info(ctx, "compliance override recorded",
		logger.String("deal_id", dealID),
		logger.String("officer_id", next.Override.OfficerID),
		logger.String("computed_tier", string(next.RiskTier)),
		logger.String("override_tier", string(next.Override.Tier)),
		logger.Int("superseded", len(next.OverrideHistory)),
	)
	// The store decides what was superseded; return what it holds.
	return s.store.GetCompliance(ctx, dealID)
}

// ComplianceNotifications derives the officer and athlete notices for dealID.
func (s *Service) ComplianceNotifications(ctx context.Context, dealID string) ([]advisor.Notification, error) {
	res, err := s.store.GetCompliance(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return recordAdvised(s.advisor.ForCompliance(*res)), nil
}

func recordAdvised(ns []advisor.Notification) []advisor.Notification {
	for _, n := range ns {
		metrics.RecordNotification(n.Type)
	}
	return ns
}
