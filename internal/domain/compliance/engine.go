// Package compliance scores NIL deals across six weighted dimensions and
// classifies them into green, yellow or red risk tiers with reason codes and
// remediation guidance.
//
// The engine is deterministic for a fixed score version and never performs
// I/O. A fault inside one dimension is isolated: that dimension scores zero
// and carries a SCORER_FAULT flag while the rest of the verdict is produced.
package compliance

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/okian/nilcore/internal/domain/clock"
	"github.com/okian/nilcore/internal/domain/faults"
	"github.com/okian/nilcore/internal/domain/types"
)

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source for ComputedAt and overrides.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithScorer replaces the scorer for one dimension.
func WithScorer(id DimensionID, s Scorer) Option {
	return func(e *Engine) {
		e.scorers[id] = s
	}
}

// WithVersion registers an additional score version.
func WithVersion(v ScoreVersion) Option {
	return func(e *Engine) {
		if v.Name != "" {
			e.versions[v.Name] = v
		}
	}
}

// Engine orchestrates the dimension scorers.
type Engine struct {
	versions map[string]ScoreVersion
	scorers  map[DimensionID]Scorer
	clock    clock.Clock
}

// NewEngine returns an engine with the v1 table and default scorers.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		versions: map[string]ScoreVersion{V1.Name: V1},
		scorers:  DefaultScorers(),
		clock:    clock.System{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Version returns a registered score version.
func (e *Engine) Version(name string) (ScoreVersion, bool) {
	if name == "" {
		name = DefaultVersion
	}
	v, ok := e.versions[name]
	return v, ok
}

// Score computes the verdict for deal. It fails only with a ValidationError
// for missing or malformed required input; nothing is computed in that case.
func (e *Engine) Score(deal Deal, athlete AthleteContext, version string) (*Result, error) {
	v, ok := e.Version(version)
	if !ok {
		return nil, faults.Invalid("scoreVersion", fmt.Sprintf("unknown version %q", version))
	}
	deal, athlete, err := validate(deal, athlete)
	if err != nil {
		return nil, err
	}

	in := Input{Deal: deal, Athlete: athlete, Rules: RulesFor(athlete.State)}

	res := &Result{
		DealID:       deal.ID,
		AthleteID:    deal.AthleteID,
		PriorDealID:  deal.PriorDealID,
		ScoreVersion: v.Name,
		ComputedAt:   e.clock.Now(),
	}

	var total float64
	var critical bool
	for _, spec := range v.Dimensions {
		dr := e.scoreDimension(spec, in)
		if dr.Faulted {
			res.FaultedDimensions = append(res.FaultedDimensions, spec.ID)
		}
		critical = critical || dr.Critical()
		total += dr.Contribution
		res.Dimensions = append(res.Dimensions, dr)
	}

	res.TotalScore = types.Round2(types.Clamp(total, 0, 100))
	res.CriticalForced = critical
	res.RiskTier = v.Classify(res.TotalScore, critical)
	res.CanBeApproved = !critical
	res.ReasonCodes, res.FixRecommendations = explain(v, res.Dimensions, critical)
	return res, nil
}

// scoreDimension runs one scorer, converting an error or panic into a zero score.
func (e *Engine) scoreDimension(spec DimensionSpec, in Input) DimensionResult {
	dr := DimensionResult{Dimension: spec.ID, MaxScore: spec.Max, Weight: spec.Weight, Notes: []string{}, Flags: []Flag{}}

	out, err := e.runScorer(spec.ID, in)
	if err == nil && (math.IsNaN(out.Raw) || math.IsInf(out.Raw, 0)) {
		err = &faults.ScorerFault{Dimension: string(spec.ID), Cause: fmt.Errorf("non-finite score %v", out.Raw)}
	}
	if err != nil {
		dr.Faulted = true
		dr.Notes = append(dr.Notes, err.Error())
		dr.Flags = append(dr.Flags, Flag{Code: CodeScorerFault, Severity: SeverityHigh, Message: "dimension could not be scored and was set to zero"})
		return dr
	}

	dr.RawScore = types.Round2(types.Clamp(out.Raw, 0, spec.Max))
	if spec.Max > 0 {
		dr.Score = types.Round2(dr.RawScore / spec.Max * 100)
	}
	dr.Contribution = types.Round2(dr.Score * spec.Weight)
	dr.Notes = append(dr.Notes, out.Notes...)
	dr.Flags = append(dr.Flags, out.Flags...)
	return dr
}

func (e *Engine) runScorer(id DimensionID, in Input) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &faults.ScorerFault{Dimension: string(id), Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	s, ok := e.scorers[id]
	if !ok || s == nil {
		return Outcome{}, &faults.ScorerFault{Dimension: string(id), Cause: fmt.Errorf("no scorer registered")}
	}
	out, err = s.Score(in)
	if err != nil {
		return Outcome{}, &faults.ScorerFault{Dimension: string(id), Cause: err}
	}
	return out, nil
}

type rankedFlag struct {
	flag      Flag
	dimension DimensionID
	weight    float64
}

// explain orders findings by severity, then dimension weight, then code.
func explain(v ScoreVersion, dims []DimensionResult, critical bool) ([]string, []FixRecommendation) {
	var ranked []rankedFlag
	for _, d := range dims {
		for _, f := range d.Flags {
			if f.Severity.Level() < SeverityLow.Level() {
				continue
			}
			ranked = append(ranked, rankedFlag{flag: f, dimension: d.Dimension, weight: v.Weight(d.Dimension)})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.flag.Severity.Level() != b.flag.Severity.Level() {
			return a.flag.Severity.Level() > b.flag.Severity.Level()
		}
		if a.weight != b.weight {
			return a.weight > b.weight
		}
		return a.flag.Code < b.flag.Code
	})

	codes := []string{}
	recs := []FixRecommendation{}
	if critical {
		codes = append(codes, CodeCriticalForcedRed)
	}
	seen := make(map[string]bool)
	for _, r := range ranked {
		code := r.flag.Code
		if code == CodeScorerFault {
			code = CodeScorerFault + ":" + strings.ToUpper(string(r.dimension))
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
		recs = append(recs, FixRecommendation{
			Priority:  r.flag.Severity.Priority(),
			Dimension: r.dimension,
			Code:      code,
			Issue:     r.flag.Message,
			Action:    ActionFor(r.flag.Code),
		})
	}
	return codes, recs
}

// validate checks required identifiers and enum fields and returns
// normalized copies of the inputs.
// ValidateIdentity checks the identifiers every scoring request must carry:
// the deal id, the deal's athlete id and a matching context athlete id.
func ValidateIdentity(d Deal, a AthleteContext) error {
	dealAthlete := strings.TrimSpace(d.AthleteID)
	contextAthlete := strings.TrimSpace(a.AthleteID)
	switch {
	case strings.TrimSpace(d.ID) == "":
		return faults.Invalid("deal.id", "required")
	case dealAthlete == "":
		return faults.Invalid("deal.athleteId", "required")
	case contextAthlete == "":
		return faults.Invalid("athlete.athleteId", "required")
	case contextAthlete != dealAthlete:
		return faults.Invalid("athlete.athleteId", "does not match deal.athleteId")
	}
	return nil
}

func validate(d Deal, a AthleteContext) (Deal, AthleteContext, error) {
	if err := ValidateIdentity(d, a); err != nil {
		return d, a, err
	}
	d.ID = strings.TrimSpace(d.ID)
	d.AthleteID = strings.TrimSpace(d.AthleteID)
	a.AthleteID = strings.TrimSpace(a.AthleteID)

	if d.Compensation.IsNegative() {
		return d, a, faults.Invalid("deal.compensation", "must not be negative")
	}

	t, ok := normalizeDealType(d.Type)
	if !ok {
		return d, a, faults.Invalid("deal.dealType", fmt.Sprintf("unknown deal type %q", d.Type))
	}
	d.Type = t

	switch Role(types.Normalize(string(a.Role))) {
	case RoleHighSchool:
		a.Role = RoleHighSchool
	case RoleCollege, "":
		a.Role = RoleCollege
	default:
		return d, a, faults.Invalid("athlete.role", fmt.Sprintf("unknown role %q", a.Role))
	}

	switch c := ConsentStatus(types.Normalize(string(a.GuardianConsent))); c {
	case "":
		a.GuardianConsent = ConsentNone
	case ConsentNone, ConsentPending, ConsentApproved, ConsentDenied:
		a.GuardianConsent = c
	default:
		return d, a, faults.Invalid("athlete.guardianConsent", fmt.Sprintf("unknown consent status %q", a.GuardianConsent))
	}

	if d.Analysis != nil {
		if d.Analysis.Score < 0 || d.Analysis.Score > 100 || math.IsNaN(d.Analysis.Score) {
			return d, a, faults.Invalid("deal.analysis.score", "must be within 0..100")
		}
		cp := *d.Analysis
		d.Analysis = &cp
	}
	if a.FMVEstimate != nil {
		cp := *a.FMVEstimate
		a.FMVEstimate = &cp
	}
	return d, a, nil
}
