package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/nilcore/internal/domain/fmv"
	"github.com/okian/nilcore/internal/domain/types"
)

// DealType classifies what the athlete is paid to do.
type DealType string

// Deal types.
const (
	DealSocialMedia   DealType = "social_media"
	DealEndorsement   DealType = "endorsement"
	DealEvent         DealType = "event"
	DealProductLaunch DealType = "product_launch"
	DealAppearance    DealType = "appearance"
	DealOther         DealType = "other"
)

// Role is the athlete's competitive level.
type Role string

// Roles.
const (
	RoleHighSchool Role = "hs_student"
	RoleCollege    Role = "college_athlete"
)

// ConsentStatus is the guardian consent state for a minor.
type ConsentStatus string

// Consent states.
const (
	ConsentNone     ConsentStatus = "none"
	ConsentPending  ConsentStatus = "pending"
	ConsentApproved ConsentStatus = "approved"
	ConsentDenied   ConsentStatus = "denied"
)

// Severity grades a flag.
type Severity string

// Severities, least to most severe.
const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Level orders severities; higher is worse.
func (s Severity) Level() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Priority maps a severity to a recommendation priority.
func (s Severity) Priority() types.Priority {
	switch s {
	case SeverityCritical:
		return types.PriorityCritical
	case SeverityHigh:
		return types.PriorityHigh
	case SeverityMedium:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

// DimensionID names a scoring dimension.
type DimensionID string

// Dimensions.
const (
	PolicyFit       DimensionID = "policy_fit"
	DocumentHygiene DimensionID = "document_hygiene"
	FMVVerification DimensionID = "fmv_verification"
	TaxReadiness    DimensionID = "tax_readiness"
	BrandSafety     DimensionID = "brand_safety"
	GuardianConsent DimensionID = "guardian_consent"
)

// Tier is the compliance risk tier.
type Tier string

// Risk tiers.
const (
	TierGreen  Tier = "green"
	TierYellow Tier = "yellow"
	TierRed    Tier = "red"
)

// Flag is a machine-readable finding raised by a dimension.
type Flag struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Critical reports whether the flag forces the red tier.
func (f Flag) Critical() bool { return f.Severity == SeverityCritical }

// DocumentAnalysis is an optional external read of the contract, bounded to 0..100.
type DocumentAnalysis struct {
	Score float64 `json:"score"`
	Notes string  `json:"notes,omitempty"`
}

// Deal is one version of a proposed or executed NIL deal.
type Deal struct {
	ID                 string            `json:"id"`
	AthleteID          string            `json:"athleteId"`
	PriorDealID        string            `json:"priorDealId,omitempty"`
	ThirdPartyName     string            `json:"thirdPartyName"`
	ThirdPartyCategory string            `json:"thirdPartyCategory,omitempty"`
	Type               DealType          `json:"dealType"`
	Compensation       decimal.Decimal   `json:"compensation"`
	Deliverables       string            `json:"deliverables,omitempty"`
	ContractText       string            `json:"contractText,omitempty"`
	ContractRef        string            `json:"contractRef,omitempty"`
	SchoolAffiliated   bool              `json:"schoolAffiliated"`
	BoosterConnected   bool              `json:"boosterConnected"`
	PerformanceBased   bool              `json:"performanceBased"`
	Analysis           *DocumentAnalysis `json:"analysis,omitempty"`
}

// AthleteContext is supplied fresh at scoring time.
type AthleteContext struct {
	AthleteID       string         `json:"athleteId"`
	Role            Role           `json:"role"`
	IsMinor         bool           `json:"isMinor"`
	State           string         `json:"state"`
	Sport           string         `json:"sport,omitempty"`
	Followers       int64          `json:"followers"`
	EngagementRate  float64        `json:"engagementRate"`
	TaxAcknowledged bool           `json:"taxAcknowledged"`
	GuardianConsent ConsentStatus  `json:"guardianConsent"`
	FMVEstimate     *fmv.DealValue `json:"fmvEstimate,omitempty"`
}

// DimensionResult is one scored dimension.
type DimensionResult struct {
	Dimension    DimensionID `json:"dimension"`
	RawScore     float64     `json:"rawScore"`
	MaxScore     float64     `json:"maxScore"`
	Score        float64     `json:"score"`
	Weight       float64     `json:"weight"`
	Contribution float64     `json:"weightedContribution"`
	Notes        []string    `json:"notes"`
	Flags        []Flag      `json:"flags"`
	Faulted      bool        `json:"faulted,omitempty"`
}

// Critical reports whether any flag on the dimension is critical.
func (d DimensionResult) Critical() bool {
	for _, f := range d.Flags {
		if f.Critical() {
			return true
		}
	}
	return false
}

// FixRecommendation tells the athlete or officer how to clear a finding.
type FixRecommendation struct {
	Priority  types.Priority `json:"priority"`
	Dimension DimensionID    `json:"dimension"`
	Code      string         `json:"code"`
	Issue     string         `json:"issue"`
	Action    string         `json:"action"`
}

// Override is an officer-entered score kept beside the computed one.
type Override struct {
	ID            string    `json:"id"`
	OfficerID     string    `json:"officerId"`
	Score         float64   `json:"score"`
	Tier          Tier      `json:"tier"`
	Justification string    `json:"justification"`
	At            time.Time `json:"at"`
}

// Result is the verdict for one deal version. Computed fields are never
// modified after creation; an Override sits beside them, and a later override
// moves the earlier one into OverrideHistory.
type Result struct {
	DealID             string              `json:"dealId"`
	AthleteID          string              `json:"athleteId"`
	PriorDealID        string              `json:"priorDealId,omitempty"`
	ScoreVersion       string              `json:"scoreVersion"`
	Dimensions         []DimensionResult   `json:"dimensions"`
	TotalScore         float64             `json:"totalScore"`
	RiskTier           Tier                `json:"riskTier"`
	CriticalForced     bool                `json:"criticalForced"`
	ReasonCodes        []string            `json:"reasonCodes"`
	FixRecommendations []FixRecommendation `json:"fixRecommendations"`
	CanBeApproved      bool                `json:"canBeApproved"`
	FaultedDimensions  []DimensionID       `json:"faultedDimensions,omitempty"`
	ComputedAt         time.Time           `json:"computedAt"`
	Override           *Override           `json:"override,omitempty"`
	// OverrideHistory holds superseded overrides, oldest first.
	OverrideHistory []Override `json:"overrideHistory,omitempty"`
}

// EffectiveTier is the override tier when present, else the computed tier.
func (r Result) EffectiveTier() Tier {
	if r.Override != nil {
		return r.Override.Tier
	}
	return r.RiskTier
}

// Dimension returns the result for id.
func (r Result) Dimension(id DimensionID) (DimensionResult, bool) {
	for _, d := range r.Dimensions {
		if d.Dimension == id {
			return d, true
		}
	}
	return DimensionResult{}, false
}
