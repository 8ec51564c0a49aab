package compliance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/okian/nilcore/internal/domain/types"
)

// Input is the slice of data every dimension scorer sees.
type Input struct {
	Deal    Deal
	Athlete AthleteContext
	Rules   StateRules
}

// Outcome is a dimension's raw score on its native scale plus findings.
type Outcome struct {
	Raw   float64
	Notes []string
	Flags []Flag
}

func (o *Outcome) note(format string, args ...any) {
	o.Notes = append(o.Notes, fmt.Sprintf(format, args...))
}

func (o *Outcome) flag(code string, sev Severity, msg string) {
	o.Flags = append(o.Flags, Flag{Code: code, Severity: sev, Message: msg})
}

// Scorer computes one dimension.
type Scorer interface {
	Score(in Input) (Outcome, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(in Input) (Outcome, error)

// Score implements Scorer.
func (f ScorerFunc) Score(in Input) (Outcome, error) { return f(in) }

// DefaultScorers returns the v1 scorer set keyed by dimension.
func DefaultScorers() map[DimensionID]Scorer {
	return map[DimensionID]Scorer{
		PolicyFit:       ScorerFunc(scorePolicyFit),
		DocumentHygiene: ScorerFunc(scoreDocumentHygiene),
		FMVVerification: ScorerFunc(scoreFMVVerification),
		TaxReadiness:    ScorerFunc(scoreTaxReadiness),
		BrandSafety:     ScorerFunc(scoreBrandSafety),
		GuardianConsent: ScorerFunc(scoreGuardianConsent),
	}
}

var (
	taxReportingThreshold = decimal.NewFromInt(600)  //nolint:gochecknoglobals // 1099-NEC threshold
	taxMagnitudeThreshold = decimal.NewFromInt(5000) //nolint:gochecknoglobals // partial credit ceiling
)

func scorePolicyFit(in Input) (Outcome, error) {
	out := Outcome{Raw: 100}
	d, a, r := in.Deal, in.Athlete, in.Rules
	hs := a.Role == RoleHighSchool

	if hs && !r.HighSchoolAllowed {
		out.Raw = 0
		out.flag("STATE_HS_NIL_PROHIBITED", SeverityCritical,
			fmt.Sprintf("%s does not permit NIL deals for high school athletes", r.Code))
		for _, restriction := range r.HighSchoolRestrictions {
			out.note("%s", restriction)
		}
		return out, nil
	}
	if !hs && !r.CollegeAllowed {
		out.Raw = 0
		out.flag("STATE_COLLEGE_NIL_PROHIBITED", SeverityCritical,
			fmt.Sprintf("%s does not permit NIL deals for college athletes", r.Code))
		return out, nil
	}

	if cat, _ := resolveCategory(d); r.Prohibits(cat) {
		out.Raw -= 50
		out.flag("STATE_CATEGORY_PROHIBITED", SeverityHigh,
			fmt.Sprintf("category %q is prohibited for NIL deals in %s", cat, r.Code))
	}
	if d.BoosterConnected {
		out.Raw -= 40
		out.flag("BOOSTER_CONNECTED", SeverityHigh, "third party is connected to a school booster")
	}
	if d.PerformanceBased {
		out.Raw -= 30
		out.flag("PERFORMANCE_BASED_PAY", SeverityHigh, "compensation is tied to athletic performance")
	}
	if d.SchoolAffiliated {
		if hs {
			out.Raw -= 30
			out.flag("SCHOOL_AFFILIATION_HS", SeverityHigh, "high school deals may not use school marks or affiliation")
		} else {
			out.Raw -= 10
			out.flag("SCHOOL_MARKS_REVIEW", SeverityMedium, "school marks require institutional licensing review")
		}
		if r.SchoolApprovalRequired() {
			out.flag("SCHOOL_APPROVAL_REQUIRED", SeverityInfo, fmt.Sprintf("%s requires school approval for affiliated deals", r.Code))
		}
	}
	if hs {
		// Minors are covered by the guardian consent dimension.
		if r.ParentConsentRequired && !a.IsMinor && a.GuardianConsent != ConsentApproved {
			out.Raw -= 20
			out.flag("STATE_PARENT_CONSENT_REQUIRED", SeverityMedium,
				fmt.Sprintf("%s requires parent consent for high school NIL deals", r.Code))
		}
		if r.HighSchoolMinimumAge > 0 {
			out.note("%s requires high school athletes to be at least %d", r.Code, r.HighSchoolMinimumAge)
		}
		for _, restriction := range r.HighSchoolRestrictions {
			out.note("%s", restriction)
		}
	}
	if r.DisclosureRequired {
		switch {
		case r.DisclosureDays > 0 && r.DisclosureTo != "":
			out.note("%s requires disclosure to the %s within %d days", r.Code, r.DisclosureTo, r.DisclosureDays)
		case r.DisclosureDays > 0:
			out.note("%s requires deal disclosure within %d days", r.Code, r.DisclosureDays)
		default:
			out.note("%s requires deal disclosure to the institution", r.Code)
		}
	}
	if out.Raw < 0 {
		out.Raw = 0
	}
	return out, nil
}

var keyTerms = []struct { //nolint:gochecknoglobals // checklist
	name  string
	words []string
}{
	{"compensation", []string{"compensat", "payment", "fee", "$"}},
	{"term", []string{"term", "duration", "effective date", "expire"}},
	{"deliverables", []string{"deliverable", "services", "post", "appearance"}},
	{"termination", []string{"terminat", "cancel"}},
}

const (
	refPoints        = 8.0
	textPoints       = 4.0
	lengthPoints     = 2.0
	minContractChars = 500
	termPoints       = 1.5
	checklistShare   = 0.7
	analysisShare    = 0.3
	documentMax      = 20.0
)

// scoreDocumentHygiene grades the contract on a 20 point checklist. No contract
// at all scores the floor rather than failing.
func scoreDocumentHygiene(in Input) (Outcome, error) {
	var out Outcome
	d := in.Deal
	text := strings.TrimSpace(d.ContractText)
	ref := strings.TrimSpace(d.ContractRef)

	if strings.TrimSpace(d.Deliverables) == "" {
		out.flag("DELIVERABLES_UNSPECIFIED", SeverityLow, "deal does not describe its deliverables")
	}

	if text == "" && ref == "" {
		out.flag("CONTRACT_MISSING", SeverityHigh, "no contract text or document reference was provided")
		return out, nil
	}
	out.Raw += refPoints

	if text == "" {
		out.flag("CONTRACT_TEXT_UNAVAILABLE", SeverityMedium, "contract is referenced but its text could not be reviewed")
	} else {
		out.Raw += textPoints
		if len(text) >= minContractChars {
			out.Raw += lengthPoints
		} else {
			out.note("contract text is short (%d characters)", len(text))
		}
		lower := strings.ToLower(text)
		var missing []string
		for _, term := range keyTerms {
			if containsAny(lower, term.words) {
				out.Raw += termPoints
			} else {
				missing = append(missing, term.name)
			}
		}
		if len(missing) > 0 {
			out.flag("CONTRACT_TERMS_INCOMPLETE", SeverityLow, "contract does not address: "+strings.Join(missing, ", "))
		}
	}

	if a := d.Analysis; a != nil {
		out.Raw = out.Raw*checklistShare + a.Score/100*documentMax*analysisShare
		if a.Notes != "" {
			out.note("document analysis: %s", a.Notes)
		}
	}
	return out, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

const (
	payForPlayRatio = 3.0
	aboveRatio      = 1.5
)

// scoreFMVVerification compares compensation with the athlete's FMV band.
func scoreFMVVerification(in Input) (Outcome, error) {
	var out Outcome
	d, est := in.Deal, in.Athlete.FMVEstimate
	comp := d.Compensation

	if est == nil {
		out.Raw = 70
		out.flag("FMV_UNVERIFIED", SeverityLow, "no FMV estimate available to verify compensation")
		return out, nil
	}
	if comp.LessThanOrEqual(est.High) {
		out.Raw = 100
		out.note("compensation %s is within the FMV band up to %s", comp.StringFixed(2), est.High.StringFixed(2))
		return out, nil
	}

	ratio := payForPlayRatio + 1
	if est.High.IsPositive() {
		ratio = comp.Div(est.High).InexactFloat64()
	}
	out.note("compensation is %.2fx the FMV high estimate", ratio)

	switch {
	case ratio <= aboveRatio:
		out.Raw = 80
		out.flag("FMV_ABOVE_RANGE", SeverityLow, "compensation is somewhat above the FMV estimate")
	case ratio <= payForPlayRatio:
		out.Raw = 50
		out.flag("FMV_SIGNIFICANTLY_ABOVE", SeverityMedium, "compensation is well above the FMV estimate")
	default:
		out.Raw = 15
		out.flag("FMV_EXTREME_OVERPAY", SeverityHigh, "compensation exceeds the FMV high estimate by a wide margin")
		if d.PerformanceBased && d.BoosterConnected {
			out.flag("PAY_FOR_PLAY_RISK", SeverityCritical,
				"booster-connected, performance-based pay far above FMV indicates pay-for-play")
		}
	}
	return out, nil
}

func scoreTaxReadiness(in Input) (Outcome, error) {
	var out Outcome
	comp, ack := in.Deal.Compensation, in.Athlete.TaxAcknowledged
	reportable := comp.GreaterThanOrEqual(taxReportingThreshold)

	if ack {
		out.Raw += 6
	} else {
		sev := SeverityLow
		if reportable {
			sev = SeverityHigh
		}
		out.flag("TAX_NOT_ACKNOWLEDGED", sev, "athlete has not acknowledged NIL tax obligations")
	}

	switch {
	case !reportable, ack:
		out.Raw += 4
	case comp.LessThanOrEqual(taxMagnitudeThreshold):
		out.Raw += 2
	}
	if reportable {
		out.flag("TAX_1099_REPORTABLE", SeverityInfo, "compensation meets the 1099 reporting threshold")
	}
	return out, nil
}

var (
	prohibitedCategories = map[string]bool{ //nolint:gochecknoglobals // brand safety list
		"gambling": true, "sports_betting": true, "adult_entertainment": true,
		"cannabis": true, "tobacco": true, "vaping": true,
	}
	ageRestrictedCategories = map[string]bool{"alcohol": true, "firearms": true} //nolint:gochecknoglobals // brand safety list
	sensitiveCategories     = map[string]bool{                                  //nolint:gochecknoglobals // brand safety list
		"energy_drinks": true, "supplements": true, "crypto": true, "payday_loans": true,
	}
)

func scoreBrandSafety(in Input) (Outcome, error) {
	var out Outcome
	cat, inferred := resolveCategory(in.Deal)
	if inferred {
		out.note("category %q inferred from third-party name", cat)
	}
	young := in.Athlete.IsMinor || in.Athlete.Role == RoleHighSchool

	switch {
	case cat == "":
		out.Raw = 85
		out.flag("BRAND_CATEGORY_UNVERIFIED", SeverityLow, "third-party category could not be determined")
	case prohibitedCategories[cat]:
		out.Raw = 0
		out.flag("BRAND_PROHIBITED_CATEGORY", SeverityCritical, fmt.Sprintf("category %q is not allowed for NIL deals", cat))
	case ageRestrictedCategories[cat] && young:
		out.Raw = 0
		out.flag("BRAND_AGE_RESTRICTED", SeverityCritical, fmt.Sprintf("category %q is not allowed for minors or high school athletes", cat))
	case ageRestrictedCategories[cat]:
		out.Raw = 40
		out.flag("BRAND_RESTRICTED_CATEGORY", SeverityHigh, fmt.Sprintf("category %q carries reputational and policy risk", cat))
	case sensitiveCategories[cat]:
		out.Raw = 70
		out.flag("BRAND_SENSITIVE_CATEGORY", SeverityMedium, fmt.Sprintf("category %q needs brand review", cat))
	default:
		out.Raw = 100
	}
	return out, nil
}

func scoreGuardianConsent(in Input) (Outcome, error) {
	var out Outcome
	if !in.Athlete.IsMinor {
		out.Raw = 100
		out.flag("GUARDIAN_CONSENT_NOT_REQUIRED", SeverityInfo, "athlete is not a minor")
		return out, nil
	}
	switch in.Athlete.GuardianConsent {
	case ConsentApproved:
		out.Raw = 100
	case ConsentPending:
		out.Raw = 30
		out.flag("GUARDIAN_CONSENT_PENDING", SeverityHigh, "guardian consent has been requested but not given")
	case ConsentDenied:
		out.Raw = 0
		out.flag("GUARDIAN_CONSENT_DENIED", SeverityCritical, "guardian has denied consent for this deal")
	default:
		out.Raw = 0
		out.flag("GUARDIAN_CONSENT_MISSING", SeverityHigh, "minor athlete has no guardian consent on file")
	}
	return out, nil
}

// normalizeDealType maps empty to other and rejects unknown values.
func normalizeDealType(t DealType) (DealType, bool) {
	switch v := DealType(types.Normalize(string(t))); v {
	case "":
		return DealOther, true
	case DealSocialMedia, DealEndorsement, DealEvent, DealProductLaunch, DealAppearance, DealOther:
		return v, true
	default:
		return v, false
	}
}
