package compliance

// CodeCriticalForcedRed marks a result whose tier was forced to red by a critical flag.
const CodeCriticalForcedRed = "CRITICAL_FORCED_RED"

// CodeScorerFault marks a dimension that failed and was scored zero.
const CodeScorerFault = "SCORER_FAULT"

var actions = map[string]string{ //nolint:gochecknoglobals // remediation table
	"STATE_HS_NIL_PROHIBITED":       "Do not proceed; the athlete's state does not allow high school NIL deals",
	"STATE_COLLEGE_NIL_PROHIBITED":  "Do not proceed; the athlete's state does not allow college NIL deals",
	"STATE_PARENT_CONSENT_REQUIRED": "Collect a parent's signed consent before the deal is signed",
	"STATE_CATEGORY_PROHIBITED":     "Replace the sponsor or restructure the deal outside the prohibited category",
	"BOOSTER_CONNECTED":             "Document the booster relationship and confirm the deal is not a recruiting inducement",
	"PERFORMANCE_BASED_PAY":         "Remove performance incentives; pay must be for NIL use, not athletic results",
	"SCHOOL_AFFILIATION_HS":         "Remove school names, logos and uniforms from the deliverables",
	"SCHOOL_MARKS_REVIEW":           "Obtain a licensing agreement for school marks before publishing",
	"CONTRACT_MISSING":              "Upload the signed contract or paste its full text",
	"CONTRACT_TEXT_UNAVAILABLE":     "Provide the contract text so its terms can be reviewed",
	"CONTRACT_TERMS_INCOMPLETE":     "Add the missing clauses to the contract",
	"DELIVERABLES_UNSPECIFIED":      "List each deliverable with dates and channels",
	"FMV_UNVERIFIED":                "Calculate the athlete's FMV so compensation can be checked",
	"FMV_ABOVE_RANGE":               "Attach justification for compensation above the FMV estimate",
	"FMV_SIGNIFICANTLY_ABOVE":       "Provide comparable deals supporting the compensation level",
	"FMV_EXTREME_OVERPAY":           "Reduce compensation toward the FMV range or escalate for officer review",
	"PAY_FOR_PLAY_RISK":             "Escalate to compliance leadership; the deal pattern indicates pay-for-play",
	"TAX_NOT_ACKNOWLEDGED":          "Have the athlete acknowledge NIL tax obligations",
	"BRAND_PROHIBITED_CATEGORY":     "Decline the deal; the sponsor category is not allowed",
	"BRAND_AGE_RESTRICTED":          "Decline the deal; the sponsor category is restricted for this athlete",
	"BRAND_RESTRICTED_CATEGORY":     "Route the sponsor through brand and policy review",
	"BRAND_SENSITIVE_CATEGORY":      "Confirm sponsor claims and disclosures meet brand guidelines",
	"BRAND_CATEGORY_UNVERIFIED":     "Record the sponsor's business category",
	"GUARDIAN_CONSENT_PENDING":      "Follow up with the guardian to complete consent",
	"GUARDIAN_CONSENT_DENIED":       "Do not proceed without guardian consent",
	"GUARDIAN_CONSENT_MISSING":      "Request guardian consent before the deal is signed",
	CodeScorerFault:                 "Re-run scoring after correcting the input data; review this dimension manually",
}

const defaultAction = "Review this finding with a compliance officer"

// ActionFor returns the remediation for a reason code.
func ActionFor(code string) string {
	if a, ok := actions[code]; ok {
		return a
	}
	return defaultAction
}
