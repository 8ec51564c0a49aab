package compliance

import (
	"slices"
	"strings"

	"github.com/okian/nilcore/internal/domain/types"
)

// StateRules captures the NIL statute points the policy scorer checks.
type StateRules struct {
	Code                   string
	Name                   string
	HighSchoolAllowed      bool
	HighSchoolMinimumAge   int
	ParentConsentRequired  bool
	SchoolCanFacilitate    bool
	HighSchoolRestrictions []string
	CollegeAllowed         bool
	DisclosureRequired     bool
	DisclosureDays         int
	DisclosureTo           string
	ProhibitedCategories   []string
}

// Prohibits reports whether the state bans deals in category.
func (r StateRules) Prohibits(category string) bool {
	if category == "" {
		return false
	}
	for _, c := range r.ProhibitedCategories {
		if c == category || categoryAliases[c] == category {
			return true
		}
	}
	return false
}

// SchoolApprovalRequired reports whether deals must be disclosed to the school.
func (r StateRules) SchoolApprovalRequired() bool {
	return r.DisclosureRequired && r.DisclosureTo == "school"
}

// categoryAliases maps statute wording onto the categories deals are tagged with.
var categoryAliases = map[string]string{ //nolint:gochecknoglobals // lookup table
	"casinos": "gambling",
}

// baseline is the category list most states prohibit.
var baseline = []string{"alcohol", "tobacco", "gambling"} //nolint:gochecknoglobals // statute list

func baselineWith(extra ...string) []string {
	return append(slices.Clone(baseline), extra...)
}

// stateRules is the February 2026 statute table for the 50 states and DC.
var stateRules = map[string]StateRules{ //nolint:gochecknoglobals // jurisdiction table
	"AL": {
		Code:                  "AL",
		Name:                  "Alabama",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		DisclosureTo:          "school",
		ProhibitedCategories:  baselineWith("adult_entertainment"),
	},
	"AK": {
		Code:                  "AK",
		Name:                  "Alaska",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  []string{"alcohol", "tobacco", "cannabis"},
	},
	"AZ": {
		Code:                  "AZ",
		Name:                  "Arizona",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		DisclosureTo:          "school",
		ProhibitedCategories:  baseline,
	},
	"AR": {
		Code:                  "AR",
		Name:                  "Arkansas",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        3,
		ProhibitedCategories:  baseline,
	},
	"CA": {
		Code:                   "CA",
		Name:                   "California",
		HighSchoolAllowed:      true,
		HighSchoolMinimumAge:   16,
		ParentConsentRequired:  true,
		CollegeAllowed:         true,
		DisclosureRequired:     true,
		DisclosureDays:         30,
		DisclosureTo:           "school",
		ProhibitedCategories:   baselineWith("cannabis", "firearms"),
		HighSchoolRestrictions: []string{"Cannot conflict with team contracts", "Cannot use school marks without permission"},
	},
	"CO": {
		Code:                  "CO",
		Name:                  "Colorado",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"CT": {
		Code:                  "CT",
		Name:                  "Connecticut",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"DE": {
		Code:                  "DE",
		Name:                  "Delaware",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"FL": {
		Code:                  "FL",
		Name:                  "Florida",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		DisclosureTo:          "school",
		ProhibitedCategories:  baselineWith("adult_entertainment"),
	},
	"GA": {
		Code:                  "GA",
		Name:                  "Georgia",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"HI": {
		Code:                  "HI",
		Name:                  "Hawaii",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"ID": {
		Code:                  "ID",
		Name:                  "Idaho",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"IL": {
		Code:                  "IL",
		Name:                  "Illinois",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baselineWith("cannabis"),
	},
	"IN": {
		Code:                  "IN",
		Name:                  "Indiana",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"IA": {
		Code:                  "IA",
		Name:                  "Iowa",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"KS": {
		Code:                  "KS",
		Name:                  "Kansas",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"KY": {
		Code:                  "KY",
		Name:                  "Kentucky",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"LA": {
		Code:                  "LA",
		Name:                  "Louisiana",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baselineWith("casinos"),
	},
	"ME": {
		Code:                  "ME",
		Name:                  "Maine",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"MD": {
		Code:                  "MD",
		Name:                  "Maryland",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"MA": {
		Code:                   "MA",
		Name:                   "Massachusetts",
		ParentConsentRequired:  true,
		CollegeAllowed:         true,
		ProhibitedCategories:   baseline,
		HighSchoolRestrictions: []string{"MIAA rules prohibit NIL for HS athletes"},
	},
	"MI": {
		Code:                  "MI",
		Name:                  "Michigan",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"MN": {
		Code:                   "MN",
		Name:                   "Minnesota",
		ParentConsentRequired:  true,
		CollegeAllowed:         true,
		ProhibitedCategories:   baseline,
		HighSchoolRestrictions: []string{"Minnesota State High School League prohibits NIL"},
	},
	"MS": {
		Code:                  "MS",
		Name:                  "Mississippi",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"MO": {
		Code:                  "MO",
		Name:                  "Missouri",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"MT": {
		Code:                  "MT",
		Name:                  "Montana",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"NE": {
		Code:                  "NE",
		Name:                  "Nebraska",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"NV": {
		Code:                  "NV",
		Name:                  "Nevada",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  []string{"alcohol", "tobacco"},
	},
	"NH": {
		Code:                  "NH",
		Name:                  "New Hampshire",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"NJ": {
		Code:                  "NJ",
		Name:                  "New Jersey",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baselineWith("cannabis"),
	},
	"NM": {
		Code:                  "NM",
		Name:                  "New Mexico",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"NY": {
		Code:                   "NY",
		Name:                   "New York",
		HighSchoolAllowed:      true,
		ParentConsentRequired:  true,
		CollegeAllowed:         true,
		DisclosureRequired:     true,
		DisclosureDays:         7,
		DisclosureTo:           "school",
		ProhibitedCategories:   baselineWith("cannabis"),
		HighSchoolRestrictions: []string{"Cannot use school logos", "Cannot interfere with academics"},
	},
	"NC": {
		Code:                  "NC",
		Name:                  "North Carolina",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"ND": {
		Code:                  "ND",
		Name:                  "North Dakota",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"OH": {
		Code:                   "OH",
		Name:                   "Ohio",
		HighSchoolAllowed:      true,
		ParentConsentRequired:  true,
		CollegeAllowed:         true,
		DisclosureRequired:     true,
		DisclosureDays:         7,
		DisclosureTo:           "school",
		ProhibitedCategories:   baselineWith("adult_entertainment"),
		HighSchoolRestrictions: []string{"Cannot use school IP", "Cannot conflict with team activities"},
	},
	"OK": {
		Code:                  "OK",
		Name:                  "Oklahoma",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"OR": {
		Code:                  "OR",
		Name:                  "Oregon",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"PA": {
		Code:                  "PA",
		Name:                  "Pennsylvania",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"RI": {
		Code:                  "RI",
		Name:                  "Rhode Island",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"SC": {
		Code:                  "SC",
		Name:                  "South Carolina",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"SD": {
		Code:                  "SD",
		Name:                  "South Dakota",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"TN": {
		Code:                  "TN",
		Name:                  "Tennessee",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baseline,
	},
	"TX": {
		Code:                   "TX",
		Name:                   "Texas",
		HighSchoolAllowed:      true,
		HighSchoolMinimumAge:   17,
		ParentConsentRequired:  true,
		CollegeAllowed:         true,
		DisclosureRequired:     true,
		DisclosureDays:         7,
		DisclosureTo:           "school",
		ProhibitedCategories:   baselineWith("firearms", "adult_entertainment"),
		HighSchoolRestrictions: []string{"Must be 17 years old", "Cannot miss school for NIL activities"},
	},
	"UT": {
		Code:                  "UT",
		Name:                  "Utah",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		DisclosureRequired:    true,
		DisclosureDays:        7,
		ProhibitedCategories:  baselineWith("cannabis"),
	},
	"VT": {
		Code:                  "VT",
		Name:                  "Vermont",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"VA": {
		Code:                  "VA",
		Name:                  "Virginia",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"WA": {
		Code:                   "WA",
		Name:                   "Washington",
		ParentConsentRequired:  true,
		CollegeAllowed:         true,
		ProhibitedCategories:   baseline,
		HighSchoolRestrictions: []string{"Washington Interscholastic Activities Association prohibits NIL"},
	},
	"WV": {
		Code:                  "WV",
		Name:                  "West Virginia",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"WI": {
		Code:                  "WI",
		Name:                  "Wisconsin",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"WY": {
		Code:                  "WY",
		Name:                  "Wyoming",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
	"DC": {
		Code:                  "DC",
		Name:                  "District of Columbia",
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  baseline,
	},
}

// RulesFor returns the statute table for a state. An unknown or empty code
// gets the most common rule set: NIL allowed with parent consent, baseline
// categories prohibited, no disclosure rule.
func RulesFor(state string) StateRules {
	code := strings.ToUpper(strings.TrimSpace(state))
	if r, ok := stateRules[code]; ok {
		return r
	}
	return StateRules{
		Code:                  code,
		HighSchoolAllowed:     true,
		ParentConsentRequired: true,
		CollegeAllowed:        true,
		ProhibitedCategories:  slices.Clone(baseline),
	}
}

// HighSchoolProhibitedStates lists the codes that ban high school NIL, sorted.
func HighSchoolProhibitedStates() []string {
	var out []string
	for code, r := range stateRules {
		if !r.HighSchoolAllowed {
			out = append(out, code)
		}
	}
	slices.Sort(out)
	return out
}

// categoryKeywords resolve a category from the third-party name when none is declared.
var categoryKeywords = []struct { //nolint:gochecknoglobals // lookup table
	keyword  string
	category string
}{
	{"casino", "gambling"},
	{"sportsbook", "sports_betting"},
	{"betting", "sports_betting"},
	{"bet ", "sports_betting"},
	{"vape", "vaping"},
	{"cbd", "cannabis"},
	{"cannabis", "cannabis"},
	{"dispensary", "cannabis"},
	{"tobacco", "tobacco"},
	{"cigar", "tobacco"},
	{"brewing", "alcohol"},
	{"brewery", "alcohol"},
	{"winery", "alcohol"},
	{"distillery", "alcohol"},
	{"spirits", "alcohol"},
	{"firearm", "firearms"},
	{"gun ", "firearms"},
	{"energy drink", "energy_drinks"},
	{"supplement", "supplements"},
	{"crypto", "crypto"},
	{"payday", "payday_loans"},
}

// resolveCategory returns the declared category, else one inferred from the
// third-party name, else "". The boolean reports whether it was inferred.
func resolveCategory(d Deal) (string, bool) {
	if c := types.Normalize(d.ThirdPartyCategory); c != "" {
		return c, false
	}
	name := " " + strings.ToLower(d.ThirdPartyName) + " "
	for _, k := range categoryKeywords {
		if strings.Contains(name, k.keyword) {
			return k.category, true
		}
	}
	return "", false
}
