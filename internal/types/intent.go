package types

// ContextFlag names one of the deterministic boolean contexts the intent
// classifier derives from a query via keyword matching.
type ContextFlag string

const (
	FlagTime             ContextFlag = "time"
	FlagLocation         ContextFlag = "location"
	FlagProximity        ContextFlag = "proximity"
	FlagOpeningHours     ContextFlag = "opening_hours"
	FlagContact          ContextFlag = "contact"
	FlagComparison       ContextFlag = "comparison"
	FlagAccessibility    ContextFlag = "accessibility"
	FlagPrice            ContextFlag = "price"
	FlagAmenity          ContextFlag = "amenity"
	FlagFood             ContextFlag = "food"
	FlagFamily           ContextFlag = "family"
	FlagPet              ContextFlag = "pet"
	FlagReview           ContextFlag = "review"
	FlagAvailability     ContextFlag = "availability"
	FlagQuality          ContextFlag = "quality"
	FlagSpecificQuestion ContextFlag = "specific_question"
)

// SearchType distinguishes a query about something already on the table from
// a fresh open-ended search.
type SearchType string

const (
	SearchTypeGeneral  SearchType = "general"
	SearchTypeSpecific SearchType = "specific"
)

// Intent is the classifier's deterministic reading of a single query.
// Identical queries always produce identical intents.
type Intent struct {
	Primary             string               `json:"primary"`
	Category            string               `json:"category,omitempty"`
	SearchTerms         []string             `json:"search_terms"`
	SearchType          SearchType           `json:"search_type"`
	Flags               map[ContextFlag]bool `json:"flags"`
	DietaryRestrictions []string             `json:"dietary_restrictions,omitempty"`
}

// Has reports whether the named context flag was detected.
func (i Intent) Has(flag ContextFlag) bool {
	return i.Flags[flag]
}
