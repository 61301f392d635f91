package intent

import (
	"strings"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// Classifier turns a raw query into deterministic context flags, category
// hints and search terms via fixed substring matching. It is a pure function:
// identical input always yields identical output, and any number of flags may
// be true at once.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// contextKeywords maps each named context flag to the substrings that set it.
var contextKeywords = map[types.ContextFlag][]string{
	types.FlagTime:          {"what time", "when ", "now", "tonight", "today", "tomorrow", "this evening", "this morning", "o'clock"},
	types.FlagLocation:      {"where", "address", "located", "location", "how do i get", "directions"},
	types.FlagProximity:     {"near", "nearby", "close to", "closest", "around here", "walking distance", "distance"},
	types.FlagOpeningHours:  {"open", "close", "closing", "closed", "opening", "hours", "until when"},
	types.FlagContact:       {"phone", "call", "email", "contact", "website", "reservation number"},
	types.FlagComparison:    {"better", "best", "worse", "compare", "versus", " vs ", "difference between", "or the"},
	types.FlagAccessibility: {"wheelchair", "accessible", "accessibility", "disabled", "step-free", "elevator", "ramp"},
	types.FlagPrice:         {"price", "cost", "expensive", "cheap", "how much", "budget", "free entry", "entrance fee"},
	types.FlagAmenity:       {"wifi", "parking", "toilet", "restroom", "terrace", "garden", "pool", "air conditioning"},
	types.FlagFood:          {"eat", "food", "restaurant", "lunch", "dinner", "breakfast", "menu", "cuisine", "snack", "drink"},
	types.FlagFamily:        {"kids", "children", "family", "child-friendly", "playground", "stroller"},
	types.FlagPet:           {"dog", "pet", "pets allowed", "dog-friendly", "animal"},
	types.FlagReview:        {"review", "reviews", "rated", "rating", "stars", "recommend"},
	types.FlagAvailability:  {"available", "availability", "book", "reserve", "tickets", "sold out", "busy"},
	types.FlagQuality:       {"good", "best", "nice", "great", "worth it", "quality", "top"},
	types.FlagSpecificQuestion: {
		"what time", "is it", "does it", "do they", "is the", "is that",
		"the first", "the second", "the third", "the last", "that one",
		"this one", "that place", "tell me more", "more about",
	},
}

// dietaryKeywords are matched independently of the context flags and
// collected in list order.
var dietaryKeywords = []string{
	"vegetarian", "vegan", "gluten-free", "gluten free", "lactose-free",
	"lactose free", "halal", "kosher", "nut-free", "nut allergy", "dairy-free",
}

// categoryKeywords provide the deterministic category hint; the richer
// extraction is delegated to the language-model collaborator upstream.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"restaurant", []string{"restaurant", "eat", "dinner", "lunch", "food"}},
	{"cafe", []string{"cafe", "coffee", "breakfast", "brunch"}},
	{"bar", []string{"bar", "pub", "cocktail", "nightlife", "club"}},
	{"museum", []string{"museum", "gallery", "exhibition", "art"}},
	{"hotel", []string{"hotel", "stay", "accommodation", "hostel"}},
	{"beach", []string{"beach", "swim", "seaside"}},
	{"park", []string{"park", "garden", "nature", "hike", "walk"}},
	{"shopping", []string{"shop", "shopping", "market", "store", "boutique"}},
	{"attraction", []string{"attraction", "sight", "landmark", "monument", "castle", "church"}},
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"i": true, "me": true, "my": true, "we": true, "you": true, "it": true,
	"do": true, "does": true, "can": true, "could": true, "would": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"and": true, "or": true, "what": true, "where": true, "when": true,
	"how": true, "that": true, "this": true, "there": true, "any": true,
	"some": true, "with": true, "near": true, "nearby": true, "please": true,
}

// Classify computes the deterministic intent for a query.
func (c *Classifier) Classify(query string) types.Intent {
	q := strings.ToLower(query)

	flags := make(map[types.ContextFlag]bool, len(contextKeywords))
	for flag, keywords := range contextKeywords {
		for _, kw := range keywords {
			if strings.Contains(q, kw) {
				flags[flag] = true
				break
			}
		}
	}

	var dietary []string
	for _, kw := range dietaryKeywords {
		if strings.Contains(q, kw) {
			dietary = append(dietary, kw)
		}
	}

	category := ""
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				category = entry.category
				break
			}
		}
		if category != "" {
			break
		}
	}

	searchType := types.SearchTypeGeneral
	primary := "discover"
	if flags[types.FlagSpecificQuestion] {
		searchType = types.SearchTypeSpecific
		primary = "specific"
	}

	return types.Intent{
		Primary:             primary,
		Category:            category,
		SearchTerms:         extractSearchTerms(q),
		SearchType:          searchType,
		Flags:               flags,
		DietaryRestrictions: dietary,
	}
}

// extractSearchTerms keeps the query's meaningful tokens in order, without
// duplicates.
func extractSearchTerms(q string) []string {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '-')
	})
	seen := make(map[string]bool, len(fields))
	var terms []string
	for _, f := range fields {
		if stopwords[f] || len(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}
