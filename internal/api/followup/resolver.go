package followup

import (
	"log/slog"
	"strings"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

// Input is everything the resolver may consult for one turn. PreviousResults
// is the POI list surfaced by the most recent assistant turn.
type Input struct {
	Query           string
	Intent          types.Intent
	Session         *types.Session
	PreviousResults []types.POIDetailedInfo
}

// Resolution is the resolver's verdict. An empty POIs slice, follow-up or
// not, means the caller must fall back to a fresh search.
type Resolution struct {
	IsFollowUp bool
	Rule       string
	POIs       []types.ScoredPOI
}

// Rule is one named follow-up predicate. Rules are evaluated in order with
// short-circuit; the first match decides. They are deliberately redundant —
// several consult the raw query directly instead of trusting the classifier,
// so a missing upstream field cannot silently disable detection.
type Rule struct {
	Name    string
	Matches func(in Input) bool
}

var openingHoursKeywords = []string{
	"open", "close", "closing", "closed", "opening", "hours", "until when",
}

// positionalTokens map ordinal references to 0-based indexes into the
// previous result list. -1 selects the final element.
var positionalTokens = []struct {
	token string
	index int
}{
	{"first", 0}, {"1st", 0},
	{"second", 1}, {"2nd", 1},
	{"third", 2}, {"3rd", 2},
	{"last", -1},
}

// Rules is the ordered escalation ladder. The final rule fires on a
// "specific" intent even with no previous results; it can fabricate a
// follow-up with no antecedent, which is kept as-is because the fallback is
// load-bearing in production traffic (see DESIGN.md).
var Rules = []Rule{
	{
		Name: "specific-intent-with-results",
		Matches: func(in Input) bool {
			return len(in.PreviousResults) > 0 &&
				(in.Intent.Primary == "specific" || in.Intent.Has(types.FlagSpecificQuestion))
		},
	},
	{
		Name: "positional-reference",
		Matches: func(in Input) bool {
			if len(in.PreviousResults) == 0 {
				return false
			}
			_, ok := findPositional(in.Query)
			return ok
		},
	},
	{
		Name: "opening-hours-question",
		Matches: func(in Input) bool {
			if len(in.PreviousResults) == 0 {
				return false
			}
			q := strings.ToLower(in.Query)
			for _, kw := range openingHoursKeywords {
				if strings.Contains(q, kw) {
					return true
				}
			}
			return false
		},
	},
	{
		Name: "specific-search-type",
		Matches: func(in Input) bool {
			return len(in.PreviousResults) > 0 && in.Intent.SearchType == types.SearchTypeSpecific
		},
	},
	{
		Name: "specific-intent-no-antecedent",
		Matches: func(in Input) bool {
			return in.Intent.SearchType == types.SearchTypeSpecific
		},
	},
}

// Resolver decides whether a turn refers back to POIs already shown and, if
// so, which ones. It never returns an error; missing information degrades to
// an empty resolution.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve runs the rule ladder and selects the target POIs. Resolution is
// deterministic: identical (query, session-state) pairs always produce the
// same target.
func (r *Resolver) Resolve(in Input) Resolution {
	var matched *Rule
	for i := range Rules {
		if Rules[i].Matches(in) {
			matched = &Rules[i]
			break
		}
	}
	if matched == nil {
		return Resolution{}
	}

	targets := selectTargets(in.Query, in.PreviousResults)
	if len(targets) == 0 {
		// A follow-up with nothing to point at; the caller falls back to a
		// fresh search.
		r.logger.Debug("follow-up rule matched but target set is empty",
			slog.String("rule", matched.Name))
		return Resolution{IsFollowUp: true, Rule: matched.Name}
	}

	scored := make([]types.ScoredPOI, 0, len(targets))
	for _, poi := range targets {
		// Carried over from a previous turn, not freshly ranked: full
		// confidence.
		scored = append(scored, types.ScoredPOI{POI: poi, Relevance: 1.0})
	}

	r.logger.Debug("resolved follow-up",
		slog.String("rule", matched.Name),
		slog.Int("targets", len(scored)))

	return Resolution{IsFollowUp: true, Rule: matched.Name, POIs: scored}
}

// selectTargets applies ordinal selection: an explicit positional token picks
// one POI (1-based for the user, 0-based here), otherwise the whole previous
// list is the resolved set.
func selectTargets(query string, previous []types.POIDetailedInfo) []types.POIDetailedInfo {
	if len(previous) == 0 {
		return nil
	}
	idx, ok := findPositional(query)
	if !ok {
		return previous
	}
	if idx == -1 {
		idx = len(previous) - 1
	}
	if idx >= len(previous) {
		return nil
	}
	return previous[idx : idx+1]
}

// findPositional matches ordinal tokens against whole words only, so "1st"
// does not fire inside "21st" nor "first" inside "thirst".
func findPositional(query string) (int, bool) {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, pt := range positionalTokens {
		for _, w := range words {
			if w == pt.token {
				return pt.index, true
			}
		}
	}
	return 0, false
}
