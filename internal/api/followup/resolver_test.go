package followup

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-poi-discovery/internal/api/intent"
	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

func testResolver() *Resolver {
	return NewResolver(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func somePOIs(names ...string) []types.POIDetailedInfo {
	pois := make([]types.POIDetailedInfo, len(names))
	for i, n := range names {
		pois[i] = types.POIDetailedInfo{ID: uuid.New(), Name: n}
	}
	return pois
}

// classify mirrors production wiring: resolver inputs come straight from the
// classifier.
func classify(t *testing.T, query string) types.Intent {
	t.Helper()
	return intent.NewClassifier().Classify(query)
}

func TestResolve_OpeningHoursFollowUp(t *testing.T) {
	r := testResolver()
	previous := somePOIs("Blue Door Cafe")

	res := r.Resolve(Input{
		Query:           "what time does it open",
		Intent:          classify(t, "what time does it open"),
		PreviousResults: previous,
	})

	assert.True(t, res.IsFollowUp)
	assert.Equal(t, "specific-intent-with-results", res.Rule)
	require.Len(t, res.POIs, 1)
	assert.Equal(t, previous[0].ID, res.POIs[0].POI.ID)
	assert.Equal(t, 1.0, res.POIs[0].Relevance)
}

func TestResolve_PositionalReference(t *testing.T) {
	r := testResolver()
	previous := somePOIs("Alpha", "Beta", "Gamma")

	tests := []struct {
		query string
		want  string
	}{
		{"is the first one open now", "Alpha"},
		{"tell me more about the second one", "Beta"},
		{"how about the 3rd", "Gamma"},
		{"and the last one?", "Gamma"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := r.Resolve(Input{
				Query:           tt.query,
				Intent:          classify(t, tt.query),
				PreviousResults: previous,
			})

			assert.True(t, res.IsFollowUp)
			require.Len(t, res.POIs, 1)
			assert.Equal(t, tt.want, res.POIs[0].POI.Name)
			assert.Equal(t, 1.0, res.POIs[0].Relevance)
		})
	}
}

func TestFindPositional_WholeWordsOnly(t *testing.T) {
	tests := []struct {
		query string
		index int
		ok    bool
	}{
		{"the first one", 0, true},
		{"the 2nd option", 1, true},
		{"THE THIRD PLACE", 2, true},
		{"the last", -1, true},
		// Embedded ordinals are not positional references.
		{"on 21st street", 0, false},
		{"i thirst for coffee", 0, false},
		{"the firstborn cafe", 0, false},
		{"a lasting impression", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			idx, ok := findPositional(tt.query)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.index, idx)
			}
		})
	}
}

func TestResolve_EmbeddedOrdinalKeepsWholeList(t *testing.T) {
	r := testResolver()
	previous := somePOIs("Alpha", "Beta", "Gamma")

	// "21st" must not read as "1st" and narrow the target to Alpha.
	res := r.Resolve(Input{
		Query:           "is it on 21st street",
		Intent:          classify(t, "is it on 21st street"),
		PreviousResults: previous,
	})

	assert.True(t, res.IsFollowUp)
	require.Len(t, res.POIs, 3)
}

func TestResolve_OrdinalOutOfRange(t *testing.T) {
	r := testResolver()
	previous := somePOIs("Alpha", "Beta")

	res := r.Resolve(Input{
		Query:           "is the third one open",
		Intent:          classify(t, "is the third one open"),
		PreviousResults: previous,
	})

	assert.True(t, res.IsFollowUp)
	assert.Empty(t, res.POIs)
}

func TestResolve_NoOrdinalResolvesWholePreviousList(t *testing.T) {
	r := testResolver()
	previous := somePOIs("Alpha", "Beta", "Gamma")

	res := r.Resolve(Input{
		Query:           "are they open on sunday",
		Intent:          classify(t, "are they open on sunday"),
		PreviousResults: previous,
	})

	assert.True(t, res.IsFollowUp)
	assert.Equal(t, "opening-hours-question", res.Rule)
	require.Len(t, res.POIs, 3)
	for i, p := range res.POIs {
		assert.Equal(t, previous[i].ID, p.POI.ID)
	}
}

func TestResolve_FreshQueryIsNotFollowUp(t *testing.T) {
	r := testResolver()

	res := r.Resolve(Input{
		Query:           "find me a museum downtown",
		Intent:          classify(t, "find me a museum downtown"),
		PreviousResults: somePOIs("Alpha"),
	})

	assert.False(t, res.IsFollowUp)
	assert.Empty(t, res.Rule)
	assert.Empty(t, res.POIs)
}

func TestResolve_SpecificIntentWithoutAntecedent(t *testing.T) {
	r := testResolver()

	res := r.Resolve(Input{
		Query:  "is it any good",
		Intent: classify(t, "is it any good"),
	})

	assert.True(t, res.IsFollowUp)
	assert.Equal(t, "specific-intent-no-antecedent", res.Rule)
	assert.Empty(t, res.POIs)
}

func TestResolve_RuleOrderShortCircuits(t *testing.T) {
	r := testResolver()
	previous := somePOIs("Alpha", "Beta")

	// Both the specific-intent and positional rules would match; the first
	// rule in the ladder wins and the ordinal still drives target selection.
	res := r.Resolve(Input{
		Query:           "is the second one open now",
		Intent:          classify(t, "is the second one open now"),
		PreviousResults: previous,
	})

	assert.Equal(t, "specific-intent-with-results", res.Rule)
	require.Len(t, res.POIs, 1)
	assert.Equal(t, "Beta", res.POIs[0].POI.Name)
}

func TestResolve_Deterministic(t *testing.T) {
	r := testResolver()
	previous := somePOIs("Alpha", "Beta", "Gamma")
	in := Input{
		Query:           "is the first one open now",
		Intent:          classify(t, "is the first one open now"),
		PreviousResults: previous,
	}

	first := r.Resolve(in)
	second := r.Resolve(in)

	assert.Equal(t, first, second)
}
