package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

func TestClassify_GeneralDiscovery(t *testing.T) {
	c := NewClassifier()

	intent := c.Classify("Find me a good vegan restaurant nearby")

	assert.Equal(t, "discover", intent.Primary)
	assert.Equal(t, types.SearchTypeGeneral, intent.SearchType)
	assert.Equal(t, "restaurant", intent.Category)
	assert.True(t, intent.Has(types.FlagFood))
	assert.True(t, intent.Has(types.FlagProximity))
	assert.True(t, intent.Has(types.FlagQuality))
	assert.False(t, intent.Has(types.FlagOpeningHours))
	assert.Equal(t, []string{"vegan"}, intent.DietaryRestrictions)
}

func TestClassify_SpecificQuestion(t *testing.T) {
	c := NewClassifier()

	intent := c.Classify("What time does it open?")

	assert.Equal(t, "specific", intent.Primary)
	assert.Equal(t, types.SearchTypeSpecific, intent.SearchType)
	assert.True(t, intent.Has(types.FlagSpecificQuestion))
	assert.True(t, intent.Has(types.FlagTime))
	assert.True(t, intent.Has(types.FlagOpeningHours))
}

func TestClassify_MultipleFlagsMayCoexist(t *testing.T) {
	c := NewClassifier()

	intent := c.Classify("Is the first one open now and does it have parking for kids?")

	assert.True(t, intent.Has(types.FlagSpecificQuestion))
	assert.True(t, intent.Has(types.FlagOpeningHours))
	assert.True(t, intent.Has(types.FlagTime))
	assert.True(t, intent.Has(types.FlagAmenity))
	assert.True(t, intent.Has(types.FlagFamily))
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier()
	query := "cheap dog-friendly cafe with wifi near the beach"

	first := c.Classify(query)
	second := c.Classify(query)

	assert.Equal(t, first, second)
}

func TestClassify_CategoryHintFirstMatchWins(t *testing.T) {
	c := NewClassifier()

	// "eat" maps to restaurant before the cafe table entry is consulted.
	assert.Equal(t, "restaurant", c.Classify("somewhere to eat with good coffee").Category)
	assert.Equal(t, "museum", c.Classify("a gallery with modern exhibitions").Category)
	assert.Equal(t, "", c.Classify("something interesting please").Category)
}

func TestClassify_DietaryRestrictions(t *testing.T) {
	c := NewClassifier()

	intent := c.Classify("gluten-free and vegetarian options")

	assert.Equal(t, []string{"vegetarian", "gluten-free"}, intent.DietaryRestrictions)
}

func TestExtractSearchTerms(t *testing.T) {
	terms := extractSearchTerms("find me a cozy cozy jazz-bar in the old town")

	assert.Equal(t, []string{"find", "cozy", "jazz-bar", "old", "town"}, terms)
}

func TestClassify_EmptyQuery(t *testing.T) {
	c := NewClassifier()

	intent := c.Classify("")

	assert.Equal(t, "discover", intent.Primary)
	assert.Empty(t, intent.SearchTerms)
	assert.Empty(t, intent.DietaryRestrictions)
	for flag := range intent.Flags {
		assert.False(t, intent.Flags[flag])
	}
}
