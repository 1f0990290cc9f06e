package breedmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvetdata/vetdw/pkg/models"
)

func testRefs() []models.BreedRef {
	return []models.BreedRef{
		{Name: "Labrador Retriever", Species: "dog", Group: "Sporting", Purpose: "Water retrieving", Source: "thedogapi"},
		{Name: "Golden Retriever", Species: "dog", Group: "Sporting", Purpose: "Retrieving", Source: "thedogapi"},
		{Name: "Beagle", Species: "dog", Group: "Hound", Purpose: "Rabbit hunting", Source: "thedogapi"},
		{Name: "Persian", Species: "cat", Purpose: "Iran", Source: "thecatapi"},
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases and trims", "  Beagle ", "beagle"},
		{"strips punctuation", "St. Bernard", "st bernard"},
		{"collapses separators", "German\tShepherd  Dog", "german shepherd dog"},
		{"swaps hyphenated group form", "Retriever - Labrador", "labrador retriever"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestEnrichExactMatch(t *testing.T) {
	m := NewMatcher(testRefs())

	enr, ok := m.Enrich("LABRADOR RETRIEVER")
	require.True(t, ok)
	assert.Equal(t, "Sporting", enr.Group)
	assert.Equal(t, "Water retrieving", enr.Purpose)
}

func TestEnrichHyphenSwap(t *testing.T) {
	m := NewMatcher(testRefs())

	enr, ok := m.Enrich("Retriever - Labrador")
	require.True(t, ok)
	assert.Equal(t, "Sporting", enr.Group)
}

func TestEnrichContainmentFallback(t *testing.T) {
	m := NewMatcher(testRefs())

	enr, ok := m.Enrich("Beagle Mix")
	require.True(t, ok)
	assert.Equal(t, "Hound", enr.Group)
}

func TestEnrichContainmentTieBreak(t *testing.T) {
	// Both retrievers contain "retriever"; the shortest normalized
	// candidate must win, deterministically.
	m := NewMatcher(testRefs())

	enr, ok := m.Enrich("Retriever")
	require.True(t, ok)
	assert.Equal(t, "Retrieving", enr.Purpose) // golden retriever is shorter than labrador retriever
}

func TestEnrichNoMatch(t *testing.T) {
	m := NewMatcher(testRefs())

	_, ok := m.Enrich("Unknown Mix Breed XYZ")
	assert.False(t, ok)

	_, ok = m.Enrich("")
	assert.False(t, ok)
}

func TestNewMatcherIgnoresNamelessRefs(t *testing.T) {
	m := NewMatcher([]models.BreedRef{{Name: "   "}, {Name: "Beagle", Group: "Hound"}})

	_, ok := m.Enrich("Beagle")
	assert.True(t, ok)
	assert.Len(t, m.ordered, 1)
}
