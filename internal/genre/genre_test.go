package genre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_ExactAndSynonym(t *testing.T) {
	got := Normalize([]string{"Fantasy", "sci-fi", "Whodunit"}, "")
	assert.Equal(t, []string{"Fantasy", "Science Fiction", "Mystery"}, got)
}

func TestNormalize_FuzzyMatch(t *testing.T) {
	got := Normalize([]string{"Mysteryy"}, "")
	assert.Equal(t, []string{"Mystery"}, got)
}

func TestNormalize_BlocklistDroppedWhenNotSole(t *testing.T) {
	got := Normalize([]string{"Fiction", "Fantasy"}, "")
	assert.Equal(t, []string{"Fantasy"}, got)
}

func TestNormalize_BlocklistKeptWhenSole(t *testing.T) {
	got := Normalize([]string{"Fiction"}, "")
	assert.Len(t, got, 1)
}

func TestNormalize_PassThroughUnrecognized(t *testing.T) {
	got := Normalize([]string{"Culinary Espionage Thrillers From Mars"}, "")
	assert.Equal(t, []string{"Culinary Espionage Thrillers From Mars"}, got)
}

func TestNormalize_Dedupes(t *testing.T) {
	got := Normalize([]string{"Fantasy", "fantasy", "FANTASY"}, "")
	assert.Equal(t, []string{"Fantasy"}, got)
}

func TestNormalize_Idempotent(t *testing.T) {
	first := Normalize([]string{"sci-fi", "Whodunit", "Fantasy"}, "")
	second := Normalize(first, "")
	assert.ElementsMatch(t, first, second)
}

func TestNormalize_ProviderHierarchicalExact(t *testing.T) {
	got := Normalize([]string{"Fiction / Science Fiction / General"}, "isbndb")
	assert.Equal(t, []string{"Science Fiction"}, got)
}

func TestNormalize_ProviderHierarchicalFallsBackToSegments(t *testing.T) {
	// Not present verbatim in the isbndb table, but its rightmost segment
	// ("Fantasy") resolves against the canonical set.
	got := Normalize([]string{"Fiction / Fantasy / Epic"}, "isbndb")
	assert.Equal(t, []string{"Fantasy"}, got)
}

func TestNormalize_UnknownProviderSkipsTableStage(t *testing.T) {
	got := Normalize([]string{"Fiction / Science Fiction / General"}, "some-other-provider")
	assert.Equal(t, []string{"Science Fiction"}, got)
}
