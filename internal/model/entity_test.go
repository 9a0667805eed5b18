package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestEntityTypeValid(t *testing.T) {
	for _, typ := range AllEntityTypes {
		assert.True(t, typ.Valid(), string(typ))
	}
	assert.False(t, EntityType("kingdom").Valid())
	assert.False(t, EntityType("").Valid())
}

func TestYearRangeKnown(t *testing.T) {
	assert.False(t, YearRange{}.Known())
	assert.True(t, YearRange{Start: intp(1643)}.Known())
	assert.True(t, YearRange{End: intp(1715)}.Known())
}

func TestYearRangeGapYears(t *testing.T) {
	louis14 := YearRange{Start: intp(1643), End: intp(1715)}
	louis15 := YearRange{Start: intp(1715), End: intp(1774)}
	alexander := YearRange{Start: intp(-336), End: intp(-323)}

	gap, ok := louis14.GapYears(louis15)
	assert.True(t, ok)
	assert.Equal(t, 0, gap)

	gap, ok = louis14.GapYears(alexander)
	assert.True(t, ok)
	assert.Equal(t, 1643-(-323), gap)

	_, ok = louis14.GapYears(YearRange{})
	assert.False(t, ok)
}

func TestYearRangeOverlap(t *testing.T) {
	a := YearRange{Start: intp(1600), End: intp(1700)}
	b := YearRange{Start: intp(1650), End: intp(1750)}
	c := YearRange{Start: intp(1900), End: intp(1950)}

	assert.Equal(t, 1.0, a.Overlap(b))
	assert.Equal(t, 0.5, a.Overlap(YearRange{}))
	assert.Equal(t, 0.5, YearRange{}.Overlap(YearRange{}))

	// 200-year gap decays linearly over 1000 years.
	assert.InDelta(t, 0.8, a.Overlap(c), 0.001)

	// Beyond the decay horizon the score floors at zero.
	far := YearRange{Start: intp(3000), End: intp(3100)}
	assert.Equal(t, 0.0, a.Overlap(far))
}

func TestYearRangeString(t *testing.T) {
	assert.Equal(t, "unknown", YearRange{}.String())
	assert.Equal(t, "1643 to 1715", YearRange{Start: intp(1643), End: intp(1715)}.String())
	assert.Equal(t, "from 1643", YearRange{Start: intp(1643)}.String())
}
