package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	catalog := NewCatalog()

	all := catalog.All()
	require.Len(t, all, 7)

	keto, err := catalog.Get("keto")
	require.NoError(t, err)
	assert.Equal(t, KindDiet, keto.Kind)
	assert.Equal(t, 16, keto.DurationWeeks)
	assert.Equal(t, DifficultyIntermediate, keto.Difficulty)
	assert.Empty(t, keto.Protocols)

	fasting, err := catalog.Get("fasting-16h")
	require.NoError(t, err)
	assert.Equal(t, KindFasting, fasting.Kind)
	assert.Equal(t, []string{"16h", "18h", "20h"}, fasting.Protocols)

	combined, err := catalog.Get("keto-fasting")
	require.NoError(t, err)
	assert.Equal(t, KindCombined, combined.Kind)
	assert.Equal(t, "keto", combined.Category)

	_, err = catalog.Get("unknown-plan")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCatalog_AllReturnsCopy(t *testing.T) {
	catalog := NewCatalog()

	all := catalog.All()
	all[0].Name = "mutated"

	fresh, err := catalog.Get(all[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", fresh.Name)
}
