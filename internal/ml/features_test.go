package ml

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureSet_Validate(t *testing.T) {
	assert.NoError(t, FeatureSet{"ph": 7.1, "bod": 0}.Validate())
	assert.NoError(t, FeatureSet{}.Validate())

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := FeatureSet{"ph": 7, "turbidity": bad}.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidFeatureValue)
		assert.Contains(t, err.Error(), "turbidity")
	}
}

func TestFeatureSet_Names(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, FeatureSet{"c": 1, "a": 2, "b": 3}.Names())
	assert.Empty(t, FeatureSet{}.Names())
}

func TestFeatureSet_Vectorize(t *testing.T) {
	h := newHandle("dataset1", "1", KindClassifier, "ph", "hardness", "solids")
	h.FeatureDefaults = map[string]float64{"solids": 2100}

	x, warnings := FeatureSet{"ph": 7.5, "extra": 99}.Vectorize(h)
	assert.Equal(t, []float64{7.5, 0, 2100}, x)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], `"hardness"`)
	assert.Contains(t, warnings[1], "2100")

	x, warnings = FeatureSet{"ph": 1, "hardness": 2, "solids": 3}.Vectorize(h)
	assert.Equal(t, []float64{1, 2, 3}, x)
	assert.Empty(t, warnings)
}
