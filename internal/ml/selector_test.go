package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSelectionMode(t *testing.T) {
	tests := []struct {
		requested string
		ensemble  bool
		want      SelectionMode
	}{
		{"", false, Auto{}},
		{"auto", false, Auto{}},
		{" AUTO ", false, Auto{}},
		{"dataset1", false, Explicit{ID: "dataset1"}},
		{" dataset1 ", false, Explicit{ID: "dataset1"}},
		{"dataset1", true, Ensemble{}},
		{"", true, Ensemble{}},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseSelectionMode(tc.requested, tc.ensemble), "%q ensemble=%v", tc.requested, tc.ensemble)
	}
	assert.Equal(t, "explicit:dataset1", Explicit{ID: "dataset1"}.String())
	assert.Equal(t, "auto", Auto{}.String())
	assert.Equal(t, "ensemble", Ensemble{}.String())
}

func selectorFixture(t *testing.T) *Selector {
	t.Helper()
	r := NewRegistry(0.5)
	d1 := newHandle("dataset1", "1", KindClassifier, "ph", "hardness", "solids")
	d1.Metrics.Accuracy = 0.68
	d2 := newHandle("dataset2", "1", KindRegressor, "bod_in", "cod_in", "tss_in")
	d2.Metrics.R2Score = 0.81
	require.NoError(t, r.Register(d1))
	require.NoError(t, r.Register(d2))
	return NewSelector(r)
}

func TestSelector_Explicit(t *testing.T) {
	s := selectorFixture(t)

	h, err := s.Select(FeatureSet{"unrelated": 1}, Explicit{ID: "dataset2"})
	require.NoError(t, err, "explicit selection ignores overlap")
	assert.Equal(t, "dataset2", h.ID)

	_, err = s.Select(FeatureSet{"ph": 7}, Explicit{ID: "dataset7"})
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestSelector_ExplicitInactive(t *testing.T) {
	r := NewRegistry(0.5)
	require.NoError(t, r.Register(newHandle("dataset1", "1", KindClassifier, "a")))
	require.NoError(t, r.Register(newHandle("dataset1", "2", KindClassifier, "a")))
	s := NewSelector(r)

	h, err := s.Select(FeatureSet{"a": 1}, Explicit{ID: "dataset1"})
	require.NoError(t, err)
	assert.Equal(t, "2", h.Version, "only the active version is selectable")
}

func TestSelector_Auto(t *testing.T) {
	s := selectorFixture(t)

	h, err := s.Select(FeatureSet{"bod_in": 200, "cod_in": 400}, Auto{})
	require.NoError(t, err)
	assert.Equal(t, "dataset2", h.ID)

	h, err = s.Select(FeatureSet{"ph": 7, "hardness": 150, "solids": 2000, "bod_in": 20}, Auto{})
	require.NoError(t, err)
	assert.Equal(t, "dataset1", h.ID)

	_, err = s.Select(FeatureSet{"ph": 7}, Auto{})
	assert.ErrorIs(t, err, ErrNoCandidateModel, "1/3 overlap is below threshold")
	assert.Contains(t, err.Error(), "threshold 0.50")
}

func TestSelector_Ensemble(t *testing.T) {
	s := selectorFixture(t)

	hs, err := s.SelectEnsemble(FeatureSet{"ph": 7, "hardness": 1, "bod_in": 1, "cod_in": 1})
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "dataset2", hs[0].ID, "equal overlap ranks by metric score")
	assert.Equal(t, "dataset1", hs[1].ID)

	_, err = s.SelectEnsemble(FeatureSet{})
	assert.ErrorIs(t, err, ErrNoCandidateModel)

	_, err = s.Select(FeatureSet{"ph": 1}, Ensemble{})
	assert.Error(t, err)
}

func TestSelector_Resolve(t *testing.T) {
	s := selectorFixture(t)
	features := FeatureSet{"ph": 7, "hardness": 1, "solids": 1, "bod_in": 1, "cod_in": 1}

	hs, err := s.Resolve(features, Auto{})
	require.NoError(t, err)
	assert.Len(t, hs, 1)

	hs, err = s.Resolve(features, Ensemble{})
	require.NoError(t, err)
	assert.Len(t, hs, 2)

	hs, err = s.Resolve(features, Explicit{ID: "dataset2"})
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "dataset2", hs[0].ID)

	assert.Len(t, s.Candidates(features), 2)
}
