package ml

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Threshold(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0.75, 0.75},
		{1, 1},
		{0, DefaultOverlapThreshold},
		{-1, DefaultOverlapThreshold},
		{1.5, DefaultOverlapThreshold},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NewRegistry(tc.in).OverlapThreshold(), "threshold %v", tc.in)
	}
}

func TestRegistry_RegisterDeactivatesPrevious(t *testing.T) {
	r := NewRegistry(0.5)
	require.NoError(t, r.Register(newHandle("dataset2", "1", KindRegressor, "a", "b")))
	require.NoError(t, r.Register(newHandle("dataset2", "2", KindRegressor, "a", "b")))

	h, err := r.Get("dataset2")
	require.NoError(t, err)
	assert.Equal(t, "2", h.Version)
	assert.True(t, h.Active)
	assert.False(t, h.RegisteredAt.IsZero())
	assert.Equal(t, 1, r.Len())

	vs, err := r.Versions("dataset2")
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, "2", vs[0].Version)
	assert.True(t, vs[0].Active)
	assert.Equal(t, "1", vs[1].Version)
	assert.False(t, vs[1].Active)

	active := 0
	for _, h := range r.ListActive() {
		if h.ID == "dataset2" {
			active++
		}
	}
	assert.Equal(t, 1, active, "at most one active handle per family")
}

func TestRegistry_RegisterSameVersionReplaces(t *testing.T) {
	r := NewRegistry(0.5)
	require.NoError(t, r.Register(newHandle("dataset1", "1", KindClassifier, "a")))
	require.NoError(t, r.Register(newHandle("dataset1", "1", KindClassifier, "a", "b")))

	vs, err := r.Versions("dataset1")
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, []string{"a", "b"}, vs[0].FeatureColumns)
}

func TestRegistry_RegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry(0.5)

	tests := []struct {
		name string
		h    *ModelHandle
	}{
		{"nil", nil},
		{"empty id", newHandle(" ", "1", KindRegressor, "a")},
		{"bad kind", newHandle("d", "1", Kind("cluster"), "a")},
		{"no columns", newHandle("d", "1", KindRegressor)},
		{"duplicate column", newHandle("d", "1", KindRegressor, "a", "a")},
		{"no predictor", &ModelHandle{ID: "d", Kind: KindRegressor, FeatureColumns: []string{"a"}}},
		{"bad scale", &ModelHandle{ID: "d", Kind: KindRegressor, FeatureColumns: []string{"a"}, Scale: "ppm", Predictor: &stubPredictor{}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, r.Register(tc.h))
		})
	}
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := NewRegistry(0.5)
	require.NoError(t, r.Register(newHandle("dataset1", "1", KindClassifier, "a", "b")))

	h, err := r.Get("dataset1")
	require.NoError(t, err)
	h.FeatureColumns[0] = "mutated"
	h.Active = false

	again, err := r.Get("dataset1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, again.FeatureColumns)
	assert.True(t, again.Active)
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry(0.5)
	_, err := r.Get("dataset9")
	assert.ErrorIs(t, err, ErrModelNotFound)

	_, err = r.Versions("dataset9")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestRegistry_Rollback(t *testing.T) {
	r := NewRegistry(0.5)
	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, r.Register(newHandle("dataset3", v, KindRegressor, "a")))
	}

	prev, err := r.Rollback("dataset3")
	require.NoError(t, err)
	assert.Equal(t, "2", prev.Version)

	h, err := r.Get("dataset3")
	require.NoError(t, err)
	assert.Equal(t, "2", h.Version)

	prev, err = r.Rollback("dataset3")
	require.NoError(t, err)
	assert.Equal(t, "1", prev.Version)

	_, err = r.Rollback("dataset3")
	assert.ErrorIs(t, err, ErrNoPreviousVersion)

	vs, err := r.Versions("dataset3")
	require.NoError(t, err)
	require.Len(t, vs, 3, "rollback keeps the full history")
	for _, v := range vs {
		assert.Equal(t, v.Version == "1", v.Active, "version %s", v.Version)
	}

	_, err = r.Rollback("dataset9")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestRegistry_FindCandidates(t *testing.T) {
	r := NewRegistry(0.5)

	full := newHandle("dataset2", "1", KindRegressor, "a", "b")
	full.Metrics.R2Score = 0.7
	strong := newHandle("dataset3", "1", KindRegressor, "a", "b")
	strong.Metrics.R2Score = 0.9
	half := newHandle("dataset4", "1", KindRegressor, "a", "c")
	tied := newHandle("dataset1", "1", KindRegressor, "a", "b")
	tied.Metrics.R2Score = 0.9
	low := newHandle("dataset5", "1", KindRegressor, "a", "x", "y")
	none := newHandle("dataset6", "1", KindRegressor, "q")

	for _, h := range []*ModelHandle{full, strong, half, tied, low, none} {
		require.NoError(t, r.Register(h))
	}

	got := r.FindCandidates([]string{"a", "b"})
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.Handle.ID
	}
	assert.Equal(t, []string{"dataset1", "dataset3", "dataset2", "dataset4"}, ids)
	assert.Equal(t, 2, got[0].Overlap)
	assert.Equal(t, 1.0, got[0].OverlapRatio)
	assert.Equal(t, 0.5, got[3].OverlapRatio)

	assert.Empty(t, r.FindCandidates(nil))
	assert.Empty(t, r.FindCandidates([]string{"zzz"}))
}

func TestRegistry_FindCandidatesIgnoresInactive(t *testing.T) {
	r := NewRegistry(0.5)
	require.NoError(t, r.Register(newHandle("dataset2", "1", KindRegressor, "old")))
	require.NoError(t, r.Register(newHandle("dataset2", "2", KindRegressor, "new")))

	assert.Empty(t, r.FindCandidates([]string{"old"}))
	assert.Len(t, r.FindCandidates([]string{"new"}), 1)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry(0.5)
	require.NoError(t, r.Register(newHandle("dataset1", "0", KindClassifier, "a")))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Register(newHandle(fmt.Sprintf("dataset%d", i), fmt.Sprint(j), KindClassifier, "a"))
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for _, c := range r.FindCandidates([]string{"a"}) {
					assert.True(t, c.Handle.Active)
				}
				_, _ = r.Get("dataset1")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, r.Len())
	for _, h := range r.ListActive() {
		assert.Equal(t, "49", h.Version)
	}
}
