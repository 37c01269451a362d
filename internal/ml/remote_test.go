package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemotePredictor_Success(t *testing.T) {
	var got remoteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"prediction": 0, "label": "not_potable", "probabilities": [0.75, 0.25]}`))
	}))
	defer srv.Close()

	p := NewRemotePredictor(srv.URL, "dataset1", []string{"ph", "solids"}, time.Second)
	out, err := p.PredictRaw(context.Background(), []float64{6.5, 1800})
	require.NoError(t, err)

	assert.Equal(t, "dataset1", got.Model)
	assert.Equal(t, []string{"ph", "solids"}, got.Columns)
	assert.Equal(t, []float64{6.5, 1800}, got.Features)

	assert.Equal(t, 0.0, out.Value)
	assert.Equal(t, "not_potable", out.Label)
	assert.Equal(t, []float64{0.75, 0.25}, out.Probabilities)
}

func TestRemotePredictor_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fail":
			http.Error(w, "model crashed", http.StatusInternalServerError)
		case "/reject":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"error": "unknown model"}`))
		case "/slow":
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte(`{"prediction": 1}`))
		}
	}))
	defer srv.Close()

	_, err := NewRemotePredictor(srv.URL+"/fail", "m", nil, time.Second).PredictRaw(context.Background(), []float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")

	_, err = NewRemotePredictor(srv.URL+"/reject", "m", nil, time.Second).PredictRaw(context.Background(), []float64{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")

	_, err = NewRemotePredictor(srv.URL+"/slow", "m", nil, 50*time.Millisecond).PredictRaw(context.Background(), []float64{1})
	assert.Error(t, err)

	_, err = NewRemotePredictor(srv.URL+"/reject", "m", []string{"a", "b"}, time.Second).PredictRaw(context.Background(), []float64{1})
	assert.Error(t, err, "vector length must match columns")
}
