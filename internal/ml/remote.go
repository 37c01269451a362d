package ml

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemotePredictor calls an HTTP inference service that accepts
// {"model","columns","features"} and answers with the same JSON shape the
// script backend uses.
type RemotePredictor struct {
	endpoint string
	model    string
	columns  []string
	rest     *resty.Client
}

type remoteRequest struct {
	Model    string    `json:"model,omitempty"`
	Columns  []string  `json:"columns"`
	Features []float64 `json:"features"`
}

// NewRemotePredictor creates a predictor for endpoint. A zero timeout means 5s.
func NewRemotePredictor(endpoint, model string, columns []string, timeout time.Duration) *RemotePredictor {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second)
	}
	r.SetHeader("Content-Type", "application/json")
	return &RemotePredictor{endpoint: endpoint, model: model, columns: columns, rest: r}
}

// PredictRaw posts one feature vector to the inference service.
func (p *RemotePredictor) PredictRaw(ctx context.Context, x []float64) (RawOutput, error) {
	if len(p.columns) > 0 && len(x) != len(p.columns) {
		return RawOutput{}, fmt.Errorf("expected %d features, got %d", len(p.columns), len(x))
	}

	result := &scriptResponse{}
	resp, err := p.rest.R().
		SetContext(ctx).
		SetBody(remoteRequest{Model: p.model, Columns: p.columns, Features: x}).
		SetResult(result).
		Post(p.endpoint)
	if err != nil {
		return RawOutput{}, fmt.Errorf("remote inference request failed: %w", err)
	}
	if resp.IsError() {
		return RawOutput{}, fmt.Errorf("remote inference: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	if result.Error != "" {
		return RawOutput{}, fmt.Errorf("remote inference error: %s", result.Error)
	}

	return RawOutput{
		Value:         result.Prediction,
		Label:         result.Label,
		Probabilities: result.Probabilities,
	}, nil
}
