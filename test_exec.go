package main

import (
	"wastewater-ai/internal/api"
	"wastewater-ai/internal/engine"
	"wastewater-ai/internal/metrics"
	"wastewater-ai/internal/ml"
	"wastewater-ai/internal/optimizer"
	"wastewater-ai/internal/storage"
)

func main() {
	// This should compile if the wiring signatures are correct
	var s *storage.Store
	var m *metrics.MetricsWrapper
	var _ engine.MetricsInterface = m
	var _ api.MetricsInterface = m
	var _ api.Store = s

	e := engine.New(ml.NewRegistry(ml.DefaultOverlapThreshold), optimizer.TierEnvironmental)
	_ = api.NewServer(e, nil, m, nil, api.Config{})
}
