package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wastewater-ai/internal/api"
	"wastewater-ai/internal/cfg"
	"wastewater-ai/internal/common"
	"wastewater-ai/internal/engine"
	"wastewater-ai/internal/metrics"
	"wastewater-ai/internal/ml"
	"wastewater-ai/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c)

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	registry := ml.NewRegistry(c.OverlapThreshold)
	loadModels(c, registry)

	eng := engine.New(registry, c.TargetTier())
	eng.SetMetrics(mw)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	// A nil *storage.Store must not reach the interface as a typed nil.
	var apiStore api.Store
	if store != nil {
		apiStore = store
	}

	srv := api.NewServer(eng, apiStore, mw, prometheus.DefaultGatherer, api.Config{
		Port:           c.HTTPPort,
		RequestTimeout: c.RequestTimeout,
		RecentLimit:    c.RecentLimit,
		DefaultTarget:  c.TargetTier(),
		RateLimitRPS:   c.RateLimitRPS,
		RateLimitBurst: c.RateLimitBurst,
	})
	srv.Start()

	log.Info().
		Int("port", c.HTTPPort).
		Int("models", registry.Len()).
		Bool("storage", store != nil).
		Str("default_target", string(c.TargetTier())).
		Msg("treatment service started")

	waitForShutdown(srv)
}

func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.LogFormat == common.LogFormatConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// loadModels registers every artifact in the models directory. A missing
// directory leaves the registry empty; /api/v1/optimize still works.
func loadModels(c cfg.Settings, registry *ml.Registry) {
	loader := ml.NewLoader(ml.LoaderConfig{
		ModelsDir:     c.ModelsDir,
		Interpreter:   c.PythonPath,
		ScriptTimeout: c.InferenceTimeout,
		RemoteTimeout: c.RemoteInferenceTimeout,
	})
	n, err := loader.LoadAll(registry)
	if err != nil {
		log.Warn().Err(err).Str("dir", c.ModelsDir).Msg("model loading failed, starting with an empty registry")
		return
	}
	log.Info().Int("loaded", n).Str("dir", c.ModelsDir).Msg("models loaded")
}

// initializeStorage opens the store if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

func waitForShutdown(srv *api.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
