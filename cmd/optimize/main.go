package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"wastewater-ai/internal/engine"
	"wastewater-ai/internal/ml"
	"wastewater-ai/internal/optimizer"
	"wastewater-ai/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		quality    = flag.Float64("quality", -1, "Quality score (0-100) to optimize for")
		ci         = flag.Float64("ci", -1, "Contamination index (defaults to 100 - quality)")
		target     = flag.String("target", "environmental", "Target reuse tier: drinking, industrial, irrigation, environmental")
		sensors    = flag.String("sensors", "", "Comma-separated sensor values, e.g. flow_rate_lpm=900,bod=120")
		features   = flag.String("features", "", "Comma-separated features; runs a full prediction instead of -quality")
		model      = flag.String("model", "", "Model family for -features (empty selects automatically)")
		ensemble   = flag.Bool("ensemble", false, "Average every candidate model for -features")
		modelsDir  = flag.String("models", "models", "Models directory for -features")
		python     = flag.String("python", "python3", "Interpreter for script backed models")
		threshold  = flag.Float64("threshold", ml.DefaultOverlapThreshold, "Feature overlap threshold for automatic selection")
		exportPath = flag.String("export-sensors", "", "Write stored sensor readings from this database as CSV and exit")
		logLevel   = flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *exportPath != "" {
		if err := exportSensors(*exportPath); err != nil {
			log.Fatal().Err(err).Msg("export failed")
		}
		return
	}

	sensorValues, err := parsePairs(*sensors)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -sensors")
	}

	if *features != "" {
		fs, err := parsePairs(*features)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid -features")
		}
		resp, err := predict(*modelsDir, *python, *threshold, engine.Request{
			Features:    fs,
			Model:       *model,
			UseEnsemble: *ensemble,
			Sensors:     sensorValues,
			Target:      *target,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("prediction failed")
		}
		printJSON(resp)
		return
	}

	if *quality < 0 {
		fmt.Fprintln(os.Stderr, "either -quality or -features is required")
		flag.Usage()
		os.Exit(2)
	}
	contamination := *ci
	if contamination < 0 {
		contamination = 100 - *quality
	}
	printJSON(optimizer.Optimize(optimizer.Input{
		QualityScore:       *quality,
		ContaminationIndex: contamination,
		Sensors:            sensorValues,
		Target:             optimizer.Tier(*target),
	}))
}

func predict(dir, python string, threshold float64, req engine.Request) (*engine.Response, error) {
	registry := ml.NewRegistry(threshold)
	loader := ml.NewLoader(ml.LoaderConfig{
		ModelsDir:     dir,
		Interpreter:   python,
		ScriptTimeout: 5 * time.Second,
		RemoteTimeout: 5 * time.Second,
	})
	n, err := loader.LoadAll(registry)
	if err != nil {
		return nil, fmt.Errorf("load models: %w", err)
	}
	log.Info().Int("models", n).Str("dir", dir).Msg("models loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return engine.New(registry, optimizer.TierEnvironmental).Predict(ctx, req)
}

func exportSensors(path string) error {
	store, err := storage.New(path)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.ExportSensorsCSV(os.Stdout)
	if err != nil {
		return err
	}
	log.Info().Int("rows", n).Msg("sensor readings exported")
	return nil
}

// parsePairs parses "a=1,b=2" into a map.
func parsePairs(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", part)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", k, err)
		}
		out[strings.TrimSpace(k)] = f
	}
	return out, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatal().Err(err).Msg("encode output")
	}
}
