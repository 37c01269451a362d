package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"wastewater-ai/internal/ml"
	"wastewater-ai/internal/storage"
)

func main() {
	var (
		modelsDir = flag.String("models", "models", "Directory to write sample model descriptors to")
		dataPath  = flag.String("data", "data/wastewater.db", "Database to write sample sensor readings to")
		source    = flag.String("source", "plant-a", "Sensor source name")
		hours     = flag.Int("hours", 24, "Hours of readings to generate")
		interval  = flag.Duration("interval", 5*time.Minute, "Time between readings")
		seed      = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	fmt.Printf("Generating sample data...\n")
	fmt.Printf("  Models Dir: %s\n", *modelsDir)
	fmt.Printf("  Data Path: %s\n", *dataPath)
	fmt.Printf("  Source: %s, Hours: %d, Interval: %s\n", *source, *hours, *interval)

	if err := os.MkdirAll(*modelsDir, 0o755); err != nil {
		log.Fatalf("Failed to create models directory: %v", err)
	}
	for _, desc := range sampleModels() {
		path, err := ml.WriteDescriptor(*modelsDir, desc)
		if err != nil {
			log.Fatalf("Failed to write %s: %v", desc.Family, err)
		}
		fmt.Printf("✓ Wrote %s\n", path)
	}

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to create storage: %v", err)
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(*seed))
	end := time.Now().UTC()
	start := end.Add(-time.Duration(*hours) * time.Hour)
	n, err := generateReadings(store, rng, *source, start, end, *interval)
	if err != nil {
		log.Fatalf("Failed to generate readings: %v", err)
	}
	fmt.Printf("✓ Generated %d sensor readings for %s\n", n, *source)
}

func sampleModels() []*ml.ArtifactDescriptor {
	created := time.Now().UTC()
	return []*ml.ArtifactDescriptor{
		{
			Family:         "dataset1",
			Version:        "1",
			Kind:           string(ml.KindRegressor),
			FeatureColumns: []string{"bod", "cod", "tss", "flow_rate_lpm"},
			TargetColumn:   "treatment_efficiency",
			Scale:          ml.ScaleEfficiency,
			Metrics:        ml.ModelMetrics{R2Score: 0.81, MAE: 4.2},
			CreatedAt:      created,
			Backend: ml.BackendConfig{
				Type:         ml.BackendLinear,
				Intercept:    96,
				Coefficients: map[string]float64{"bod": -0.08, "cod": -0.03, "tss": -0.05, "flow_rate_lpm": -0.002},
			},
		},
		{
			Family:         "dataset2",
			Version:        "1",
			Kind:           string(ml.KindClassifier),
			FeatureColumns: []string{"ph", "hardness", "solids", "chloramines", "sulfate", "conductivity", "organic_carbon", "trihalomethanes", "turbidity"},
			TargetColumn:   "potability",
			Metrics:        ml.ModelMetrics{Accuracy: 0.68, F1Score: 0.61},
			FeatureDefaults: map[string]float64{
				"ph": 7.0, "hardness": 196, "solids": 22000, "chloramines": 7.1,
				"sulfate": 333, "conductivity": 426, "organic_carbon": 14.3,
				"trihalomethanes": 66.4, "turbidity": 3.97,
			},
			CreatedAt: created,
			Backend: ml.BackendConfig{
				Type:      ml.BackendLinear,
				Intercept: -0.4,
				Coefficients: map[string]float64{
					"ph": -0.05, "hardness": -0.02, "solids": 0.03, "chloramines": 0.04,
					"sulfate": -0.03, "conductivity": -0.01, "organic_carbon": -0.04,
					"trihalomethanes": 0.01, "turbidity": 0.01,
				},
				Means: map[string]float64{
					"ph": 7.0, "hardness": 196, "solids": 22000, "chloramines": 7.1,
					"sulfate": 333, "conductivity": 426, "organic_carbon": 14.3,
					"trihalomethanes": 66.4, "turbidity": 3.97,
				},
				Scales: map[string]float64{
					"ph": 1.6, "hardness": 33, "solids": 8768, "chloramines": 1.6,
					"sulfate": 41, "conductivity": 81, "organic_carbon": 3.3,
					"trihalomethanes": 16, "turbidity": 0.78,
				},
				Classes: []string{"not_potable", "potable"},
			},
		},
		{
			Family:         "dataset4",
			Version:        "1",
			Kind:           string(ml.KindRegressor),
			FeatureColumns: []string{"cod", "tss", "ammonia", "temperature"},
			TargetColumn:   "bod_out",
			Scale:          ml.ScaleBOD,
			Metrics:        ml.ModelMetrics{R2Score: 0.74, MAE: 18},
			CreatedAt:      created,
			Backend: ml.BackendConfig{
				Type:         ml.BackendLinear,
				Intercept:    20,
				Coefficients: map[string]float64{"cod": 0.45, "tss": 0.2, "ammonia": 1.5, "temperature": -0.8},
			},
		},
	}
}

// generateReadings writes a daily-cycle random walk around typical influent values.
func generateReadings(store *storage.Store, rng *rand.Rand, source string, start, end time.Time, interval time.Duration) (int, error) {
	base := map[string]float64{
		"bod":           180,
		"cod":           400,
		"tss":           220,
		"flow_rate_lpm": 1000,
		"ph":            7.2,
		"turbidity":     4,
		"ammonia":       25,
		"temperature":   18,
	}
	count := 0
	for ts := start; ts.Before(end); ts = ts.Add(interval) {
		// Influent peaks mid-morning and mid-evening.
		hour := float64(ts.Hour()) + float64(ts.Minute())/60
		cycle := 1 + 0.25*math.Sin(2*math.Pi*(hour-6)/12)

		values := make(map[string]float64, len(base))
		for k, v := range base {
			noise := 1 + rng.NormFloat64()*0.05
			switch k {
			case "ph", "temperature":
				values[k] = round2(v * noise)
			default:
				values[k] = round2(math.Max(0, v*cycle*noise))
			}
		}
		if err := store.SaveSensorReading(&storage.SensorReading{
			Source:    source,
			Timestamp: ts,
			Values:    values,
		}); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
