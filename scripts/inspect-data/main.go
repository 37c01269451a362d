package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"wastewater-ai/internal/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "data/wastewater.db", "Database path")
		limit    = flag.Int("limit", 10, "Number of recent records to show")
		source   = flag.String("source", "", "Only show sensor readings from this source over the last -since")
		since    = flag.Duration("since", 24*time.Hour, "Window for -source")
	)
	flag.Parse()

	fmt.Printf("Inspecting data in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	predictions, sensors, err := store.Counts()
	if err != nil {
		log.Fatalf("Failed to count records: %v", err)
	}
	fmt.Printf("\nDatabase inspection:\n  Predictions: %d\n  Sensor readings: %d\n", predictions, sensors)

	var readings []storage.SensorReading
	if *source != "" {
		end := time.Now().UTC()
		readings, err = store.SensorsInRange(*source, end.Add(-*since), end)
	} else {
		readings, err = store.RecentSensors(*limit)
	}
	if err != nil {
		log.Fatalf("Failed to fetch sensor readings: %v", err)
	}
	fmt.Printf("\nSensor readings (%d):\n", len(readings))
	for _, r := range readings {
		fmt.Printf("  %s  %-10s %s\n", r.Timestamp.Format(time.RFC3339), r.Source, formatValues(r.Values))
	}

	recs, err := store.RecentPredictions(*limit)
	if err != nil {
		log.Fatalf("Failed to fetch predictions: %v", err)
	}
	fmt.Printf("\nRecent predictions (%d):\n", len(recs))
	for _, r := range recs {
		fmt.Printf("  %s  model=%s quality=%.2f reuse=%s warnings=%d\n",
			r.Timestamp.Format(time.RFC3339), r.Prediction.ModelID, r.Prediction.QualityScore,
			r.Optimization.FinalReuse.ReuseType, len(r.Prediction.Warnings)+len(r.Optimization.Warnings))
	}
}

func formatValues(values map[string]float64) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%.2f", k, values[k])
	}
	return out
}
