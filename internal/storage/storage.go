// Package storage persists prediction results and ingested sensor readings.
// It uses BoltDB as the underlying storage engine with one bucket per record
// type and JSON-encoded values.
//
// Keys have the form "<prefix>_<unixnano>_<id>", where the prefix is the model
// id for predictions and the source name for sensor readings, so records of
// one prefix can be range-scanned in time order.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"wastewater-ai/internal/ml"
	"wastewater-ai/internal/optimizer"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	predictionsBucket = "predictions" // Bucket name for prediction records
	sensorsBucket     = "sensors"     // Bucket name for sensor readings
)

// PredictionRecord is one stored engine response.
type PredictionRecord struct {
	ID           string              `json:"id"`
	Timestamp    time.Time           `json:"timestamp"`
	Mode         string              `json:"mode"`
	Features     map[string]float64  `json:"features"`
	Prediction   ml.PredictionResult `json:"prediction"`
	Optimization optimizer.Result    `json:"optimization"`
}

// SensorReading is one ingested batch of measurements from a source.
type SensorReading struct {
	ID        string             `json:"id"`
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Store provides persistent storage backed by BoltDB.
type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

// New opens (or creates) the database file at path and its buckets.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(sensorsBucket)); err != nil {
			return fmt.Errorf("create sensors bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePrediction stores rec, assigning an id and timestamp when missing.
func (s *Store) SavePrediction(rec *PredictionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	return s.put(predictionsBucket, keyPrefix(rec.Prediction.ModelID), rec.Timestamp, rec.ID, rec)
}

// SaveSensorReading stores r, assigning an id and timestamp when missing.
func (s *Store) SaveSensorReading(r *SensorReading) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now().UTC()
	}
	return s.put(sensorsBucket, keyPrefix(r.Source), r.Timestamp, r.ID, r)
}

func (s *Store) put(bucket, prefix string, ts time.Time, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", bucket, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		return b.Put(recordKey(prefix, ts, id), data)
	})
}

// RecentPredictions returns up to n predictions, newest first.
func (s *Store) RecentPredictions(n int) ([]PredictionRecord, error) {
	recs, err := scanAll[PredictionRecord](s.db, predictionsBucket)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return limit(recs, n), nil
}

// RecentSensors returns up to n sensor readings, newest first.
func (s *Store) RecentSensors(n int) ([]SensorReading, error) {
	recs, err := scanAll[SensorReading](s.db, sensorsBucket)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp.After(recs[j].Timestamp) })
	return limit(recs, n), nil
}

// PredictionsInRange returns predictions of one model within [start, end], oldest first.
func (s *Store) PredictionsInRange(model string, start, end time.Time) ([]PredictionRecord, error) {
	return scanRange[PredictionRecord](s.db, predictionsBucket, keyPrefix(model), start, end)
}

// SensorsInRange returns readings of one source within [start, end], oldest first.
func (s *Store) SensorsInRange(source string, start, end time.Time) ([]SensorReading, error) {
	return scanRange[SensorReading](s.db, sensorsBucket, keyPrefix(source), start, end)
}

// Counts returns the number of stored predictions and sensor readings.
func (s *Store) Counts() (predictions, sensors int, err error) {
	err = s.db.View(func(tx *bbolt.Tx) error {
		predictions = tx.Bucket([]byte(predictionsBucket)).Stats().KeyN
		sensors = tx.Bucket([]byte(sensorsBucket)).Stats().KeyN
		return nil
	})
	return predictions, sensors, err
}

// scanAll decodes every record of a bucket. Malformed records are skipped.
func scanAll[T any](db *bbolt.DB, bucket string) ([]T, error) {
	var out []T
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).ForEach(func(_, v []byte) error {
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// scanRange walks one prefix between two timestamps using a cursor seek.
func scanRange[T any](db *bbolt.DB, bucket, prefix string, start, end time.Time) ([]T, error) {
	var out []T
	err := db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()

		p := []byte(prefix + "_")
		startKey := []byte(fmt.Sprintf("%s_%019d", prefix, start.UnixNano()))
		// "~" sorts after every id character, so records at exactly end are included.
		endKey := []byte(fmt.Sprintf("%s_%019d_~", prefix, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, p) {
				continue
			}
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // Skip malformed records
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func recordKey(prefix string, ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s_%019d_%s", prefix, ts.UnixNano(), id))
}

// keyPrefix keeps the separator out of prefixes so range scans stay exact.
func keyPrefix(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(s, "_", "-")
}

func limit[T any](recs []T, n int) []T {
	if n > 0 && len(recs) > n {
		return recs[:n]
	}
	return recs
}
