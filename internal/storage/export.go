package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

// ExportSensorsCSV writes every stored sensor reading as CSV, oldest first,
// for offline training. Columns are id, source, timestamp and then the union
// of measurement names in sorted order; absent measurements are left empty.
func (s *Store) ExportSensorsCSV(w io.Writer) (int, error) {
	readings, err := scanAll[SensorReading](s.db, sensorsBucket)
	if err != nil {
		return 0, err
	}
	sort.SliceStable(readings, func(i, j int) bool { return readings[i].Timestamp.Before(readings[j].Timestamp) })

	seen := map[string]struct{}{}
	var columns []string
	for _, r := range readings {
		for k := range r.Values {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)

	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{"id", "source", "timestamp"}, columns...)); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, r := range readings {
		row := make([]string, 0, 3+len(columns))
		row = append(row, r.ID, r.Source, r.Timestamp.UTC().Format(time.RFC3339Nano))
		for _, c := range columns {
			if v, ok := r.Values[c]; ok {
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return len(readings), cw.Error()
}
