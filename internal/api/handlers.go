package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"wastewater-ai/internal/common"
	"wastewater-ai/internal/engine"
	"wastewater-ai/internal/ml"
	"wastewater-ai/internal/optimizer"
	"wastewater-ai/internal/rules"
	"wastewater-ai/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// PredictResponse is the payload of a successful prediction.
type PredictResponse struct {
	*engine.Response
	PredictionID string `json:"prediction_id,omitempty"`
}

// OptimizeRequest runs the optimizer on a known score.
type OptimizeRequest struct {
	QualityScore       *float64           `json:"quality_score"`
	ContaminationIndex *float64           `json:"contamination_index,omitempty"`
	Sensors            map[string]float64 `json:"sensor_data,omitempty"`
	Target             string             `json:"target_quality,omitempty"`
}

// SelectRequest asks which models a prediction would use.
type SelectRequest struct {
	Features    ml.FeatureSet `json:"features"`
	Model       string        `json:"model_type,omitempty"`
	UseEnsemble bool          `json:"use_ensemble,omitempty"`
}

// IngestRequest stores one batch of sensor readings.
type IngestRequest struct {
	Source    string             `json:"source"`
	Timestamp time.Time          `json:"timestamp,omitempty"`
	Values    map[string]float64 `json:"values"`
	Predict   bool               `json:"predict,omitempty"`
	Target    string             `json:"target_quality,omitempty"`
}

// IngestResponse reports a stored reading and the optional prediction.
type IngestResponse struct {
	ReadingID  string           `json:"reading_id"`
	Prediction *PredictResponse `json:"prediction,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Models    int       `json:"models"`
	Storage   bool      `json:"storage"`
	Timestamp time.Time `json:"timestamp"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return validationErrorf("invalid request body: %v", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Models:    s.engine.Registry().Len(),
		Storage:   s.store != nil,
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.predict(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, r, http.StatusOK, resp)
}

// predict runs one request under the request timeout and stores the result
// when persistence is enabled. A storage failure does not fail the request.
func (s *Server) predict(ctx context.Context, req engine.Request) (*PredictResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	resp, err := s.engine.Predict(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &PredictResponse{Response: resp}
	if s.store == nil {
		return out, nil
	}

	rec := &storage.PredictionRecord{
		Timestamp:    resp.Timestamp,
		Mode:         resp.Mode,
		Features:     req.Features,
		Prediction:   resp.Prediction,
		Optimization: resp.Optimization,
	}
	if err := s.store.SavePrediction(rec); err != nil {
		s.metrics.ErrorsInc()
		log.Error().Err(err).Str("model", resp.Prediction.ModelID).Msg("Failed to store prediction")
		return out, nil
	}
	out.PredictionID = rec.ID
	return out, nil
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.QualityScore == nil {
		s.writeError(w, r, validationErrorf("quality_score is required"))
		return
	}
	q := *req.QualityScore
	ci := 100 - rules.Bound(q, 0, 100)
	if req.ContaminationIndex != nil {
		ci = *req.ContaminationIndex
	}
	target := optimizer.Tier(req.Target)
	if req.Target == "" {
		target = s.cfg.DefaultTarget
	}
	s.writeOK(w, r, http.StatusOK, optimizer.Optimize(optimizer.Input{
		QualityScore:       q,
		ContaminationIndex: ci,
		Sensors:            req.Sensors,
		Target:             target,
	}))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	s.writeOK(w, r, http.StatusOK, s.engine.Models())
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.engine.Registry().Versions(mux.Vars(r)["family"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, r, http.StatusOK, versions)
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	family := mux.Vars(r)["family"]
	h, err := s.engine.Rollback(family)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	log.Info().Str("family", family).Str("version", h.Version).Msg("Model rolled back via API")
	s.writeOK(w, r, http.StatusOK, h)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sel, err := s.engine.Select(req.Features, req.Model, req.UseEnsemble)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeOK(w, r, http.StatusOK, sel)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStorage)
		return
	}
	var req IngestRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Source = strings.TrimSpace(req.Source)
	if req.Source == "" {
		s.writeError(w, r, validationErrorf("source is required"))
		return
	}
	if len(req.Values) == 0 {
		s.writeError(w, r, validationErrorf("values must not be empty"))
		return
	}
	if err := ml.FeatureSet(req.Values).Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}

	reading := &storage.SensorReading{
		Source:    req.Source,
		Timestamp: req.Timestamp,
		Values:    req.Values,
	}
	if err := s.store.SaveSensorReading(reading); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.SensorReadingsAdd(len(req.Values))

	out := IngestResponse{ReadingID: reading.ID}
	if req.Predict {
		pred, err := s.predict(r.Context(), engine.Request{
			Features: req.Values,
			Sensors:  req.Values,
			Target:   req.Target,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out.Prediction = pred
	}
	s.writeOK(w, r, http.StatusCreated, out)
}

func (s *Server) handleRecentSensors(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStorage)
		return
	}
	n, err := s.limit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	readings, err := s.store.RecentSensors(n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if readings == nil {
		readings = []storage.SensorReading{}
	}
	s.writeOK(w, r, http.StatusOK, readings)
}

func (s *Server) handleRecentPredictions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStorage)
		return
	}
	n, err := s.limit(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recs, err := s.store.RecentPredictions(n)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []storage.PredictionRecord{}
	}
	s.writeOK(w, r, http.StatusOK, recs)
}

func (s *Server) handleExportSensors(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, errNoStorage)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="sensors.csv"`)
	n, err := s.store.ExportSensorsCSV(w)
	if err != nil {
		// Headers are already sent; all that is left is to log.
		s.metrics.ErrorsInc()
		log.Error().Err(err).Int("rows", n).Msg("Sensor export failed")
		return
	}
	log.Debug().Int("rows", n).Msg("Exported sensor readings")
}

// limit reads ?limit=, defaulting to the configured recent limit.
func (s *Server) limit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return s.cfg.RecentLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, validationErrorf("limit must be a positive integer, got %q", raw)
	}
	if n > common.MaxRecentLimit {
		n = common.MaxRecentLimit
	}
	return n, nil
}
