package ml

// MemberPrediction is one model's contribution to an ensemble.
type MemberPrediction struct {
	ModelID      string  `json:"model_id"`
	Version      string  `json:"version"`
	RawValue     float64 `json:"raw_value"`
	Label        string  `json:"label,omitempty"`
	Confidence   float64 `json:"confidence"`
	QualityScore float64 `json:"quality_score"`
}

// PredictionResult is the scored outcome of one prediction request.
// QualityScore + ContaminationIndex is always 100. RawValue is the model's
// own output and stays 0 for ensembles, whose raw outputs are in Members.
type PredictionResult struct {
	ModelID            string             `json:"model_id"`
	Version            string             `json:"version,omitempty"`
	Kind               Kind               `json:"kind,omitempty"`
	RawValue           float64            `json:"raw_value"`
	Label              string             `json:"label,omitempty"`
	Probabilities      []float64          `json:"probabilities,omitempty"`
	Confidence         float64            `json:"confidence"`
	QualityScore       float64            `json:"quality_score"`
	ContaminationIndex float64            `json:"contamination_index"`
	FeaturesUsed       []string           `json:"features_used"`
	Members            []MemberPrediction `json:"members,omitempty"`
	Warnings           []string           `json:"warnings,omitempty"`
}

// EnsembleModelID is the ModelID reported for ensemble predictions.
const EnsembleModelID = "ensemble"
