package models

import "encoding/json"

// PredictionResult is the structured output of a scoring call.
// Probabilities are passed through as returned; they are not required to sum to 1.
type PredictionResult struct {
	RequestID          string             `json:"request_id,omitempty"`
	RunID              string             `json:"run_id,omitempty"`
	Disease            string             `json:"disease"`
	PredictedLabel     string             `json:"predicted_label"`
	Probabilities      map[string]float64 `json:"probabilities"`
	SuggestedNextSteps []string           `json:"suggested_next_steps"`
	Notes              []string           `json:"notes"`
}

// Persisted reports whether the service stored the run.
func (r PredictionResult) Persisted() bool {
	return r.RunID != ""
}

// RunSummary is a stored prediction run as listed by the history endpoints.
type RunSummary struct {
	RunID          string             `json:"run_id"`
	CreatedAt      string             `json:"created_at"`
	Disease        string             `json:"disease"`
	PredictedLabel string             `json:"predicted_label"`
	Probabilities  map[string]float64 `json:"probabilities"`
	ModelVersion   string             `json:"model_version"`
	UserID         *string            `json:"user_id,omitempty"`
}

// RunDetail extends RunSummary with the stored request payload.
type RunDetail struct {
	RunSummary
	RequestPayload json.RawMessage `json:"request_payload"`
	LatencyMS      *float64        `json:"latency_ms,omitempty"`
}

// RunFilter narrows a run listing.
type RunFilter struct {
	Disease string
	UserID  string
	Limit   int
	Offset  int
}

// UserRecord is a user known to the run store.
type UserRecord struct {
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at"`
}

// ServiceHealth is the scoring service health payload.
type ServiceHealth struct {
	Status       string   `json:"status"`
	ModelsLoaded []string `json:"models_loaded"`
}

// ModelInfo describes a model loaded by the scoring service.
type ModelInfo struct {
	Disease     string `json:"disease"`
	Cycle       string `json:"cycle"`
	ModelPath   string `json:"model_path"`
	NumFeatures *int   `json:"num_features"`
}
