// Package verify checks pipeline output correctness against baseline
// fingerprints using row counts and order-independent content hashes.
package verify

import "time"

// Fingerprint identifies a model's output state. ContentHash is nil for
// empty tables and when no hash could be computed.
type Fingerprint struct {
	ModelName   string    `json:"model_name"`
	FQN         string    `json:"fqn"`
	RowCount    int64     `json:"row_count"`
	ContentHash *int64    `json:"content_hash"`
	Timestamp   time.Time `json:"timestamp"`
}

// Result records one model's verification outcome. RowCountMatch and
// HashMatch are tri-state: nil means the check was not performed or was
// indeterminate.
type Result struct {
	ModelName        string   `json:"model_name"`
	FQN              string   `json:"fqn"`
	Passed           bool     `json:"passed"`
	RowCountMatch    *bool    `json:"row_count_match"`
	HashMatch        *bool    `json:"hash_match"`
	BaselineRowCount *int64   `json:"baseline_row_count"`
	CurrentRowCount  *int64   `json:"current_row_count"`
	BaselineHash     *int64   `json:"baseline_hash"`
	CurrentHash      *int64   `json:"current_hash"`
	ErrorMessage     string   `json:"error_message"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Summary rolls up the verification of one pipeline.
type Summary struct {
	PipelineID   string    `json:"pipeline_id"`
	TotalModels  int       `json:"total_models"`
	PassedModels int       `json:"passed_models"`
	FailedModels int       `json:"failed_models"`
	Results      []Result  `json:"results"`
	Timestamp    time.Time `json:"timestamp"`
}

// SuccessRate is the fraction of models that passed, 0 when none were
// verified.
func (s *Summary) SuccessRate() float64 {
	if s.TotalModels == 0 {
		return 0
	}
	return float64(s.PassedModels) / float64(s.TotalModels)
}

// Passed reports whether every model verified cleanly.
func (s *Summary) Passed() bool {
	return s.PassedModels == s.TotalModels
}

func boolPtr(b bool) *bool    { return &b }
func int64Ptr(n int64) *int64 { return &n }
