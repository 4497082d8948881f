package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/warehouse"
)

// Querier is the warehouse surface the verifier needs.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([][]any, []string, error)
}

// Verifier computes current fingerprints and compares them to a baseline.
type Verifier struct {
	q   Querier
	log *zap.Logger
}

// NewVerifier builds a Verifier over an open warehouse session.
func NewVerifier(q Querier, log *zap.Logger) *Verifier {
	return &Verifier{q: q, log: log}
}

// VerifyModels checks each model FQN against the baseline fingerprints.
// Models without a baseline pass with a first-run warning; models whose
// current state cannot be read fail.
func (v *Verifier) VerifyModels(ctx context.Context, pipelineID string, modelFQNs []string, baseline []Fingerprint) *Summary {
	v.log.Info("starting output verification",
		zap.String("pipeline", pipelineID),
		zap.Int("models", len(modelFQNs)))

	byKey := make(map[string]Fingerprint, len(baseline))
	for _, fp := range baseline {
		key := fp.FQN
		if key == "" {
			key = fp.ModelName
		}
		byKey[key] = fp
	}

	summary := &Summary{
		PipelineID:  pipelineID,
		TotalModels: len(modelFQNs),
		Results:     make([]Result, 0, len(modelFQNs)),
		Timestamp:   time.Now().UTC(),
	}

	for _, fqn := range modelFQNs {
		result := v.verifyModel(ctx, fqn, byKey)
		if result.Passed {
			summary.PassedModels++
			v.log.Info("model verified", zap.String("model", result.ModelName))
		} else {
			summary.FailedModels++
			v.log.Warn("model verification failed",
				zap.String("model", result.ModelName),
				zap.String("error", result.ErrorMessage))
		}
		summary.Results = append(summary.Results, result)
	}

	v.log.Info("verification complete",
		zap.Int("passed", summary.PassedModels),
		zap.Int("total", summary.TotalModels))
	return summary
}

func (v *Verifier) verifyModel(ctx context.Context, fqn string, baseline map[string]Fingerprint) Result {
	modelName := modelNameOf(fqn)

	base, ok := baseline[fqn]
	if !ok {
		base, ok = baseline[modelName]
	}
	if !ok {
		v.log.Debug("no baseline for model, accepting first run", zap.String("fqn", fqn))
		return Result{
			ModelName:    modelName,
			FQN:          fqn,
			Passed:       true,
			ErrorMessage: "No baseline available (first run)",
			Warnings:     []string{"No baseline fingerprint found - output accepted as baseline"},
		}
	}

	current, err := v.CurrentFingerprint(ctx, fqn)
	if err != nil {
		msg := fmt.Sprintf("Failed to retrieve fingerprint for model %s", modelName)
		v.log.Error(msg, zap.Error(err))
		return Result{ModelName: modelName, FQN: fqn, Passed: false, ErrorMessage: msg}
	}

	return CompareFingerprints(base, *current)
}

// CurrentFingerprint reads a model's row count and content hash from the
// warehouse. Empty tables carry a nil hash.
func (v *Verifier) CurrentFingerprint(ctx context.Context, fqn string) (*Fingerprint, error) {
	rows, _, err := v.q.Query(ctx, "SELECT COUNT(*) FROM "+fqn)
	if err != nil {
		return nil, err
	}
	var rowCount int64
	if len(rows) > 0 {
		rowCount, _ = warehouse.ToInt64(rows[0][0])
	}

	var hash *int64
	if rowCount > 0 {
		hash = v.contentHash(ctx, fqn)
		if hash == nil {
			v.log.Warn("could not compute content hash", zap.String("fqn", fqn))
		}
	}

	return &Fingerprint{
		ModelName:   modelNameOf(fqn),
		FQN:         fqn,
		RowCount:    rowCount,
		ContentHash: hash,
		Timestamp:   time.Now().UTC(),
	}, nil
}

// contentHash prefers HASH_AGG(HASH(*)), which is order-independent, and
// falls back to SUM(HASH(*)) where HASH_AGG is unavailable. The fallback can
// collide but row counts are compared first.
func (v *Verifier) contentHash(ctx context.Context, fqn string) *int64 {
	if h := v.tryHash(ctx, "SELECT HASH_AGG(HASH(*)) FROM "+fqn); h != nil {
		return h
	}
	v.log.Warn("HASH_AGG unavailable, falling back to SUM(HASH(*))", zap.String("fqn", fqn))
	return v.tryHash(ctx, "SELECT SUM(HASH(*)) FROM "+fqn)
}

func (v *Verifier) tryHash(ctx context.Context, sql string) *int64 {
	rows, _, err := v.q.Query(ctx, sql)
	if err != nil {
		v.log.Debug("hash query failed", zap.Error(err))
		return nil
	}
	if len(rows) == 0 || rows[0][0] == nil {
		return nil
	}
	h, ok := warehouse.ToInt64(rows[0][0])
	if !ok {
		return nil
	}
	return &h
}

// CompareFingerprints applies the verification policy: row counts first,
// then content hashes when both sides have one and the table is non-empty.
// A one-sided hash is indeterminate and warns without failing.
func CompareFingerprints(baseline, current Fingerprint) Result {
	result := Result{
		ModelName:        current.ModelName,
		FQN:              current.FQN,
		Passed:           true,
		BaselineRowCount: int64Ptr(baseline.RowCount),
		CurrentRowCount:  int64Ptr(current.RowCount),
		BaselineHash:     baseline.ContentHash,
		CurrentHash:      current.ContentHash,
	}

	rowCountMatch := baseline.RowCount == current.RowCount
	result.RowCountMatch = boolPtr(rowCountMatch)

	var errs []string
	if !rowCountMatch {
		result.Passed = false
		errs = append(errs, fmt.Sprintf("Row count mismatch: expected %d, got %d",
			baseline.RowCount, current.RowCount))
	}

	switch {
	case rowCountMatch && current.RowCount > 0:
		switch {
		case baseline.ContentHash != nil && current.ContentHash != nil:
			hashMatch := *baseline.ContentHash == *current.ContentHash
			result.HashMatch = boolPtr(hashMatch)
			if !hashMatch {
				result.Passed = false
				errs = append(errs, fmt.Sprintf("Content hash mismatch: expected %d, got %d",
					*baseline.ContentHash, *current.ContentHash))
			}
		case baseline.ContentHash != nil:
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Could not compute current content hash for comparison (baseline hash: %d)",
				*baseline.ContentHash))
		case current.ContentHash != nil:
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"Current content hash computed but baseline has none (current hash: %d)",
				*current.ContentHash))
		}
	case rowCountMatch:
		// Both sides empty: hashes are vacuously equal.
		result.HashMatch = boolPtr(true)
	}

	result.ErrorMessage = strings.Join(errs, " | ")
	return result
}

func modelNameOf(fqn string) string {
	parts := strings.Split(fqn, ".")
	return parts[len(parts)-1]
}
