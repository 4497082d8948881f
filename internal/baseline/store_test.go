package baseline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/metrics"
	"github.com/benchtools/pipebench/internal/verify"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), zap.NewNop())
}

func sampleBaseline() *Baseline {
	hash := int64(-12345)
	return &Baseline{
		PipelineName: "Pipeline A",
		BuildMetrics: &metrics.PipelineMetrics{
			PipelineID:           "A",
			Timestamp:            time.Now().UTC(),
			TotalExecutionTimeMs: 5000,
			TotalBytesScanned:    1 << 20,
		},
		QueryMetrics: &metrics.PipelineMetrics{
			PipelineID:           "A",
			Timestamp:            time.Now().UTC(),
			TotalExecutionTimeMs: 120,
		},
		Fingerprints: []verify.Fingerprint{{
			ModelName:   "fact_portfolio_summary",
			FQN:         "DBT_DEMO.DEV.FACT_PORTFOLIO_SUMMARY",
			RowCount:    1234,
			ContentHash: &hash,
			Timestamp:   time.Now().UTC(),
		}},
		Metadata: Metadata{Timestamp: time.Now().UTC(), Username: "bench"},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(sampleBaseline()))
	assert.True(t, s.Exists("Pipeline A"))

	got, err := s.Load("Pipeline A")
	require.NoError(t, err)
	assert.Equal(t, "Pipeline A", got.PipelineName)
	assert.Equal(t, int64(5000), got.BuildMetrics.TotalExecutionTimeMs)
	require.Len(t, got.Fingerprints, 1)
	require.NotNil(t, got.Fingerprints[0].ContentHash)
	assert.Equal(t, int64(-12345), *got.Fingerprints[0].ContentHash)
}

func TestStore_PathLowercasesAndUnderscores(t *testing.T) {
	s := NewStore("baselines", zap.NewNop())
	assert.Equal(t,
		filepath.Join("baselines", "pipeline_a_baseline.json"),
		s.Path("Pipeline A"))
}

func TestStore_LoadMissing(t *testing.T) {
	s := newStore(t)
	_, err := s.Load("Pipeline A")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "Pipeline A", nfErr.PipelineName)
}

func TestStore_LegacyFormatRejected(t *testing.T) {
	s := newStore(t)
	legacy := `{"pipeline_name": "Pipeline A", "metrics": {}, "fingerprints": [], "metadata": {"timestamp": "2026-01-01T00:00:00Z"}}`
	require.NoError(t, os.MkdirAll(s.dir, 0755))
	require.NoError(t, os.WriteFile(s.Path("Pipeline A"), []byte(legacy), 0644))

	_, err := s.Load("Pipeline A")
	var fmtErr *FormatError
	require.ErrorAs(t, err, &fmtErr)
	assert.Contains(t, fmtErr.Message, "regenerate")
}

func TestStore_MissingRequiredFieldRejected(t *testing.T) {
	s := newStore(t)
	// query_metrics absent.
	partial := `{"pipeline_name": "Pipeline A", "build_metrics": {}, "fingerprints": [], "metadata": {"timestamp": "2026-01-01T00:00:00Z"}}`
	require.NoError(t, os.MkdirAll(s.dir, 0755))
	require.NoError(t, os.WriteFile(s.Path("Pipeline A"), []byte(partial), 0644))

	_, err := s.Load("Pipeline A")
	var fmtErr *FormatError
	require.ErrorAs(t, err, &fmtErr)
	assert.Contains(t, fmtErr.Message, "query_metrics")
}

func TestStore_SaveRejectsIncomplete(t *testing.T) {
	s := newStore(t)

	b := sampleBaseline()
	b.PipelineName = ""
	assert.Error(t, s.Save(b))

	b = sampleBaseline()
	b.QueryMetrics = nil
	assert.Error(t, s.Save(b))
}

func TestStore_Clear(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Save(sampleBaseline()))
	require.True(t, s.Exists("Pipeline A"))

	require.NoError(t, s.Clear("Pipeline A"))
	assert.False(t, s.Exists("Pipeline A"))

	// Clearing an absent baseline is a no-op.
	require.NoError(t, s.Clear("Pipeline A"))
}

func TestCollectMetadata_BestEffort(t *testing.T) {
	md := CollectMetadata("definitely-not-a-real-binary", zap.NewNop())
	assert.False(t, md.Timestamp.IsZero())
	assert.Empty(t, md.DbtVersion)
}
