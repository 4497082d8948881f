package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/warehouse"
)

// fakeSession replays canned responses keyed by a substring of the SQL.
type fakeSession struct {
	responses []fakeResponse
	lastID    string
	lastIDErr error
	calls     []string
}

type fakeResponse struct {
	match string
	rows  [][]any
	err   error
}

func (f *fakeSession) Query(_ context.Context, query string, _ ...any) ([][]any, []string, error) {
	f.calls = append(f.calls, query)
	for _, r := range f.responses {
		if strings.Contains(query, r.match) {
			return r.rows, nil, r.err
		}
	}
	return nil, nil, nil
}

func (f *fakeSession) LastQueryID(context.Context) (string, error) {
	return f.lastID, f.lastIDErr
}

func (f *fakeSession) SessionInfo(context.Context) (*warehouse.SessionInfo, error) {
	return &warehouse.SessionInfo{Warehouse: "COMPUTE_WH", Database: "DBT_DEMO", Schema: "DEV"}, nil
}

func historyRow(id, text string, elapsed, bytes, rows, partitions int64) []any {
	return []any{id, text, elapsed, bytes, rows, partitions, int64(100)}
}

func TestDDLPatternMatch(t *testing.T) {
	records := []historyRecord{
		{QueryID: "q1", QueryText: "CREATE OR REPLACE VIEW DBT_DEMO.DEV.STG_TRADES AS SELECT 1"},
		{QueryID: "q2", QueryText: "create or replace transient table dbt_demo.dev.fact_portfolio_summary as select 1"},
		{QueryID: "q3", QueryText: "SELECT * FROM somewhere"},
		{QueryID: "q4", QueryText: "CREATE TABLE DBT_DEMO.DEV.UNRELATED AS SELECT 1"},
	}
	models := []string{"stg_trades", "fact_portfolio_summary"}

	matched := DDLPatternMatch{}.Match(records, models)
	require.Len(t, matched["stg_trades"], 1)
	assert.Equal(t, "q1", matched["stg_trades"][0].QueryID)
	require.Len(t, matched["fact_portfolio_summary"], 1)
	assert.Equal(t, "q2", matched["fact_portfolio_summary"][0].QueryID)
}

func TestDDLPatternMatch_FirstMatchWins(t *testing.T) {
	records := []historyRecord{
		{QueryID: "q1", QueryText: "CREATE VIEW D.S.STG_TRADES AS SELECT 1"},
	}
	// Both models have the same name; only the first gets the record.
	matched := DDLPatternMatch{}.Match(records, []string{"stg_trades", "STG_TRADES"})
	assert.Len(t, matched["stg_trades"], 1)
	assert.Empty(t, matched["STG_TRADES"])
}

func TestDirectIDLookup(t *testing.T) {
	records := []historyRecord{
		{QueryID: "q-a", ExecutionTimeMs: 10},
		{QueryID: "q-b", ExecutionTimeMs: 20},
	}
	matched := DirectIDLookup{IDs: map[string]string{"a": "q-a", "b": "q-missing"}}.
		Match(records, []string{"a", "b"})
	require.Len(t, matched["a"], 1)
	assert.Equal(t, int64(10), matched["a"][0].ExecutionTimeMs)
	assert.Empty(t, matched["b"])
}

func TestCollectBuild_Aggregates(t *testing.T) {
	session := &fakeSession{responses: []fakeResponse{{
		match: "QUERY_HISTORY",
		rows: [][]any{
			historyRow("q1", "CREATE OR REPLACE VIEW D.S.STG_TRADES AS SELECT 1", 100, 1000, 10, 2),
			historyRow("q2", "CREATE OR REPLACE TABLE D.S.STG_TRADES AS SELECT 1", 50, 500, 5, 1),
			historyRow("q3", "CREATE OR REPLACE VIEW D.S.OTHER AS SELECT 1", 999, 9999, 99, 9),
		},
	}}}
	c := NewCollector(session, 15, zap.NewNop())

	got := c.CollectBuild(context.Background(), "A", time.Now().UTC(),
		[]string{"stg_trades"}, []string{"D.S.STG_TRADES"})

	assert.Equal(t, "A", got.PipelineID)
	assert.Equal(t, int64(150), got.TotalExecutionTimeMs)
	assert.Equal(t, int64(1500), got.TotalBytesScanned)
	assert.Equal(t, int64(15), got.TotalRowsProduced)
	assert.Equal(t, int64(3), got.TotalPartitionsScanned)
	assert.Equal(t, "COMPUTE_WH", got.Warehouse)

	require.Len(t, got.ModelDetails, 1)
	assert.Equal(t, 2, got.ModelDetails[0].QueryCount)
	assert.Equal(t, "D.S.STG_TRADES", got.ModelDetails[0].FQN)
	assert.Nil(t, got.ModelDetails[0].RowCount)
}

func TestCollectBuild_NoMatchesYieldsZeros(t *testing.T) {
	session := &fakeSession{responses: []fakeResponse{{
		match: "QUERY_HISTORY",
		rows:  [][]any{historyRow("q1", "SELECT 1", 100, 100, 1, 1)},
	}}}
	c := NewCollector(session, 15, zap.NewNop())

	got := c.CollectBuild(context.Background(), "A", time.Now().UTC(),
		[]string{"stg_trades"}, nil)

	assert.Equal(t, int64(0), got.TotalExecutionTimeMs)
	require.Len(t, got.ModelDetails, 1)
	assert.Equal(t, 0, got.ModelDetails[0].QueryCount)
}

func TestCollectBuild_HistoryErrorDegradesToEmpty(t *testing.T) {
	session := &fakeSession{responses: []fakeResponse{{
		match: "QUERY_HISTORY",
		err:   errors.New("insufficient privileges"),
	}}}
	c := NewCollector(session, 15, zap.NewNop())

	got := c.CollectBuild(context.Background(), "A", time.Now().UTC(),
		[]string{"stg_trades"}, nil)

	assert.Equal(t, int64(0), got.TotalExecutionTimeMs)
	assert.Empty(t, got.ModelDetails)
}

func TestProbeFinalModels(t *testing.T) {
	session := &fakeSession{
		responses: []fakeResponse{
			{match: "FROM D.S.FACT", rows: [][]any{{int64(1234)}}},
			{match: "FROM D.S.BROKEN", err: errors.New("object does not exist")},
		},
		lastID: "probe-query-id",
	}
	c := NewCollector(session, 15, zap.NewNop())

	successful, failed := c.ProbeFinalModels(context.Background(), []ModelTarget{
		{Name: "fact", FQN: "D.S.FACT"},
		{Name: "broken", FQN: "D.S.BROKEN"},
	})

	require.Len(t, successful, 1)
	assert.Equal(t, int64(1234), successful[0].RowCount)
	assert.Equal(t, "probe-query-id", successful[0].QueryID)

	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0].ModelName)
	assert.Contains(t, failed[0].Error, "does not exist")
}

func TestCollectByQueryIDs(t *testing.T) {
	session := &fakeSession{responses: []fakeResponse{{
		match: "QUERY_ID IN",
		rows:  [][]any{historyRow("probe-1", "SELECT COUNT(*)", 40, 400, 1, 4)},
	}}}
	c := NewCollector(session, 15, zap.NewNop())

	got := c.CollectByQueryIDs(context.Background(), "A", []ProbeResult{
		{ModelName: "fact", FQN: "D.S.FACT", QueryID: "probe-1", RowCount: 1234},
		{ModelName: "ghost", FQN: "D.S.GHOST", QueryID: "probe-2", RowCount: 7},
	})

	assert.Equal(t, int64(40), got.TotalExecutionTimeMs)
	require.Len(t, got.ModelDetails, 2)

	fact := got.ModelDetails[0]
	assert.Equal(t, 1, fact.QueryCount)
	require.NotNil(t, fact.RowCount)
	assert.Equal(t, int64(1234), *fact.RowCount)

	// Probe present but history not yet populated: zeros, row count kept.
	ghost := got.ModelDetails[1]
	assert.Equal(t, 0, ghost.QueryCount)
	require.NotNil(t, ghost.RowCount)
	assert.Equal(t, int64(7), *ghost.RowCount)
}

func TestWaitForQueryIDs_ReturnsWhenVisible(t *testing.T) {
	session := &fakeSession{responses: []fakeResponse{{
		match: "QUERY_ID IN",
		rows:  [][]any{historyRow("q1", "", 1, 1, 1, 1)},
	}}}
	c := NewCollector(session, 15, zap.NewNop())
	c.pollInterval = time.Millisecond
	c.maxPollInterval = time.Millisecond

	err := c.WaitForQueryIDs(context.Background(), []string{"q1"}, time.Second)
	require.NoError(t, err)
	assert.Len(t, session.calls, 1)
}

func TestWaitForQueryIDs_DeadlineIsNotAnError(t *testing.T) {
	session := &fakeSession{} // never returns the IDs
	c := NewCollector(session, 15, zap.NewNop())
	c.pollInterval = time.Millisecond
	c.maxPollInterval = time.Millisecond

	err := c.WaitForQueryIDs(context.Background(), []string{"q1"}, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.Greater(t, len(session.calls), 1)
}

func TestWaitForQueryIDs_NoIDs(t *testing.T) {
	session := &fakeSession{}
	c := NewCollector(session, 15, zap.NewNop())

	require.NoError(t, c.WaitForQueryIDs(context.Background(), nil, time.Second))
	assert.Empty(t, session.calls)
}

func TestLookbackFloor(t *testing.T) {
	c := NewCollector(&fakeSession{}, 5, zap.NewNop())
	assert.Equal(t, 15, c.lookbackMinutes)

	c = NewCollector(&fakeSession{}, 30, zap.NewNop())
	assert.Equal(t, 30, c.lookbackMinutes)
}

func TestLookbackFor_WidensForOldStarts(t *testing.T) {
	c := NewCollector(&fakeSession{}, 15, zap.NewNop())
	assert.Equal(t, 15, c.lookbackFor(time.Now()))
	assert.GreaterOrEqual(t, c.lookbackFor(time.Now().Add(-time.Hour)), 65)
}
