package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/benchtools/pipebench/internal/warehouse"
)

// Session is the warehouse surface the collector needs. All statements must
// share one session so LAST_QUERY_ID() reflects the collector's own probes.
type Session interface {
	Query(ctx context.Context, query string, args ...any) ([][]any, []string, error)
	LastQueryID(ctx context.Context) (string, error)
	SessionInfo(ctx context.Context) (*warehouse.SessionInfo, error)
}

// ModelTarget names a model to probe.
type ModelTarget struct {
	Name string
	FQN  string
}

// ProbeResult records one successful COUNT(*) probe and the query ID it ran
// under.
type ProbeResult struct {
	ModelName string `json:"model_name"`
	FQN       string `json:"fqn"`
	QueryID   string `json:"query_id"`
	RowCount  int64  `json:"row_count"`
}

// ProbeFailure records one probe that could not complete. Probe failures are
// per-model and never abort the batch.
type ProbeFailure struct {
	ModelName string `json:"model_name"`
	FQN       string `json:"fqn"`
	Error     string `json:"error"`
}

// Collector reads the warehouse query history and rolls it up per pipeline.
// History collection degrades to zeros on failure: a telemetry outage never
// fails a benchmark run.
type Collector struct {
	session         Session
	lookbackMinutes int
	log             *zap.Logger

	// poll pacing, overridable in tests
	pollInterval    time.Duration
	maxPollInterval time.Duration
}

// historyLookbackFloor absorbs query-history population lag.
const historyLookbackFloor = 15

// NewCollector builds a Collector. lookbackMinutes is lower-bounded at the
// history population floor.
func NewCollector(session Session, lookbackMinutes int, log *zap.Logger) *Collector {
	if lookbackMinutes < historyLookbackFloor {
		lookbackMinutes = historyLookbackFloor
	}
	return &Collector{
		session:         session,
		lookbackMinutes: lookbackMinutes,
		log:             log,
		pollInterval:    2 * time.Second,
		maxPollInterval: 10 * time.Second,
	}
}

// CollectBuild gathers build-time metrics for a pipeline execution by
// scanning recent query history and attributing DDL statements to models.
func (c *Collector) CollectBuild(ctx context.Context, pipelineID string, startedAt time.Time, executedModels, fqnModels []string) *PipelineMetrics {
	result := c.emptyResult(ctx, pipelineID, startedAt)

	records, err := c.queryHistory(ctx, c.lookbackFor(startedAt))
	if err != nil {
		c.log.Error("query history collection failed, recording zero metrics",
			zap.String("pipeline", pipelineID), zap.Error(err))
		return result
	}
	if len(records) == 0 {
		c.log.Warn("no queries found in history window", zap.String("pipeline", pipelineID))
		return result
	}
	c.log.Debug("retrieved query history", zap.Int("records", len(records)))

	matched := DDLPatternMatch{}.Match(records, executedModels)
	for _, model := range executedModels {
		metric := ModelMetric{ModelName: model, FQN: fqnFor(model, fqnModels)}
		for _, rec := range matched[model] {
			metric.TotalExecutionTimeMs += rec.ExecutionTimeMs
			metric.TotalBytesScanned += rec.BytesScanned
			metric.TotalRowsProduced += rec.RowsProduced
			metric.TotalPartitionsScanned += rec.PartitionsScanned
			metric.QueryCount++
		}
		if metric.QueryCount == 0 {
			c.log.Debug("no history records matched model", zap.String("model", model))
		}
		result.addModel(metric)
	}

	c.log.Info("collected build metrics",
		zap.String("pipeline", pipelineID),
		zap.Int64("execution_time_ms", result.TotalExecutionTimeMs),
		zap.Int64("bytes_scanned", result.TotalBytesScanned),
		zap.Int64("rows_produced", result.TotalRowsProduced))
	return result
}

// ProbeFinalModels runs SELECT COUNT(*) against each final model and
// captures the query ID of each probe. Individual failures are collected and
// reported, not fatal.
func (c *Collector) ProbeFinalModels(ctx context.Context, targets []ModelTarget) ([]ProbeResult, []ProbeFailure) {
	var successful []ProbeResult
	var failed []ProbeFailure

	for _, t := range targets {
		rows, _, err := c.session.Query(ctx, "SELECT COUNT(*) FROM "+t.FQN)
		if err != nil {
			c.log.Warn("probe failed", zap.String("model", t.Name), zap.Error(err))
			failed = append(failed, ProbeFailure{ModelName: t.Name, FQN: t.FQN, Error: err.Error()})
			continue
		}
		var count int64
		if len(rows) > 0 {
			count, _ = warehouse.ToInt64(rows[0][0])
		}

		queryID, err := c.session.LastQueryID(ctx)
		if err != nil {
			c.log.Warn("query id capture failed", zap.String("model", t.Name), zap.Error(err))
			failed = append(failed, ProbeFailure{ModelName: t.Name, FQN: t.FQN, Error: err.Error()})
			continue
		}

		successful = append(successful, ProbeResult{
			ModelName: t.Name,
			FQN:       t.FQN,
			QueryID:   queryID,
			RowCount:  count,
		})
		c.log.Debug("probe complete",
			zap.String("model", t.Name),
			zap.String("query_id", queryID),
			zap.Int64("rows", count))
	}

	c.log.Info("model probes complete",
		zap.Int("successful", len(successful)),
		zap.Int("failed", len(failed)))
	return successful, failed
}

// CollectByQueryIDs gathers query-time metrics by direct query-ID lookup in
// the history, one record per probe.
func (c *Collector) CollectByQueryIDs(ctx context.Context, pipelineID string, probes []ProbeResult) *PipelineMetrics {
	result := c.emptyResult(ctx, pipelineID, time.Now().UTC())
	if len(probes) == 0 {
		c.log.Warn("no probes to collect metrics for", zap.String("pipeline", pipelineID))
		return result
	}

	records, err := c.queryHistoryByIDs(ctx, probeQueryIDs(probes))
	if err != nil {
		c.log.Error("query-id history lookup failed, recording zero metrics",
			zap.String("pipeline", pipelineID), zap.Error(err))
		records = nil
	}

	ids := make(map[string]string, len(probes))
	models := make([]string, 0, len(probes))
	byModel := make(map[string]ProbeResult, len(probes))
	for _, p := range probes {
		ids[p.ModelName] = p.QueryID
		models = append(models, p.ModelName)
		byModel[p.ModelName] = p
	}

	matched := DirectIDLookup{IDs: ids}.Match(records, models)
	for _, model := range models {
		probe := byModel[model]
		rowCount := probe.RowCount
		metric := ModelMetric{ModelName: model, FQN: probe.FQN, RowCount: &rowCount}
		for _, rec := range matched[model] {
			metric.TotalExecutionTimeMs += rec.ExecutionTimeMs
			metric.TotalBytesScanned += rec.BytesScanned
			metric.TotalRowsProduced += rec.RowsProduced
			metric.TotalPartitionsScanned += rec.PartitionsScanned
			metric.QueryCount++
		}
		result.addModel(metric)
	}

	c.log.Info("collected query-time metrics",
		zap.String("pipeline", pipelineID),
		zap.Int64("execution_time_ms", result.TotalExecutionTimeMs))
	return result
}

// WaitForQueryIDs polls the history until every ID is visible or the
// deadline passes. The history populates asynchronously, so the wait backs
// off geometrically instead of sleeping a fixed interval.
func (c *Collector) WaitForQueryIDs(ctx context.Context, queryIDs []string, deadline time.Duration) error {
	if len(queryIDs) == 0 {
		return nil
	}

	interval := c.pollInterval
	expire := time.Now().Add(deadline)

	for {
		records, err := c.queryHistoryByIDs(ctx, queryIDs)
		if err == nil && len(records) >= len(queryIDs) {
			return nil
		}
		if err != nil {
			c.log.Debug("history poll failed", zap.Error(err))
		} else {
			c.log.Debug("history still populating",
				zap.Int("visible", len(records)),
				zap.Int("expected", len(queryIDs)))
		}

		if time.Now().After(expire) {
			c.log.Warn("query history did not fully populate before deadline",
				zap.Duration("deadline", deadline))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = time.Duration(float64(interval) * 1.5)
		if interval > c.maxPollInterval {
			interval = c.maxPollInterval
		}
	}
}

// lookbackFor widens the configured lookback when the pipeline started
// earlier than the window would cover.
func (c *Collector) lookbackFor(startedAt time.Time) int {
	minutes := int(time.Since(startedAt).Minutes()) + 5
	if minutes < c.lookbackMinutes {
		minutes = c.lookbackMinutes
	}
	return minutes
}

const historyColumns = "QUERY_ID, QUERY_TEXT, TOTAL_ELAPSED_TIME, BYTES_SCANNED, ROWS_PRODUCED, PARTITIONS_SCANNED, PARTITIONS_TOTAL"

func (c *Collector) queryHistory(ctx context.Context, lookbackMinutes int) ([]historyRecord, error) {
	sql := fmt.Sprintf(`SELECT %s
FROM TABLE(INFORMATION_SCHEMA.QUERY_HISTORY(
    END_TIME_RANGE_START => DATEADD(minute, -%d, CURRENT_TIMESTAMP()),
    RESULT_LIMIT => 10000
))
WHERE QUERY_TEXT NOT LIKE '%%INFORMATION_SCHEMA%%'
    AND QUERY_TEXT NOT LIKE '%%QUERY_HISTORY%%'
    AND QUERY_TEXT NOT LIKE '%%SHOW%%'
ORDER BY START_TIME DESC`, historyColumns, lookbackMinutes)

	rows, _, err := c.session.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return parseHistoryRows(rows), nil
}

func (c *Collector) queryHistoryByIDs(ctx context.Context, queryIDs []string) ([]historyRecord, error) {
	quoted := make([]string, len(queryIDs))
	for i, id := range queryIDs {
		quoted[i] = "'" + strings.ReplaceAll(id, "'", "''") + "'"
	}
	sql := fmt.Sprintf(`SELECT %s
FROM TABLE(INFORMATION_SCHEMA.QUERY_HISTORY(
    RESULT_LIMIT => 10000
))
WHERE QUERY_ID IN (%s)`, historyColumns, strings.Join(quoted, ", "))

	rows, _, err := c.session.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return parseHistoryRows(rows), nil
}

func parseHistoryRows(rows [][]any) []historyRecord {
	records := make([]historyRecord, 0, len(rows))
	for _, row := range rows {
		if len(row) < 7 {
			continue
		}
		rec := historyRecord{
			QueryID:   warehouse.ToString(row[0]),
			QueryText: warehouse.ToString(row[1]),
		}
		rec.ExecutionTimeMs, _ = warehouse.ToInt64(row[2])
		rec.BytesScanned, _ = warehouse.ToInt64(row[3])
		rec.RowsProduced, _ = warehouse.ToInt64(row[4])
		rec.PartitionsScanned, _ = warehouse.ToInt64(row[5])
		rec.PartitionsTotal, _ = warehouse.ToInt64(row[6])
		records = append(records, rec)
	}
	return records
}

func (c *Collector) emptyResult(ctx context.Context, pipelineID string, ts time.Time) *PipelineMetrics {
	result := &PipelineMetrics{
		PipelineID:          pipelineID,
		Timestamp:           ts,
		ModelDetails:        []ModelMetric{},
		CollectionTimestamp: time.Now().UTC(),
	}
	if info, err := c.session.SessionInfo(ctx); err == nil {
		result.Warehouse = info.Warehouse
		result.Database = info.Database
		result.Schema = info.Schema
	}
	return result
}

func fqnFor(model string, fqns []string) string {
	suffix := "." + strings.ToUpper(model)
	for _, fqn := range fqns {
		if strings.HasSuffix(fqn, suffix) {
			return fqn
		}
	}
	return ""
}

func probeQueryIDs(probes []ProbeResult) []string {
	ids := make([]string, 0, len(probes))
	for _, p := range probes {
		if p.QueryID != "" {
			ids = append(ids, p.QueryID)
		}
	}
	return ids
}
