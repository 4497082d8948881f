// Package metrics collects query performance data from the warehouse query
// history and aggregates it per model and per pipeline.
package metrics

import "time"

// QueryStat is one query-history record attributed to a model.
type QueryStat struct {
	QueryID           string `json:"query_id"`
	ExecutionTimeMs   int64  `json:"execution_time_ms"`
	BytesScanned      int64  `json:"bytes_scanned"`
	RowsProduced      int64  `json:"rows_produced"`
	PartitionsScanned int64  `json:"partitions_scanned"`
	PartitionsTotal   int64  `json:"partitions_total"`
}

// ModelMetric aggregates the queries attributed to one model. RowCount is
// only set for query-time probes, where the probe itself counted the rows.
type ModelMetric struct {
	ModelName              string `json:"model_name"`
	FQN                    string `json:"fqn"`
	TotalExecutionTimeMs   int64  `json:"total_execution_time_ms"`
	TotalBytesScanned      int64  `json:"total_bytes_scanned"`
	TotalRowsProduced      int64  `json:"total_rows_produced"`
	TotalPartitionsScanned int64  `json:"total_partitions_scanned"`
	QueryCount             int    `json:"query_count"`
	RowCount               *int64 `json:"row_count,omitempty"`
}

// PipelineMetrics is the pipeline-level rollup. A pipeline with no matched
// queries carries all-zero totals, never an error.
type PipelineMetrics struct {
	PipelineID             string        `json:"pipeline_id"`
	Timestamp              time.Time     `json:"timestamp"`
	TotalExecutionTimeMs   int64         `json:"total_execution_time_ms"`
	TotalBytesScanned      int64         `json:"total_bytes_scanned"`
	TotalRowsProduced      int64         `json:"total_rows_produced"`
	TotalPartitionsScanned int64         `json:"total_partitions_scanned"`
	ModelDetails           []ModelMetric `json:"model_details"`
	Warehouse              string        `json:"warehouse,omitempty"`
	Database               string        `json:"database,omitempty"`
	Schema                 string        `json:"schema,omitempty"`
	CollectionTimestamp    time.Time     `json:"collection_timestamp"`
}

// addModel accumulates a model's totals into the pipeline rollup.
func (p *PipelineMetrics) addModel(m ModelMetric) {
	p.TotalExecutionTimeMs += m.TotalExecutionTimeMs
	p.TotalBytesScanned += m.TotalBytesScanned
	p.TotalRowsProduced += m.TotalRowsProduced
	p.TotalPartitionsScanned += m.TotalPartitionsScanned
	p.ModelDetails = append(p.ModelDetails, m)
}
