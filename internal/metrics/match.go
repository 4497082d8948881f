package metrics

import (
	"regexp"
	"strings"
)

// historyRecord is one row from the query-history table function.
type historyRecord struct {
	QueryID           string
	QueryText         string
	ExecutionTimeMs   int64
	BytesScanned      int64
	RowsProduced      int64
	PartitionsScanned int64
	PartitionsTotal   int64
}

// MatchStrategy attributes history records to model names.
type MatchStrategy interface {
	// Match returns model name -> attributed records. Every requested model
	// appears in the result, possibly with no records.
	Match(records []historyRecord, models []string) map[string][]historyRecord
}

// ddlPattern extracts the target object name from a build DDL statement.
var ddlPattern = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+REPLACE\s+)?(?:VIEW|TABLE|TRANSIENT\s+TABLE)\s+\S+\.(\w+)`)

// DDLPatternMatch attributes a record to the model whose name matches the
// DDL target. Each record matches at most one model: first match wins.
type DDLPatternMatch struct{}

func (DDLPatternMatch) Match(records []historyRecord, models []string) map[string][]historyRecord {
	out := make(map[string][]historyRecord, len(models))
	for _, m := range models {
		out[m] = nil
	}
	for _, rec := range records {
		groups := ddlPattern.FindStringSubmatch(rec.QueryText)
		if groups == nil {
			continue
		}
		target := strings.ToUpper(groups[1])
		for _, m := range models {
			if strings.ToUpper(m) == target {
				out[m] = append(out[m], rec)
				break
			}
		}
	}
	return out
}

// DirectIDLookup attributes records by exact query ID, for probes whose IDs
// were captured at execution time. The mapping is model name -> query ID.
type DirectIDLookup struct {
	IDs map[string]string
}

func (d DirectIDLookup) Match(records []historyRecord, models []string) map[string][]historyRecord {
	byID := make(map[string]historyRecord, len(records))
	for _, rec := range records {
		byID[rec.QueryID] = rec
	}
	out := make(map[string][]historyRecord, len(models))
	for _, m := range models {
		out[m] = nil
		if rec, ok := byID[d.IDs[m]]; ok {
			out[m] = []historyRecord{rec}
		}
	}
	return out
}
