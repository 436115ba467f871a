package clickhouse

import "fmt"

// Tables names the tables SignalForge writes to.
type Tables struct {
	Database  string
	Weights   string
	Consensus string
}

// Qualified returns database.table, or table alone when no database is set.
func (t Tables) Qualified(table string) string {
	if t.Database == "" {
		return table
	}
	return t.Database + "." + table
}

// SchemaStatements returns idempotent DDL for the weight history and the consensus archive.
// Weight rows are append-only; the latest row per source wins on read.
func SchemaStatements(t Tables) []string {
	stmts := make([]string, 0, 3)
	if t.Database != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", t.Database))
	}
	stmts = append(stmts,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	time         DateTime64(3, 'UTC'),
	source_id    String,
	weight       Float64,
	accuracy     Nullable(Float64),
	observations UInt64
) ENGINE = MergeTree
ORDER BY (source_id, time)`, t.Qualified(t.Weights)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	time                 DateTime64(3, 'UTC'),
	opened_at            DateTime64(3, 'UTC'),
	token                LowCardinality(String),
	window_id            String,
	decision             LowCardinality(String),
	score                Nullable(Float64),
	contributing_sources Array(String),
	signal_ids           Array(String),
	correlation_id       String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(time)
ORDER BY (token, time)`, t.Qualified(t.Consensus)),
	)
	return stmts
}
