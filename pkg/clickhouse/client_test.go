package clickhouse

import (
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsMapSettings(t *testing.T) {
	o := options(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "default",
		User:         "default",
		Password:     "pw",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  10 * time.Second,
		MaxExecTime:  60 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
		Compress:     true,
	})
	assert.Equal(t, []string{"ch:9000"}, o.Addr)
	assert.Equal(t, "pw", o.Auth.Password)
	assert.Equal(t, clickhouse.Native, o.Protocol)
	assert.Equal(t, 5*time.Second, o.DialTimeout)
	require.NotNil(t, o.Compression)
	assert.Equal(t, clickhouse.CompressionLZ4, o.Compression.Method)
	assert.Equal(t, 60, o.Settings["max_execution_time"])
	assert.Equal(t, 1, o.Settings["async_insert"])
	assert.Equal(t, 1, o.Settings["wait_for_async_insert"])

	o = options(ClientConfig{Host: "ch", Port: 8123, UseHTTP: true, MaxExecTime: 500 * time.Millisecond})
	assert.Equal(t, clickhouse.HTTP, o.Protocol)
	assert.Nil(t, o.Compression)
	assert.Empty(t, o.Settings)
}

func TestSchemaStatements(t *testing.T) {
	stmts := SchemaStatements(Tables{Database: "sf", Weights: "signal_weights", Consensus: "consensus_results"})
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS sf", stmts[0])
	assert.Contains(t, stmts[1], "sf.signal_weights")
	assert.Contains(t, stmts[1], "accuracy     Nullable(Float64)")
	assert.Contains(t, stmts[2], "sf.consensus_results")

	assert.Len(t, SchemaStatements(Tables{Weights: "w", Consensus: "c"}), 2)
}
