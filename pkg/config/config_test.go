package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/pkg/util"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, c.Consensus.WindowDuration())
	assert.Equal(t, 3, c.Consensus.MinSources)
	assert.Equal(t, 70.0, c.Consensus.ThresholdPct)
	assert.True(t, c.Consensus.DrainOnShutdown)
	assert.Equal(t, 0.1, c.Weights.Alpha)
	assert.Equal(t, 2.0, c.Detectors.SigmaThreshold)
	assert.Equal(t, 0.05, c.Detectors.PValueThreshold)
	assert.Equal(t, 0.3, c.Detectors.CorrelationChangeThreshold)
	assert.Equal(t, []int{1}, c.Detectors.AutocorrelationLags)
	assert.Equal(t, 168, c.Detectors.PairWindowSamples())
	assert.Equal(t, "consensus.approved", c.Kafka.Topics.Approved)
	assert.Equal(t, "consensus.failed", c.Kafka.Topics.Failed)
	assert.Equal(t, []string{"localhost:9092"}, c.Kafka.Brokers)
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := `
environment: test
consensus:
  window_duration_seconds: 0.5
  min_sources: 2
  drain_on_shutdown: false
detectors:
  correlation_pairs:
    - [BTC, ETH]
kafka:
  brokers: ["kafka:9092"]
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, c.Consensus.WindowDuration())
	assert.Equal(t, 2, c.Consensus.MinSources)
	assert.False(t, c.Consensus.DrainOnShutdown)
	assert.Equal(t, [][]string{{"BTC", "ETH"}}, c.Detectors.CorrelationPairs)
	assert.Equal(t, []string{"kafka:9092"}, c.Kafka.Brokers)
}

func TestParseRejectsFatalSettings(t *testing.T) {
	cases := map[string]string{
		"zero min sources":     "consensus:\n  min_sources: 0\n",
		"zero window":          "consensus:\n  window_duration_seconds: 0\n",
		"negative window":      "consensus:\n  window_duration_seconds: -1\n",
		"threshold above 100":  "consensus:\n  consensus_threshold_pct: 150\n",
		"zero threshold":       "consensus:\n  consensus_threshold_pct: 0\n",
		"self pair":            "detectors:\n  correlation_pairs:\n    - [BTC, BTC]\n",
		"finnhub without key":  "finnhub:\n  enabled: true\n  symbols: [BTC]\n",
		"min window too large": "detectors:\n  min_window_size: 80\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o600))

	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MIN_SOURCES", "4")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, 4, c.Consensus.MinSources)
}

func TestSampleConfigPairsMatchStreamSymbols(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, c.Detectors.CorrelationPairs)

	streamed := make(map[string]bool, len(c.Finnhub.Symbols))
	for _, s := range c.Finnhub.Symbols {
		streamed[util.NormalizeToken(s)] = true
	}
	for _, pair := range c.Detectors.CorrelationPairs {
		for _, token := range pair {
			assert.True(t, streamed[util.NormalizeToken(token)], "pair token %s is not streamed", token)
		}
	}
}
