package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"SignalForge/pkg/util"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Logging     LoggingConfig    `yaml:"logging"`
	Consensus   ConsensusConfig  `yaml:"consensus"`
	Weights     WeightsConfig    `yaml:"weights"`
	Detectors   DetectorsConfig  `yaml:"detectors"`
	Engine      EngineConfig     `yaml:"engine"`
	Ingest      IngestConfig     `yaml:"ingest"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Finnhub     FinnhubConfig    `yaml:"finnhub"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"20s"`
	AllowOrigins    []string      `yaml:"allow_origins"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type LoggingConfig struct {
	Level     string          `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
	Format    string          `yaml:"format" default:"json" validate:"oneof=json console"`
	Output    string          `yaml:"output" default:"stdout"`
	Collector CollectorConfig `yaml:"collector"`
}

type CollectorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Topic       string        `yaml:"topic" default:"signalforge.logs"`
	Interval    time.Duration `yaml:"interval" default:"30s"`
	Threshold   int           `yaml:"threshold" default:"100"`
	CollectWarn bool          `yaml:"collect_warn"`
}

type ConsensusConfig struct {
	WindowDurationSeconds float64 `yaml:"window_duration_seconds" default:"5" validate:"gt=0"`
	MinSources            int     `yaml:"min_sources" default:"3" validate:"gte=1"`
	ThresholdPct          float64 `yaml:"consensus_threshold_pct" default:"70" validate:"gt=0,lte=100"`
	DrainOnShutdown       bool    `yaml:"drain_on_shutdown" default:"true"`
}

// WindowDuration converts the configured seconds into a duration.
func (c ConsensusConfig) WindowDuration() time.Duration {
	return time.Duration(c.WindowDurationSeconds * float64(time.Second))
}

type WeightsConfig struct {
	Alpha             float64       `yaml:"weight_alpha" default:"0.1" validate:"gt=0,lte=1"`
	Prior             float64       `yaml:"prior" default:"0.5" validate:"gte=0,lte=1"`
	PriorObservations int           `yaml:"prior_observations" default:"10" validate:"gte=0"`
	RetryMax          int           `yaml:"retry_max" default:"5" validate:"gte=0"`
	BackoffMin        time.Duration `yaml:"backoff_min" default:"200ms"`
	BackoffMax        time.Duration `yaml:"backoff_max" default:"10s"`
	WarmOnStart       bool          `yaml:"warm_on_start" default:"true"`
}

type DetectorsConfig struct {
	SourcePrefix               string        `yaml:"source_prefix" default:"signalforge" validate:"required"`
	SigmaThreshold             float64       `yaml:"sigma_threshold" default:"2.0" validate:"gt=0"`
	PValueThreshold            float64       `yaml:"p_value_threshold" default:"0.05" validate:"gt=0,lt=1"`
	RollingWindowSize          int           `yaml:"rolling_window_size" default:"50" validate:"gte=3"`
	MinWindowSize              int           `yaml:"min_window_size" default:"20" validate:"gte=3"`
	AutocorrelationLags        []int         `yaml:"autocorrelation_lags" default:"[1]" validate:"dive,gte=1"`
	CorrelationChangeThreshold float64       `yaml:"correlation_change_threshold" default:"0.3" validate:"gt=0,lte=2"`
	CorrelationWindowDays      float64       `yaml:"correlation_window_days" default:"7" validate:"gt=0"`
	CorrelationSampleInterval  time.Duration `yaml:"correlation_sample_interval" default:"1h"`
	MinPairWindow              int           `yaml:"min_pair_window" default:"10" validate:"gte=4"`
	CorrelationPairs           [][]string    `yaml:"correlation_pairs" validate:"dive,len=2"`
}

// PairWindowSamples is the number of co-observations in one correlation window.
func (c DetectorsConfig) PairWindowSamples() int {
	if c.CorrelationSampleInterval <= 0 {
		return c.MinPairWindow
	}
	n := int(c.CorrelationWindowDays * float64(24*time.Hour) / float64(c.CorrelationSampleInterval))
	if n < c.MinPairWindow {
		n = c.MinPairWindow
	}
	return n
}

type EngineConfig struct {
	Shards        int `yaml:"shards" default:"8" validate:"gte=1,lte=1024"`
	QueueCapacity int `yaml:"queue_capacity" default:"4096" validate:"gte=1"`
	OutputBuffer  int `yaml:"output_buffer" default:"1024" validate:"gte=1"`
}

type IngestConfig struct {
	MaxTicksPerSecond   float64 `yaml:"max_ticks_per_second" default:"50" validate:"gte=0"`
	RejectLogPerSecond  float64 `yaml:"reject_log_per_second" default:"1" validate:"gte=0"`
	PublishObservations bool    `yaml:"publish_observations"`
}

type KafkaConfig struct {
	Brokers      []string       `yaml:"brokers" default:"[\"localhost:9092\"]" validate:"required,min=1"`
	Topics       TopicsConfig   `yaml:"topics"`
	RequiredAcks int            `yaml:"required_acks" default:"-1"`
	Compression  string         `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     ProducerConfig `yaml:"producer"`
	Consumer     ConsumerConfig `yaml:"consumer"`
}

type TopicsConfig struct {
	Observations string `yaml:"observations" default:"observations" validate:"required"`
	Signals      string `yaml:"signals" default:"signals" validate:"required"`
	Feedback     string `yaml:"feedback" default:"feedback" validate:"required"`
	Approved     string `yaml:"approved" default:"consensus.approved" validate:"required"`
	Failed       string `yaml:"failed" default:"consensus.failed" validate:"required"`
}

type ProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	Linger       time.Duration `yaml:"linger" default:"50ms"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type ConsumerConfig struct {
	GroupID    string        `yaml:"group_id" default:"signalforge" validate:"required"`
	Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
	BufferSize int           `yaml:"buffer_size" default:"256"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
	DLQTopic   string        `yaml:"dlq_topic" default:"signalforge.dlq"`
	MinBytes   int           `yaml:"min_bytes" default:"1"`
	MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost" validate:"required"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"signalforge"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	Compress         bool          `yaml:"compress" default:"true"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	WeightsTable     string        `yaml:"weights_table" default:"signal_weights"`
	ConsensusTable   string        `yaml:"consensus_table" default:"consensus_results"`
	ArchiveResults   bool          `yaml:"archive_results" default:"true"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host" default:"localhost"`
	Port     int           `yaml:"port" default:"6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size" default:"10" validate:"gt=0"`
	Prefix   string        `yaml:"prefix" default:"signalforge"`
	TTL      time.Duration `yaml:"ttl" default:"24h"`
}

type FinnhubConfig struct {
	Enabled        bool          `yaml:"enabled"`
	APIKey         string        `yaml:"api_key"`
	WebSocketURL   string        `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
	Symbols        []string      `yaml:"symbols"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

var validate = validator.New()

// Default returns a configuration populated only from defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Parse applies defaults, then the YAML document, then validates.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// LoadWithEnv loads a .env file if present, then the YAML file, then applies
// environment overrides before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Finnhub.Symbols = util.SplitCSV(v)
	}
	c.Consensus.MinSources = util.ParseIntDefault(os.Getenv("MIN_SOURCES"), c.Consensus.MinSources)
	c.Engine.Shards = util.ParseIntDefault(os.Getenv("ENGINE_SHARDS"), c.Engine.Shards)
	if v := os.Getenv("FINNHUB_ENABLED"); v != "" {
		c.Finnhub.Enabled = v == "true" || v == "1"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Consensus.MinSources < 1 {
		return fmt.Errorf("consensus.min_sources must be >= 1, got %d", c.Consensus.MinSources)
	}
	if c.Consensus.WindowDuration() <= 0 {
		return fmt.Errorf("consensus.window_duration_seconds must be > 0")
	}
	if c.Consensus.ThresholdPct <= 0 || c.Consensus.ThresholdPct > 100 {
		return fmt.Errorf("consensus.consensus_threshold_pct must be in (0,100], got %v", c.Consensus.ThresholdPct)
	}
	if c.Detectors.MinWindowSize > c.Detectors.RollingWindowSize {
		return fmt.Errorf("detectors.min_window_size %d exceeds rolling_window_size %d", c.Detectors.MinWindowSize, c.Detectors.RollingWindowSize)
	}
	for _, p := range c.Detectors.CorrelationPairs {
		if strings.EqualFold(p[0], p[1]) {
			return fmt.Errorf("detectors.correlation_pairs: %s paired with itself", p[0])
		}
	}
	if c.Finnhub.Enabled {
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required when finnhub is enabled")
		}
		if len(c.Finnhub.Symbols) == 0 {
			return fmt.Errorf("finnhub.symbols cannot be empty when finnhub is enabled")
		}
	}
	return nil
}
