package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		SummaryTopic string   `yaml:"summary_topic"`
		BarsTopic    string   `yaml:"bars_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Cache struct {
		SummaryTTL  time.Duration `yaml:"summary_ttl"`
		FeaturesTTL time.Duration `yaml:"features_ttl"`
		DriftTTL    time.Duration `yaml:"drift_ttl"`
	} `yaml:"cache"`
	Training struct {
		URL       string        `yaml:"url"`
		ModelName string        `yaml:"model_name"`
		Timeout   time.Duration `yaml:"timeout"`
		Retries   int           `yaml:"retries"`
	} `yaml:"training"`
	Pipeline struct {
		Symbols           []string      `yaml:"symbols"`
		SessionStart      time.Duration `yaml:"session_start"`
		SessionEnd        time.Duration `yaml:"session_end"`
		BarInterval       time.Duration `yaml:"bar_interval"`
		Seed              int64         `yaml:"seed"`
		Horizon           int           `yaml:"horizon"`
		SplitCutoffDays   []int         `yaml:"split_cutoff_days"`
		SplitFraction     float64       `yaml:"split_fraction"`
		DriftBins         int           `yaml:"drift_bins"`
		MonitoredFeatures []string      `yaml:"monitored_features"`
		Workers           int           `yaml:"workers"`
		QueueSize         int           `yaml:"queue_size"`
		RunsPerMinute     int           `yaml:"runs_per_minute"`
	} `yaml:"pipeline"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	// Validate required fields
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("TRAINING_URL"); v != "" {
		c.Training.URL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Pipeline.Symbols = strings.Split(v, ",")
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Pipeline.SessionStart == 0 {
		c.Pipeline.SessionStart = 10 * time.Hour
	}
	if c.Pipeline.SessionEnd == 0 {
		c.Pipeline.SessionEnd = 16 * time.Hour
	}
	if c.Pipeline.BarInterval == 0 {
		c.Pipeline.BarInterval = time.Hour
	}
	if c.Pipeline.Horizon == 0 {
		c.Pipeline.Horizon = 3
	}
	if len(c.Pipeline.SplitCutoffDays) == 0 {
		c.Pipeline.SplitCutoffDays = []int{30, 60, 90, 120}
	}
	if c.Pipeline.SplitFraction == 0 {
		c.Pipeline.SplitFraction = 0.8
	}
	if c.Pipeline.DriftBins == 0 {
		c.Pipeline.DriftBins = 10
	}
	if len(c.Pipeline.MonitoredFeatures) == 0 {
		c.Pipeline.MonitoredFeatures = []string{"close", "volume", "ret_1", "sma_5", "sma_20", "vol_20"}
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.QueueSize == 0 {
		c.Pipeline.QueueSize = 16
	}
	if c.Training.ModelName == "" {
		c.Training.ModelName = "xgb_ret3m"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required")
	}
	if c.Pipeline.SessionEnd < c.Pipeline.SessionStart {
		return fmt.Errorf("pipeline.session_end must be >= session_start")
	}
	if c.Pipeline.BarInterval <= 0 {
		return fmt.Errorf("pipeline.bar_interval must be positive")
	}
	if c.Pipeline.Horizon < 1 {
		return fmt.Errorf("pipeline.horizon must be >= 1")
	}
	if f := c.Pipeline.SplitFraction; f <= 0 || f >= 1 {
		return fmt.Errorf("pipeline.split_fraction must be in (0, 1), got %v", f)
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers required when consumer is enabled")
	}
	return nil
}
