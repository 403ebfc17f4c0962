package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Host            string        `yaml:"host"`
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"5m"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Binance struct {
		BaseURL             string        `yaml:"base_url" default:"https://fapi.binance.com" validate:"required,url"`
		Timeout             time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries          int           `yaml:"max_retries" default:"5" validate:"gte=0"`
		BackoffUnit         time.Duration `yaml:"backoff_unit" default:"1s"`
		RequestsPerSecond   float64       `yaml:"requests_per_second" default:"10" validate:"gt=0"`
		Burst               int           `yaml:"burst" default:"5" validate:"gt=0"`
		InterRequestDelay   time.Duration `yaml:"inter_request_delay" default:"2s"`
		MaxConsecutiveFails int           `yaml:"max_consecutive_failures" default:"3" validate:"gt=0"`
		UserAgent           string        `yaml:"user_agent" default:"futureshist/1.0"`
	} `yaml:"binance"`
	Backfill struct {
		Symbols []string `yaml:"symbols" validate:"dive,required"`
		Period  string   `yaml:"period" default:"1h"`
		Start   string   `yaml:"start"`
		End     string   `yaml:"end"`
		Days    int      `yaml:"days" default:"30" validate:"gt=0"`
		Series  []string `yaml:"series"`
	} `yaml:"backfill"`
	Sink struct {
		Type string `yaml:"type" default:"none" validate:"oneof=none clickhouse kafka"`
	} `yaml:"sink"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"futures.history.records"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"zstd"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Consumer     struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"futureshist-ingest"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
			MaxRetries int           `yaml:"max_retries" default:"3" validate:"gte=0"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"default"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		MaxOpenConns int           `yaml:"max_open_conns" default:"10"`
		Table        string        `yaml:"table" default:"futures_series"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr         string `yaml:"addr" default:"localhost:6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		PoolSize     int    `yaml:"pool_size" default:"10" validate:"gt=0"`
		MinIdleConns int    `yaml:"min_idle_conns" default:"2" validate:"gte=0"`
		Prefix       string `yaml:"prefix" default:"futureshist"`
	} `yaml:"redis"`
	Checkpoint struct {
		Type            string        `yaml:"type" default:"none" validate:"oneof=none memory redis badger"`
		TTL             time.Duration `yaml:"ttl" default:"168h"`
		Compress        bool          `yaml:"compress" default:"true"`
		Dir             string        `yaml:"dir" default:"./data/checkpoints"`
		CleanupInterval time.Duration `yaml:"cleanup_interval" default:"5m"`
		GCInterval      time.Duration `yaml:"gc_interval" default:"10m"`
		GCDiscardRatio  float64       `yaml:"gc_discard_ratio" default:"0.5" validate:"gt=0,lt=1"`
	} `yaml:"checkpoint"`
	Queue struct {
		Enabled bool   `yaml:"enabled"`
		Name    string `yaml:"name" default:"futureshist:jobs"`
		Workers int    `yaml:"workers" default:"2" validate:"gt=0"`
	} `yaml:"queue"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse fills defaults, decodes YAML over them and validates. Defaults go
// first so an explicit false or 0 in the file is kept.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path starts from defaults.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BINANCE_BASE_URL"); v != "" {
		c.Binance.BaseURL = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Backfill.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("PERIOD"); v != "" {
		c.Backfill.Period = v
	}
	if v := os.Getenv("SINK"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("CHECKPOINT"); v != "" {
		c.Checkpoint.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Sink.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when sink.type is kafka")
	}
	if c.Kafka.Consumer.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka.consumer is enabled")
	}
	return nil
}
