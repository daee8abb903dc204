package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from Go duration strings
// ("5s", "1h30m") or integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(v)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration '%s': %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type ProviderConfig struct {
	Name           string   `yaml:"name"`
	MainnetURL     string   `yaml:"mainnet_url"`
	DevnetURL      string   `yaml:"devnet_url"`
	APIKeyEnv      string   `yaml:"api_key_env"` // env var holding the key; empty = no key
	Auth           string   `yaml:"auth"`        // url, header, none
	MonthlyQuota   int64    `yaml:"monthly_quota"`
	CostPerRequest float64  `yaml:"cost_per_request"`
	Priority       int      `yaml:"priority"`
	Capabilities   []string `yaml:"capabilities"`
	Enabled        bool     `yaml:"enabled"`
}

type Config struct {
	Environment string `yaml:"environment"`
	Network     string `yaml:"network"`
	Server      struct {
		Port            int      `yaml:"port"`
		ReadTimeout     Duration `yaml:"read_timeout"`
		WriteTimeout    Duration `yaml:"write_timeout"`
		ShutdownTimeout Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Providers []ProviderConfig `yaml:"providers"`
	Routing   struct {
		Policy           string   `yaml:"policy"`
		RequestTimeout   Duration `yaml:"request_timeout"`
		FailureThreshold int      `yaml:"failure_threshold"`
		Cooldown         Duration `yaml:"cooldown"`
	} `yaml:"routing"`
	Usage struct {
		AlertThreshold float64  `yaml:"alert_threshold"` // fraction of quota, e.g. 0.8
		AlertInterval  Duration `yaml:"alert_interval"`  // min time between alerts per provider
		SnapshotEvery  Duration `yaml:"snapshot_every"`  // 0 disables persistence
	} `yaml:"usage"`
	Cache struct {
		TTL struct {
			Hot    Duration `yaml:"hot"`
			Warm   Duration `yaml:"warm"`
			Cold   Duration `yaml:"cold"`
			Frozen Duration `yaml:"frozen"`
		} `yaml:"ttl"`
		MemoryMaxSize int `yaml:"memory_max_size"`
		Redis         struct {
			Enabled  bool   `yaml:"enabled"`
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	Batch struct {
		MaxSize int      `yaml:"max_size"`
		MaxWait Duration `yaml:"max_wait"`
	} `yaml:"batch"`
	Webhook struct {
		AuthToken    string   `yaml:"auth_token"`
		RatePerMin   float64  `yaml:"rate_per_min"` // per-source deliveries per minute
		AckMalformed bool     `yaml:"ack_malformed"`
		LargeAmount  float64  `yaml:"large_amount"`   // large-transfer signal threshold
		StrengthCap  float64  `yaml:"strength_scale"` // amount mapping to strength 1.0
		HighFee      uint64   `yaml:"high_fee"`       // lamports
		MintSeenTTL  Duration `yaml:"mint_seen_ttl"`
	} `yaml:"webhook"`
	Stream struct {
		Enabled        bool     `yaml:"enabled"`
		URL            string   `yaml:"url"`
		APIKeyEnv      string   `yaml:"api_key_env"`
		Accounts       []string `yaml:"accounts"`
		ReconnectDelay Duration `yaml:"reconnect_delay"`
		PingInterval   Duration `yaml:"ping_interval"`
	} `yaml:"stream"`
	Downstream struct {
		DecisionURL string   `yaml:"decision_url"`
		WorkflowURL string   `yaml:"workflow_url"`
		Timeout     Duration `yaml:"timeout"`
	} `yaml:"downstream"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalTopic  string   `yaml:"signal_topic"`
		LogTopic     string   `yaml:"log_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int      `yaml:"max_attempts"`
			Linger       Duration `yaml:"linger"`
			BatchBytes   int      `yaml:"batch_bytes"`
			BatchSize    int      `yaml:"batch_size"`
			WriteTimeout Duration `yaml:"write_timeout"`
			ReadTimeout  Duration `yaml:"read_timeout"`
			Async        bool     `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool     `yaml:"enabled"`
		Host             string   `yaml:"host"`
		Port             int      `yaml:"port"`
		Database         string   `yaml:"database"`
		User             string   `yaml:"user"`
		Password         string   `yaml:"password"`
		UseHTTP          bool     `yaml:"use_http"`
		AsyncInsert      bool     `yaml:"async_insert"`
		WaitForAsync     bool     `yaml:"wait_for_async_insert"`
		DialTimeout      Duration `yaml:"dial_timeout"`
		ReadTimeout      Duration `yaml:"read_timeout"`
		WriteTimeout     Duration `yaml:"write_timeout"`
		MaxExecutionTime Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	AlertQueue struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Workers  int    `yaml:"workers"`
	} `yaml:"alert_queue"`
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

	if v := os.Getenv("SOLGATE_NETWORK"); v != "" {
		c.Network = v
	}
	if v := os.Getenv("SOLGATE_ROUTING_POLICY"); v != "" {
		c.Routing.Policy = v
	}
	if v := os.Getenv("WEBHOOK_AUTH_TOKEN"); v != "" {
		c.Webhook.AuthToken = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.AlertQueue.Host = v
		c.Cache.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Network == "" {
		c.Network = "mainnet"
	}
	if c.Routing.Policy == "" {
		c.Routing.Policy = "cost_optimized"
	}
	if c.Routing.RequestTimeout == 0 {
		c.Routing.RequestTimeout = Duration(10 * time.Second)
	}
	if c.Routing.FailureThreshold == 0 {
		c.Routing.FailureThreshold = 3
	}
	if c.Routing.Cooldown == 0 {
		c.Routing.Cooldown = Duration(5 * time.Minute)
	}
	if c.Usage.AlertThreshold == 0 {
		c.Usage.AlertThreshold = 0.8
	}
	if c.Usage.AlertInterval == 0 {
		c.Usage.AlertInterval = Duration(time.Hour)
	}
	if c.Cache.TTL.Hot == 0 {
		c.Cache.TTL.Hot = Duration(5 * time.Second)
	}
	if c.Cache.TTL.Warm == 0 {
		c.Cache.TTL.Warm = Duration(30 * time.Second)
	}
	if c.Cache.TTL.Cold == 0 {
		c.Cache.TTL.Cold = Duration(5 * time.Minute)
	}
	if c.Cache.TTL.Frozen == 0 {
		c.Cache.TTL.Frozen = Duration(24 * time.Hour)
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 10000
	}
	if c.Batch.MaxSize == 0 {
		c.Batch.MaxSize = 100
	}
	if c.Batch.MaxWait == 0 {
		c.Batch.MaxWait = Duration(2 * time.Second)
	}
	if c.Webhook.RatePerMin == 0 {
		c.Webhook.RatePerMin = 120
	}
	if c.Webhook.LargeAmount == 0 {
		c.Webhook.LargeAmount = 10000
	}
	if c.Webhook.StrengthCap == 0 {
		c.Webhook.StrengthCap = 100000
	}
	if c.Webhook.HighFee == 0 {
		c.Webhook.HighFee = 100000
	}
	if c.Webhook.MintSeenTTL == 0 {
		c.Webhook.MintSeenTTL = Duration(24 * time.Hour)
	}
	if c.Stream.ReconnectDelay == 0 {
		c.Stream.ReconnectDelay = Duration(5 * time.Second)
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = Duration(30 * time.Second)
	}
	if c.Downstream.Timeout == 0 {
		c.Downstream.Timeout = Duration(10 * time.Second)
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name '%s'", p.Name)
		}
		seen[p.Name] = true
		if p.MainnetURL == "" {
			return fmt.Errorf("provider '%s': mainnet_url is required", p.Name)
		}
		if p.MonthlyQuota <= 0 {
			return fmt.Errorf("provider '%s': monthly_quota must be positive", p.Name)
		}
	}
	switch c.Routing.Policy {
	case "cost_optimized", "performance_first", "round_robin", "enhanced_data_first":
	default:
		return fmt.Errorf("routing.policy must be one of cost_optimized, performance_first, round_robin, enhanced_data_first, got '%s'", c.Routing.Policy)
	}
	if c.Webhook.AuthToken == "" {
		return fmt.Errorf("webhook.auth_token is required")
	}
	if c.Usage.AlertThreshold <= 0 || c.Usage.AlertThreshold > 1 {
		return fmt.Errorf("usage.alert_threshold must be in (0,1]")
	}
	return nil
}
