// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Bedrock  BedrockConfig  `mapstructure:"bedrock"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// IntakeConfig holds settings for the SQS intake queue.
type IntakeConfig struct {
	QueueURL        string `mapstructure:"queue_url"`
	Region          string `mapstructure:"region"`
	WaitTimeSeconds int    `mapstructure:"wait_time_seconds"`
	IdleBackoff     int    `mapstructure:"idle_backoff"` // milliseconds, applied after receive errors
}

// BedrockConfig holds settings for the Bedrock agent runtime client.
type BedrockConfig struct {
	Region string `mapstructure:"region"`
}

type CacheConfig struct {
	Redis               RedisConfig       `mapstructure:"redis"`
	TTLSeconds          int               `mapstructure:"ttl_seconds"`
	IncludeSessionInKey bool              `mapstructure:"include_session_in_key"`
	Accelerator         AcceleratorConfig `mapstructure:"accelerator"`
}

// TTL returns the cache entry lifetime as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AcceleratorConfig controls the optional in-process cache tier fronting Redis.
type AcceleratorConfig struct {
	Enabled      bool  `mapstructure:"enabled"`
	MaxCostBytes int64 `mapstructure:"max_cost_bytes"`
	NumCounters  int64 `mapstructure:"num_counters"`
}

// RoutingConfig maps application names to backend resources. The table is
// loaded once at startup and read-only afterwards. A "*" entry, if present,
// is an explicit wildcard; there is no implicit default agent.
type RoutingConfig struct {
	Applications map[string]RouteConfig `mapstructure:"applications"`
}

type RouteConfig struct {
	AgentID         string `mapstructure:"agent_id"`
	AgentAliasID    string `mapstructure:"agent_alias_id"`
	KnowledgeBaseID string `mapstructure:"knowledge_base_id"`
}

// PipelineConfig holds the per-item processing settings.
type PipelineConfig struct {
	MaxBatchSize   int `mapstructure:"max_batch_size"`
	InvokeTimeout  int `mapstructure:"invoke_timeout"`  // milliseconds
	MaxRetries     int `mapstructure:"max_retries"`     // transient invoke failures only
	InitialBackoff int `mapstructure:"initial_backoff"` // milliseconds
	MaxBackoff     int `mapstructure:"max_backoff"`     // milliseconds
}
