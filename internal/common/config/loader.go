// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// Enable ENV override like CACHE_REDIS_ADDRESS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// setDefaults registers defaults before unmarshal so that booleans defaulting
// to true (include_session_in_key) survive an absent config section.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "bedrock-router")
	v.SetDefault("app.metrics_addr", ":9102")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("intake.wait_time_seconds", 20)
	v.SetDefault("intake.idle_backoff", 2000)

	v.SetDefault("cache.ttl_seconds", 3600)
	v.SetDefault("cache.include_session_in_key", true)
	v.SetDefault("cache.accelerator.enabled", true)
	v.SetDefault("cache.accelerator.max_cost_bytes", 64<<20)
	v.SetDefault("cache.accelerator.num_counters", 100000)

	v.SetDefault("pipeline.max_batch_size", 10)
	v.SetDefault("pipeline.invoke_timeout", 30000)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.initial_backoff", 100)
	v.SetDefault("pipeline.max_backoff", 5000)
}

// overrideEmptyConfig applies direct env overrides for values that commonly
// arrive through the environment rather than the config file.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Intake.QueueURL == "" {
		if val := os.Getenv("INTAKE_QUEUE_URL"); val != "" {
			cfg.Intake.QueueURL = val
		}
	}
	if cfg.Intake.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Intake.Region = val
		}
	}
	if cfg.Bedrock.Region == "" {
		if val := os.Getenv("AWS_REGION"); val != "" {
			cfg.Bedrock.Region = val
		}
	}
	if cfg.Cache.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Cache.Redis.Address = val
		}
	}
	if cfg.Cache.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Cache.Redis.Password = val
		}
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Intake.QueueURL == "" {
		return fmt.Errorf("intake.queue_url is required")
	}
	if cfg.Cache.Redis.Address == "" {
		return fmt.Errorf("cache.redis.address is required")
	}
	if len(cfg.Routing.Applications) == 0 {
		return fmt.Errorf("routing.applications must have at least one entry")
	}
	for app, route := range cfg.Routing.Applications {
		if route.AgentID == "" {
			return fmt.Errorf("routing.applications.%s.agent_id is required", app)
		}
		if len(route.AgentID) > 128 {
			return fmt.Errorf("routing.applications.%s.agent_id exceeds 128 characters", app)
		}
	}
	if cfg.Pipeline.MaxBatchSize < 1 || cfg.Pipeline.MaxBatchSize > 10 {
		return fmt.Errorf("pipeline.max_batch_size must be between 1 and 10")
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
