// Package config defines the recognized configuration surface for the
// runtime core (spec.md §6, expanded by SPEC_FULL.md §6). Components accept
// the slice of config they need rather than the whole struct, so embedding
// applications can wire only the sections relevant to them.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full recognized configuration surface.
type Config struct {
	Trigger    Trigger    `yaml:"trigger"`
	Evaluation Evaluation `yaml:"evaluation"`
	Reply      Reply      `yaml:"reply"`
	Experience Experience `yaml:"experience"`
	Learning   Learning   `yaml:"learning"`
	Prompt     Prompt     `yaml:"prompt"`
	Model      Model      `yaml:"model"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

// Trigger controls trigger-tool registration and the trigger scheduler.
// These options exist in spec.md's config table for completeness; the
// trigger scheduler itself is an external collaborator (out of scope).
type Trigger struct {
	Enabled                      bool          `yaml:"enabled"`
	SchedulerPoolSize            int           `yaml:"scheduler.poolSize"`
	SchedulerAwaitTermination    time.Duration `yaml:"scheduler.awaitTerminationSeconds"`
	ExecutionDefaultMaxRetries   int           `yaml:"execution.defaultMaxRetries"`
	ExecutionDefaultRetryDelay   time.Duration `yaml:"execution.defaultRetryDelay"`
	ExecutionTimeout             time.Duration `yaml:"execution.executionTimeout"`
}

// Evaluation controls the C4 evaluation DAG.
type Evaluation struct {
	Async                         bool          `yaml:"async"`
	TimeoutMs                     int           `yaml:"timeoutMs"`
	InputRoutingEnabled           bool          `yaml:"inputRouting.enabled"`
	InputRoutingSuiteID           string        `yaml:"inputRouting.suiteId"`
	PoolSize                      int           `yaml:"poolSize"`
	CriterionDefaultTimeoutMs     int           `yaml:"criterionDefaultTimeoutMs"`
}

// ReplyTool is a single declarative reply-tool entry.
type ReplyTool struct {
	Name            string   `yaml:"name"`
	ChannelCode     string   `yaml:"channelCode"`
	Description     string   `yaml:"description"`
	EnabledReact    bool     `yaml:"enabledReact"`
	EnabledCodeAct  bool     `yaml:"enabledCodeAct"`
	Parameters      []string `yaml:"parameters"`
}

// Reply gates reply-tool registration.
type Reply struct {
	Enabled bool        `yaml:"enabled"`
	Tools   []ReplyTool `yaml:"tools"`
}

// Experience controls the C6 experience store.
type Experience struct {
	DemoEnabled    bool       `yaml:"demo.enabled"`
	StoreBackend   string     `yaml:"store.backend"` // "memory" (default) or "mongo"
	Mongo          MongoStore `yaml:"mongo"`
}

// MongoStore configures the Mongo-backed experience store.
type MongoStore struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// OfflineTask schedules a learning offline task by cron or fixed interval.
type OfflineTask struct {
	CronExpression string        `yaml:"cron-expression"`
	IntervalMs     time.Duration `yaml:"interval-ms"`
	ScheduleMode   string        `yaml:"scheduleMode"` // "cron" or "interval"
}

// Learning controls the C5 learning loop and its async pool.
type Learning struct {
	OfflineTasks  []OfflineTask `yaml:"offline.tasks"`
	PoolSize      int           `yaml:"pool.size"`
	QueueCapacity int           `yaml:"pool.queueCapacity"`
	PoolBackend   string        `yaml:"pool.backend"` // "memory" (default) or "redis"
	Redis         RedisQueue    `yaml:"redis"`
	// RateLimitPerSecond caps the rate at which queued extractions are
	// dispatched to the judge model; 0 means unlimited.
	RateLimitPerSecond float64 `yaml:"pool.rateLimitPerSecond"`
	RateLimitBurst     int     `yaml:"pool.rateLimitBurst"`
}

// RedisQueue configures the Redis-backed learning pool backend.
type RedisQueue struct {
	Addr      string `yaml:"addr"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// Prompt gates prompt-contributor hooks per agent phase.
type Prompt struct {
	ReactEnabled   bool `yaml:"react.enabled"`
	CodeactEnabled bool `yaml:"codeact.enabled"`
}

// Model selects the learning loop's judge backend.
type Model struct {
	JudgeBackend string `yaml:"judge.backend"` // "anthropic" or "openai"
	JudgeModel   string `yaml:"judge.model"`
}

// Telemetry configures the OTEL resource identity used by Clue-backed
// telemetry implementations.
type Telemetry struct {
	ServiceName string `yaml:"serviceName"`
}

// Load reads and decodes a YAML config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes into a Config, applying defaults for
// zero-valued fields that must never be zero in practice.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config populated with the runtime's documented
// defaults for every section.
func Default() *Config {
	return &Config{
		Evaluation: Evaluation{
			PoolSize:                  8,
			CriterionDefaultTimeoutMs: 30_000,
		},
		Learning: Learning{
			PoolSize:      4,
			QueueCapacity: 256,
			PoolBackend:   "memory",
		},
		Experience: Experience{
			StoreBackend: "memory",
		},
		Model: Model{
			JudgeBackend: "anthropic",
		},
	}
}
