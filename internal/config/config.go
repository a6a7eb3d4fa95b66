// Package config loads engine configuration from a YAML file (if present)
// and environment variables, following the same layering as the teacher's
// pkg/config: defaults -> optional file -> env overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP + WebSocket surface.
type ServerConfig struct {
	Host string `json:"host" yaml:"host" env:"SERVER_HOST"`
	Port int    `json:"port" yaml:"port" env:"SERVER_PORT"`
}

// GraphConfig controls the Neo4j-backed repository connection.
type GraphConfig struct {
	URI                 string `json:"uri" yaml:"uri" env:"GRAPH_URI"`
	User                string `json:"user" yaml:"user" env:"GRAPH_USER"`
	Password            string `json:"password" yaml:"password" env:"GRAPH_PASSWORD"`
	Database            string `json:"database" yaml:"database" env:"GRAPH_DATABASE"`
	MaxPoolSize         int    `json:"max_pool_size" yaml:"max_pool_size" env:"GRAPH_MAX_POOL_SIZE"`
	AcquisitionTimeoutS int    `json:"acquisition_timeout_s" yaml:"acquisition_timeout_s" env:"GRAPH_ACQUISITION_TIMEOUT_S"`
}

// WorkflowStoreConfig controls the durable Postgres store backing the
// workflow engine.
type WorkflowStoreConfig struct {
	DSN            string `json:"dsn" yaml:"dsn" env:"WORKFLOW_DB_DSN"`
	MaxOpenConns   int    `json:"max_open_conns" yaml:"max_open_conns" env:"WORKFLOW_DB_MAX_OPEN_CONNS"`
	MaxIdleConns   int    `json:"max_idle_conns" yaml:"max_idle_conns" env:"WORKFLOW_DB_MAX_IDLE_CONNS"`
	MigrateOnStart bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"WORKFLOW_DB_MIGRATE_ON_START"`
}

// ReviewQueueConfig controls the Redis-backed review queue.
type ReviewQueueConfig struct {
	Addr     string `json:"addr" yaml:"addr" env:"REVIEW_QUEUE_REDIS_ADDR"`
	Password string `json:"password" yaml:"password" env:"REVIEW_QUEUE_REDIS_PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"REVIEW_QUEUE_REDIS_DB"`
}

// EmbeddingConfig controls the embedding provider contract implementation.
type EmbeddingConfig struct {
	APIKey    string `json:"api_key" yaml:"api_key" env:"EMBEDDING_API_KEY"`
	Model     string `json:"model" yaml:"model" env:"EMBEDDING_MODEL"`
	BatchSize int    `json:"batch_size" yaml:"batch_size" env:"EMBEDDING_BATCH_SIZE"`
}

// SourceRateLimit configures one bibliographic source's rate limit.
type SourceRateLimit struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	BurstMultiplier   float64 `json:"burst_multiplier" yaml:"burst_multiplier"`
}

// RateLimitConfig holds per-source rate limits, keyed by source name.
type RateLimitConfig struct {
	Sources map[string]SourceRateLimit `json:"sources" yaml:"sources"`
}

// CacheConfig controls the response cache and PDF cache.
type CacheConfig struct {
	MaxSize     int           `json:"max_size" yaml:"max_size" env:"CACHE_MAX_SIZE"`
	PaperTTL    time.Duration `json:"paper_ttl" yaml:"paper_ttl" env:"CACHE_PAPER_TTL"`
	SearchTTL   time.Duration `json:"search_ttl" yaml:"search_ttl" env:"CACHE_SEARCH_TTL"`
	AuthorTTL   time.Duration `json:"author_ttl" yaml:"author_ttl" env:"CACHE_AUTHOR_TTL"`
	PDFMaxBytes int64         `json:"pdf_max_bytes" yaml:"pdf_max_bytes" env:"CACHE_PDF_MAX_BYTES"`
	PDFDir      string        `json:"pdf_dir" yaml:"pdf_dir" env:"CACHE_PDF_DIR"`
}

// CircuitConfig controls the circuit breaker defaults shared by all sources.
type CircuitConfig struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold" env:"CIRCUIT_FAILURE_THRESHOLD"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold" env:"CIRCUIT_SUCCESS_THRESHOLD"`
	Cooldown         time.Duration `json:"cooldown" yaml:"cooldown" env:"CIRCUIT_COOLDOWN"`
}

// SandboxConfig controls the evaluation sandbox.
type SandboxConfig struct {
	Image           string        `json:"image" yaml:"image" env:"SANDBOX_IMAGE"`
	Interpreter     string        `json:"interpreter" yaml:"interpreter" env:"SANDBOX_INTERPRETER"`
	Timeout         time.Duration `json:"timeout" yaml:"timeout" env:"SANDBOX_TIMEOUT"`
	MemoryBytes     int64         `json:"memory_bytes" yaml:"memory_bytes" env:"SANDBOX_MEMORY_BYTES"`
	CPUCores        float64       `json:"cpu_cores" yaml:"cpu_cores" env:"SANDBOX_CPU_CORES"`
	NetworkDisabled bool          `json:"network_disabled" yaml:"network_disabled" env:"SANDBOX_NETWORK_DISABLED"`
	ReadOnlyRoot    bool          `json:"read_only_root" yaml:"read_only_root" env:"SANDBOX_READ_ONLY_ROOT"`
	WorkDir         string        `json:"work_dir" yaml:"work_dir" env:"SANDBOX_WORK_DIR"`
}

// CheckpointConfig controls which workflow checkpoints require a human
// decision versus auto-approving.
type CheckpointConfig struct {
	SelectProblemRequired    bool `json:"select_problem_required" yaml:"select_problem_required" env:"CHECKPOINT_SELECT_PROBLEM_REQUIRED"`
	ApproveProposalRequired  bool `json:"approve_proposal_required" yaml:"approve_proposal_required" env:"CHECKPOINT_APPROVE_PROPOSAL_REQUIRED"`
	ReviewEvaluationRequired bool `json:"review_evaluation_required" yaml:"review_evaluation_required" env:"CHECKPOINT_REVIEW_EVALUATION_REQUIRED"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"LOG_FORMAT"`
}

// Config is the top-level configuration structure for cmd/engine-server.
type Config struct {
	Server      ServerConfig        `json:"server" yaml:"server"`
	Graph       GraphConfig         `json:"graph" yaml:"graph"`
	Workflow    WorkflowStoreConfig `json:"workflow" yaml:"workflow"`
	ReviewQueue ReviewQueueConfig   `json:"review_queue" yaml:"review_queue"`
	Embedding   EmbeddingConfig     `json:"embedding" yaml:"embedding"`
	RateLimit   RateLimitConfig     `json:"rate_limit" yaml:"rate_limit"`
	Cache       CacheConfig         `json:"cache" yaml:"cache"`
	Circuit     CircuitConfig       `json:"circuit" yaml:"circuit"`
	Sandbox     SandboxConfig       `json:"sandbox" yaml:"sandbox"`
	Checkpoint  CheckpointConfig    `json:"checkpoint" yaml:"checkpoint"`
	Logging     LoggingConfig       `json:"logging" yaml:"logging"`
}

// New returns a Config populated with the documented defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		Graph: GraphConfig{
			URI:                 "bolt://localhost:7687",
			User:                "neo4j",
			Database:            "neo4j",
			MaxPoolSize:         50,
			AcquisitionTimeoutS: 60,
		},
		Workflow: WorkflowStoreConfig{
			MaxOpenConns:   10,
			MaxIdleConns:   5,
			MigrateOnStart: true,
		},
		ReviewQueue: ReviewQueueConfig{Addr: "localhost:6379", DB: 0},
		Embedding:   EmbeddingConfig{Model: "text-embedding-3-large", BatchSize: 64},
		RateLimit: RateLimitConfig{
			Sources: map[string]SourceRateLimit{
				"s2":       {RequestsPerSecond: 1, BurstMultiplier: 1.5},
				"arxiv":    {RequestsPerSecond: 3, BurstMultiplier: 1.5},
				"openalex": {RequestsPerSecond: 10, BurstMultiplier: 1.5},
			},
		},
		Cache: CacheConfig{
			MaxSize:     10000,
			PaperTTL:    7 * 24 * time.Hour,
			SearchTTL:   time.Hour,
			AuthorTTL:   7 * 24 * time.Hour,
			PDFMaxBytes: 20 << 30, // 20 GiB
			PDFDir:      "data/pdfcache",
		},
		Circuit: CircuitConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Cooldown:         30 * time.Second,
		},
		Sandbox: SandboxConfig{
			Image:           "python:3.11-slim",
			Interpreter:     "python3",
			Timeout:         300 * time.Second,
			MemoryBytes:     2 << 30, // 2 GiB
			CPUCores:        1,
			NetworkDisabled: true,
			ReadOnlyRoot:    true,
			WorkDir:         "/tmp/sandbox",
		},
		Checkpoint: CheckpointConfig{
			SelectProblemRequired:    true,
			ApproveProposalRequired:  true,
			ReviewEvaluationRequired: true,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load loads configuration from .env, an optional YAML file, and the
// environment, in that precedence order (env wins).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
