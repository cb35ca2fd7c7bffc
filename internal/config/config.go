package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Query    QueryConfig    `yaml:"query"`
	LLM      LLMConfig      `yaml:"llm"`
	Vector   VectorConfig   `yaml:"vector"`
	History  HistoryConfig  `yaml:"history"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Security SecurityConfig `yaml:"security"`
	TLS      TLSConfig      `yaml:"tls"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBody  int64         `yaml:"max_request_body_bytes"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	AnalyticsDSN    string        `yaml:"analytics_dsn"` // read-only view the NLQ pipeline executes against; falls back to dsn
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// QueryConfig bounds every statement the NLQ pipeline executes. It is
// injected at construction so tests can use distinct bounds without
// touching process-wide state.
type QueryConfig struct {
	MaxResultRows    int           `yaml:"max_result_rows"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	SandboxMode      bool          `yaml:"sandbox_mode"`      // advisory, surfaced in response metadata only
	PipelineDeadline time.Duration `yaml:"pipeline_deadline"` // 0 leaves the pipeline unbounded
}

type LLMConfig struct {
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	TopK           int    `yaml:"top_k"`
}

type VectorConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
	IndexName string `yaml:"index_name"`
	IndexHost string `yaml:"index_host"`
	Namespace string `yaml:"namespace"`
}

type HistoryConfig struct {
	Enabled    bool `yaml:"enabled"`
	BufferSize int  `yaml:"buffer_size"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type TracingConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Endpoint string  `yaml:"endpoint"`
	Sample   float64 `yaml:"sample_rate"`
}

type SecurityConfig struct {
	APIKeyHeader         string   `yaml:"api_key_header"`
	AllowedKeys          []string `yaml:"allowed_keys"`
	AllowUnauthenticated bool     `yaml:"allow_unauthenticated"`
	RateLimitRPS         float64  `yaml:"rate_limit_rps"`
	RateLimitBurst       int      `yaml:"rate_limit_burst"`
}

// TLSConfig controls HTTPS/TLS termination.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 -- path comes from CLI flag or hardcoded default
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns sensible defaults for all configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    65 * time.Second, // > statement timeout + LLM round trip overhead
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBody:  1 << 20, // 1MB
		},
		Database: DatabaseConfig{
			DSN:             "",
			AnalyticsDSN:    "",
			MaxConns:        25,
			MinConns:        2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Query: QueryConfig{
			MaxResultRows:    10000,
			StatementTimeout: 30 * time.Second,
			SandboxMode:      true,
			PipelineDeadline: 0,
		},
		LLM: LLMConfig{
			APIKeyEnv:      "GEMINI_API_KEY",
			Model:          "gemini-1.5-flash",
			EmbeddingModel: "text-embedding-004",
			TopK:           5,
		},
		Vector: VectorConfig{
			APIKeyEnv: "PINECONE_API_KEY",
			IndexName: "schema-index",
			Namespace: "schema",
		},
		History: HistoryConfig{
			Enabled:    true,
			BufferSize: 10000,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled: false,
			Sample:  0.1,
		},
		Security: SecurityConfig{
			APIKeyHeader:   "X-API-Key",
			RateLimitRPS:   100,
			RateLimitBurst: 200,
		},
		TLS: TLSConfig{
			Enabled: false,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Query.MaxResultRows < 1 || c.Query.MaxResultRows > 100000 {
		return fmt.Errorf("query.max_result_rows must be 1-100000, got %d", c.Query.MaxResultRows)
	}
	if c.Query.StatementTimeout < time.Second {
		return fmt.Errorf("query.statement_timeout must be >= 1s, got %s", c.Query.StatementTimeout)
	}
	if c.Query.PipelineDeadline > 0 && c.Query.PipelineDeadline < c.Query.StatementTimeout {
		return fmt.Errorf("query.pipeline_deadline (%s) must be >= statement_timeout (%s) when set",
			c.Query.PipelineDeadline, c.Query.StatementTimeout)
	}
	if c.LLM.TopK < 1 || c.LLM.TopK > 50 {
		return fmt.Errorf("llm.top_k must be 1-50, got %d", c.LLM.TopK)
	}
	if c.History.BufferSize < 0 {
		return fmt.Errorf("history.buffer_size must be >= 0, got %d", c.History.BufferSize)
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.cert_file and tls.key_file are required when TLS is enabled")
		}
	}
	if c.Database.DSN != "" && strings.Contains(c.Database.DSN, "sslmode=disable") {
		log.Warn().Msg("database DSN has sslmode=disable — connections to Postgres are unencrypted")
	}
	return nil
}

// EffectiveAnalyticsDSN returns the DSN the NLQ pipeline executes against.
func (c *Config) EffectiveAnalyticsDSN() string {
	if c.Database.AnalyticsDSN != "" {
		return c.Database.AnalyticsDSN
	}
	return c.Database.DSN
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
