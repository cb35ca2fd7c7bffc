package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Query.MaxResultRows != 10000 {
		t.Errorf("Query.MaxResultRows = %d, want 10000", cfg.Query.MaxResultRows)
	}
	if cfg.Query.StatementTimeout != 30*time.Second {
		t.Errorf("Query.StatementTimeout = %s, want 30s", cfg.Query.StatementTimeout)
	}
	if cfg.Query.PipelineDeadline != 0 {
		t.Errorf("Query.PipelineDeadline = %s, want 0 (unbounded)", cfg.Query.PipelineDeadline)
	}
	if !cfg.Query.SandboxMode {
		t.Error("Query.SandboxMode = false, want true")
	}
	if cfg.LLM.TopK != 5 {
		t.Errorf("LLM.TopK = %d, want 5", cfg.LLM.TopK)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return DefaultConfig()
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"server port 0", func(c *Config) { c.Server.Port = 0 }, true},
		{"server port 99999", func(c *Config) { c.Server.Port = 99999 }, true},
		{"max_result_rows 0", func(c *Config) { c.Query.MaxResultRows = 0 }, true},
		{"max_result_rows too large", func(c *Config) { c.Query.MaxResultRows = 200000 }, true},
		{"statement_timeout below 1s", func(c *Config) { c.Query.StatementTimeout = 100 * time.Millisecond }, true},
		{"pipeline_deadline < statement_timeout", func(c *Config) {
			c.Query.PipelineDeadline = 5 * time.Second
			c.Query.StatementTimeout = 30 * time.Second
		}, true},
		{"pipeline_deadline >= statement_timeout", func(c *Config) {
			c.Query.PipelineDeadline = 60 * time.Second
		}, false},
		{"top_k 0", func(c *Config) { c.LLM.TopK = 0 }, true},
		{"top_k 51", func(c *Config) { c.LLM.TopK = 51 }, true},
		{"TLS enabled without cert", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = ""
			c.TLS.KeyFile = ""
		}, true},
		{"TLS enabled with cert+key", func(c *Config) {
			c.TLS.Enabled = true
			c.TLS.CertFile = "/etc/ssl/cert.pem"
			c.TLS.KeyFile = "/etc/ssl/key.pem"
		}, false},
		{"negative history buffer", func(c *Config) { c.History.BufferSize = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	yamlContent := `
server:
  host: "127.0.0.1"
  port: 9090
query:
  max_result_rows: 500
  statement_timeout: 15s
  sandbox_mode: false
llm:
  model: "gemini-1.5-pro"
  top_k: 8
database:
  analytics_dsn: "postgres://ro@localhost/analytics"
`
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(yamlContent); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Query.MaxResultRows != 500 {
		t.Errorf("Query.MaxResultRows = %d, want 500", cfg.Query.MaxResultRows)
	}
	if cfg.Query.StatementTimeout != 15*time.Second {
		t.Errorf("Query.StatementTimeout = %s, want 15s", cfg.Query.StatementTimeout)
	}
	if cfg.Query.SandboxMode {
		t.Error("Query.SandboxMode = true, want false")
	}
	if cfg.LLM.Model != "gemini-1.5-pro" {
		t.Errorf("LLM.Model = %q, want gemini-1.5-pro", cfg.LLM.Model)
	}
	if got := cfg.EffectiveAnalyticsDSN(); got != "postgres://ro@localhost/analytics" {
		t.Errorf("EffectiveAnalyticsDSN() = %q", got)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestEffectiveAnalyticsDSN_Fallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.DSN = "postgres://app@localhost/app"
	if got := cfg.EffectiveAnalyticsDSN(); got != cfg.Database.DSN {
		t.Errorf("EffectiveAnalyticsDSN() = %q, want fallback to dsn", got)
	}
}

func TestAddress(t *testing.T) {
	cfg := DefaultConfig()
	want := "0.0.0.0:8080"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 3000
	want = "127.0.0.1:3000"
	if got := cfg.Address(); got != want {
		t.Errorf("Address() = %q, want %q", got, want)
	}
}
