package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/content-workflow/internal/domain/entity"
)

const sampleConfig = `
server:
  port: 9090
database:
  path: /var/lib/workflow/workflow.db
logger:
  format: console
relay:
  poll_interval: 2s
actions:
  event_content_types: [4, 7]
audit:
  comment_templates:
    StateInitiated: "[STATE] opened [DATE]"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, ".", "config.yaml", sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "/var/lib/workflow/workflow.db", cfg.Database.Path)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 2*time.Second, cfg.Relay.PollInterval)
	assert.Equal(t, 50, cfg.Relay.BatchSize)
	assert.Equal(t, 5, cfg.Relay.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Relay.RetryBackoff)
	assert.Equal(t, []int64{4, 7}, cfg.Actions.EventContentTypes)
	assert.Equal(t, "[STATE] opened [DATE]", cfg.Audit.CommentTemplates["stateinitiated"])
	assert.False(t, cfg.Lark.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("WORKFLOW_PORT", "7070")
	t.Setenv("LARK_ENABLED", "true")
	t.Setenv("LARK_APP_ID", "cli_a1")
	t.Setenv("LARK_APP_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Lark.Enabled)
	assert.Equal(t, "cli_a1", cfg.Lark.AppID)
	assert.Equal(t, "s3cret", cfg.Lark.AppSecret)
}

func TestLoad_DotEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	writeFile(t, ".", ".env", "LARK_ENABLED=true\nLARK_APP_ID=cli_dotenv\nLARK_APP_SECRET=from-file\n")
	t.Cleanup(func() {
		os.Unsetenv("LARK_ENABLED")
		os.Unsetenv("LARK_APP_ID")
		os.Unsetenv("LARK_APP_SECRET")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "cli_dotenv", cfg.Lark.AppID)
	assert.Equal(t, "from-file", cfg.Lark.AppSecret)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("does-not-exist.yaml")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Path: "workflow.db"},
			Logger:   LoggerConfig{Format: "json"},
			Relay:    RelayConfig{PollInterval: time.Second, BatchSize: 10, MaxAttempts: 3, RetryBackoff: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"bad format", func(c *Config) { c.Logger.Format = "xml" }, "logger.format"},
		{"lark without id", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppSecret: "x"}
		}, "lark.app_id"},
		{"lark without secret", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "x"}
		}, "lark.app_secret"},
		{"lark with empty batch", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "x", AppSecret: "y"}
			c.Relay.BatchSize = 0
		}, "relay.batch_size"},
		{"lark without retry backoff", func(c *Config) {
			c.Lark = LarkConfig{Enabled: true, AppID: "x", AppSecret: "y"}
			c.Relay.RetryBackoff = 0
		}, "relay.retry_backoff"},
		{"disabled lark ignores credentials", func(c *Config) {
			c.Relay = RelayConfig{}
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Path: "workflow.db", AutoMigrate: true},
		Lark:     LarkConfig{Enabled: true, AppID: "cli_a1", AppSecret: "s"},
		Relay:    RelayConfig{BatchSize: 20},
		Actions:  ActionsConfig{EventContentTypes: []int64{4}},
		Audit: AuditConfig{CommentTemplates: map[string]string{
			"workflowapproved": "[CONTENT] is live",
			"published":        "unused",
		}},
	}

	cc, unknown := cfg.ToContainerConfig()
	assert.Equal(t, "workflow.db", cc.Database.Path)
	assert.True(t, cc.Lark.Enabled)
	assert.Equal(t, 20, cc.Relay.BatchSize)
	assert.Equal(t, []int64{4}, cc.Actions.EventContentTypes)
	assert.Equal(t, "[CONTENT] is live", cc.Audit.CommentTemplates[entity.LogWorkflowApproved])
	assert.Len(t, cc.Audit.CommentTemplates, 1)
	assert.Equal(t, []string{"published"}, unknown)
	assert.True(t, cc.RunWorkers)
}
