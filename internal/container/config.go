// Package container wires repositories, the workflow engine, services and
// workers together and owns their lifecycle.
package container

import (
	"errors"
	"time"

	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// Config is everything the container needs to build the object graph.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Relay    RelayConfig
	Actions  ActionsConfig
	Audit    AuditConfig

	// RunWorkers starts background workers with the container.
	// One-shot tools leave it off.
	RunWorkers bool
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Path            string // file path or ":memory:"
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// LarkConfig enables the Lark push channel.
type LarkConfig struct {
	Enabled   bool
	AppID     string
	AppSecret string
	BaseURL   string
}

// RelayConfig holds notification relay worker settings.
type RelayConfig struct {
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// ActionsConfig lists the content types that get an event-publishing action
// for workflow completion and discard.
type ActionsConfig struct {
	EventContentTypes []int64
}

// AuditConfig overrides individual default comment templates.
type AuditConfig struct {
	CommentTemplates map[entity.LogType]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/workflow.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Relay: RelayConfig{
			PollInterval: 10 * time.Second,
			BatchSize:    50,
			SendTimeout:  15 * time.Second,
			MaxAttempts:  5,
			RetryBackoff: 30 * time.Second,
		},
		RunWorkers: true,
	}
}

// Validate reports every missing required value at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			errs = append(errs, errors.New("lark.app_id is required"))
		}
		if c.Lark.AppSecret == "" {
			errs = append(errs, errors.New("lark.app_secret is required"))
		}
	}
	for key := range c.Audit.CommentTemplates {
		if t, ok := entity.ParseLogType(string(key)); !ok || t != key {
			errs = append(errs, errors.New("audit.comment_templates has an unknown log type"))
			break
		}
	}
	return errors.Join(errs...)
}
