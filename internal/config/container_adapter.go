package config

import (
	"github.com/garyjia/content-workflow/internal/container"
	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// ToContainerConfig converts the application Config to a container.Config.
// Unknown audit template keys are returned so the caller can report them.
func (c *Config) ToContainerConfig() (*container.Config, []string) {
	templates := make(map[entity.LogType]string, len(c.Audit.CommentTemplates))
	var unknown []string
	for key, tpl := range c.Audit.CommentTemplates {
		logType, ok := entity.ParseLogType(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		templates[logType] = tpl
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			AutoMigrate:     c.Database.AutoMigrate,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Relay: container.RelayConfig{
			PollInterval: c.Relay.PollInterval,
			BatchSize:    c.Relay.BatchSize,
			SendTimeout:  c.Relay.SendTimeout,
			MaxAttempts:  c.Relay.MaxAttempts,
			RetryBackoff: c.Relay.RetryBackoff,
		},
		Actions: container.ActionsConfig{
			EventContentTypes: c.Actions.EventContentTypes,
		},
		Audit: container.AuditConfig{
			CommentTemplates: templates,
		},
		RunWorkers: true,
	}, unknown
}
