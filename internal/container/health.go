package container

import (
	"context"
	"fmt"

	"github.com/garyjia/content-workflow/migrations"
	"github.com/garyjia/content-workflow/pkg/database"
)

// HealthStatus is the per-component health of a running container.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

func (h *HealthStatus) set(name string, healthy bool, msg string) {
	h.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
	if !healthy {
		h.Overall = false
	}
}

// Health checks the database and its schema, the workers with the last relay
// pass, and whether the dispatcher and engine were built.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.conn == nil {
		status.set("database", false, "not initialized")
		status.set("schema", false, "not initialized")
	} else {
		if err := c.conn.PingContext(ctx); err != nil {
			status.set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			status.set("database", true, "")
		}
		status.set(schemaHealth(c.SchemaStatus(ctx)))
	}

	switch {
	case c.workers == nil:
		status.set("workers", false, "not initialized")
	case !c.config.RunWorkers || c.workers.Len() == 0:
		status.set("workers", true, "no background workers")
	case !c.workers.Running():
		status.set("workers", false, "stopped")
	default:
		if err := c.workers.Check(); err != nil {
			status.set("workers", false, err.Error())
		} else {
			status.set("workers", true, fmt.Sprintf("worker count: %d", c.workers.Len()))
		}
	}

	if c.relay != nil {
		stats := c.relay.Stats()
		msg := fmt.Sprintf("delivered %d, failed %d, abandoned %d", stats.Delivered, stats.Failed, stats.Abandoned)
		if stats.LastError != nil {
			msg = fmt.Sprintf("%s, last error: %v", msg, stats.LastError)
		}
		status.set("notification_relay", stats.LastError == nil, msg)
	}

	status.set("dispatcher", c.dispatcher != nil, notInitialized(c.dispatcher == nil))
	status.set("workflow_engine", c.workflow != nil, notInitialized(c.workflow == nil))

	return status
}

// SchemaStatus reports every shipped migration and whether it was applied.
func (c *Container) SchemaStatus(ctx context.Context) ([]database.MigrationStatus, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return database.NewMigrator(c.conn, c.logger).Status(ctx, migrations.FS)
}

func schemaHealth(statuses []database.MigrationStatus, err error) (string, bool, string) {
	if err != nil {
		return "schema", false, err.Error()
	}
	pending := 0
	for _, st := range statuses {
		if st.AppliedAt == nil {
			pending++
		}
	}
	if pending > 0 {
		return "schema", false, fmt.Sprintf("%d pending migrations", pending)
	}
	return "schema", true, ""
}

func notInitialized(isNil bool) string {
	if isNil {
		return "not initialized"
	}
	return ""
}
