package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/action"
	"github.com/garyjia/content-workflow/internal/application/audit"
	"github.com/garyjia/content-workflow/internal/application/dispatcher"
	"github.com/garyjia/content-workflow/internal/application/notification"
	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/application/recipient"
	"github.com/garyjia/content-workflow/internal/application/service"
	"github.com/garyjia/content-workflow/internal/application/workflow"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/domain/event"
	infraLark "github.com/garyjia/content-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/content-workflow/internal/infrastructure/worker"
	"github.com/garyjia/content-workflow/migrations"
	"github.com/garyjia/content-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// LarkBundle holds all Lark-related components. Both fields are nil when
// the push channel is disabled.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger port.LarkMessageSender
}

// ProvideDatabase opens the database, applies pending migrations and wraps
// the connection in a transaction manager.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if _, err := database.NewMigrator(conn, logger).Run(ctx, migrations.FS); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Workflow:     repository.NewWorkflowRepository(sqlDB, logger),
		State:        repository.NewStateRepository(sqlDB, logger),
		ContentItem:  repository.NewContentItemRepository(sqlDB, logger),
		Permission:   repository.NewStatePermissionRepository(sqlDB, logger),
		Directory:    repository.NewDirectoryRepository(sqlDB, logger),
		WorkflowLog:  repository.NewWorkflowLogRepository(sqlDB, logger),
		Notification: repository.NewNotificationRepository(sqlDB, logger),
	}, nil
}

// ProvideLarkClients creates the Lark SDK client and messenger when the
// push channel is enabled.
func ProvideLarkClients(cfg *LarkConfig, logger *zap.Logger) (*LarkBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if !cfg.Enabled {
		logger.Info("Lark push channel disabled")
		return &LarkBundle{}, nil
	}

	sdkClient := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)

	return &LarkBundle{
		Client:    sdkClient,
		Messenger: infraLark.NewMessenger(sdkClient, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(newKVLogger(logger, true)),
	), nil
}

// ProvideActions registers the event-publishing action for every configured
// content type.
func ProvideActions(cfg *ActionsConfig, d dispatcher.Dispatcher, logger *zap.Logger) action.Registry {
	registry := action.NewRegistry()
	if cfg == nil {
		return registry
	}

	for _, contentTypeID := range cfg.EventContentTypes {
		registry.Register(contentTypeID, entity.ActionCompleteWorkflow, action.NewEventAction(entity.ActionCompleteWorkflow, d))
		registry.Register(contentTypeID, entity.ActionDiscardWorkflow, action.NewEventAction(entity.ActionDiscardWorkflow, d))
		logger.Info("Workflow actions registered", zap.Int64("content_type_id", contentTypeID))
	}
	return registry
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Actions    action.Registry
	Audit      *AuditConfig
	Logger     *zap.Logger
}

// ProvideWorkflowEngine assembles the audit recorder, notifier and engine and
// subscribes the transition journal to the dispatcher.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Actions == nil {
		return nil, fmt.Errorf("action registry is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	var overrides map[entity.LogType]string
	if deps.Audit != nil {
		overrides = deps.Audit.CommentTemplates
	}
	localizer := audit.NewDefaultLocalizer(overrides)

	repos := deps.Repos
	recorder := audit.NewRecorder(repos.WorkflowLog, repos.Directory, localizer)
	notifier := notification.NewNotifier(
		repos.Notification,
		repos.Permission,
		repos.Directory,
		repos.Directory,
		repos.WorkflowLog,
		localizer,
		recipient.NewResolver(repos.Directory),
	)

	engine := workflow.NewEngine(
		repos.Workflow,
		repos.State,
		repos.ContentItem,
		repos.Permission,
		recorder,
		notifier,
		deps.Actions,
		deps.TxManager,
		newKVLogger(deps.Logger, false),
		workflow.WithDispatcher(deps.Dispatcher),
	)

	deps.Dispatcher.SubscribeAll("transition_journal", dispatcher.Filter(dispatcher.TransitionsOnly, transitionJournal(deps.Logger)))

	return engine, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Repos  *RepositoryBundle
	Logger *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := newKVLogger(deps.Logger, false)
	history := service.NewHistoryService(
		deps.Repos.ContentItem,
		deps.Repos.Workflow,
		deps.Repos.WorkflowLog,
		deps.Repos.Directory,
		serviceLogger,
	)

	return &ServiceBundle{
		Content: service.NewContentService(deps.Repos.ContentItem, serviceLogger),
		History: history,
		Export:  service.NewExportService(history, serviceLogger),
	}, nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Repos      *RepositoryBundle
	LarkBundle *LarkBundle
	RelayCfg   *RelayConfig
	Logger     *zap.Logger
}

// ProvideWorkers creates the worker group. The relay worker joins it only when
// a messenger is available and is also returned for one-shot runs.
func ProvideWorkers(deps *WorkerDeps) (*worker.Group, *worker.NotificationRelayWorker, error) {
	if deps == nil {
		return nil, nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Repos == nil {
		return nil, nil, fmt.Errorf("repositories are required")
	}
	if deps.LarkBundle == nil {
		return nil, nil, fmt.Errorf("lark bundle is required")
	}
	if deps.RelayCfg == nil {
		return nil, nil, fmt.Errorf("relay config is required")
	}
	if deps.Logger == nil {
		return nil, nil, fmt.Errorf("logger is required")
	}

	group := worker.NewGroup(deps.Logger)
	if deps.LarkBundle.Messenger == nil {
		return group, nil, nil
	}

	relay := worker.NewNotificationRelayWorker(
		worker.RelayWorkerConfig{
			PollInterval: deps.RelayCfg.PollInterval,
			BatchSize:    deps.RelayCfg.BatchSize,
			SendTimeout:  deps.RelayCfg.SendTimeout,
			MaxAttempts:  deps.RelayCfg.MaxAttempts,
			RetryBackoff: deps.RelayCfg.RetryBackoff,
		},
		deps.Repos.Notification,
		deps.LarkBundle.Messenger,
		deps.Logger,
	)
	group.Add(relay)

	return group, relay, nil
}

// transitionJournal writes item moves to the structured log
func transitionJournal(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Workflow event",
			zap.String("event_id", evt.ID),
			zap.String("correlation_id", evt.CorrelationID),
			zap.String("type", string(evt.Type)),
			zap.Int64("content_item_id", evt.ContentItemID),
			zap.Int64("workflow_id", evt.WorkflowID),
			zap.Any("payload", evt.Payload))
		return nil
	}
}
