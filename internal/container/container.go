package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/action"
	"github.com/garyjia/content-workflow/internal/application/dispatcher"
	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/application/service"
	"github.com/garyjia/content-workflow/internal/application/workflow"
	infraLark "github.com/garyjia/content-workflow/internal/infrastructure/external/lark"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/content-workflow/internal/infrastructure/worker"
	"github.com/garyjia/content-workflow/pkg/database"
)

// Container wires the workflow engine to its storage, notification channel
// and workers, and owns their lifecycle. Components are opened by Start in
// phase order and released by Close newest first.
type Container struct {
	config *Config
	logger *zap.Logger

	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	larkClient    *infraLark.SDKClient
	larkMessenger port.LarkMessageSender

	dispatcher dispatcher.Dispatcher
	actions    action.Registry
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	workers *worker.Group
	relay   *worker.NotificationRelayWorker

	mu      sync.Mutex
	cancel  context.CancelFunc
	closers []closer
	ready   atomic.Bool
	closed  atomic.Bool
}

// RepositoryBundle groups the sqlite repositories. Workflow, Permission and
// Directory are concrete so callers can seed catalog and directory data.
type RepositoryBundle struct {
	Workflow     *repository.WorkflowRepository
	State        port.StateRepository
	ContentItem  port.ContentItemRepository
	Permission   *repository.StatePermissionRepository
	Directory    *repository.DirectoryRepository
	WorkflowLog  port.WorkflowLogRepository
	Notification port.NotificationRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Content service.ContentService
	History service.HistoryService
	Export  service.ExportService
}

type phase struct {
	name string
	run  func(ctx context.Context) error
}

type closer struct {
	name string
	fn   func() error
}

// NewContainer validates cfg. Nothing is opened until Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

func (c *Container) phases() []phase {
	return []phase{
		{"database", c.initDatabase},
		{"external clients", c.initExternalClients},
		{"dispatcher and workflow", c.initDispatcherAndWorkflow},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}
}

// Start runs every phase in order. When a phase fails, whatever the earlier
// phases opened is closed again before the error is returned.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for _, p := range c.phases() {
		if err := p.run(runCtx); err != nil {
			c.logger.Error("Container phase failed", zap.String("phase", p.name), zap.Error(err))
			if unwindErr := c.unwind(); unwindErr != nil {
				c.logger.Error("Cleanup after failed start", zap.Error(unwindErr))
			}
			cancel()
			return fmt.Errorf("failed to initialize %s: %w", p.name, err)
		}
		c.logger.Info("Container phase ready", zap.String("phase", p.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started")
	return nil
}

// Close releases everything Start opened: workers, then the dispatcher,
// whose in-flight async handlers may still write, then the database.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	if c.cancel != nil {
		c.cancel()
	}
	err := c.unwind()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		return fmt.Errorf("container closed with errors: %w", err)
	}
	c.logger.Info("Container closed")
	return nil
}

// Ready reports whether Start completed and Close has not run.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

func (c *Container) onClose(name string, fn func() error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// unwind runs the registered closers newest first and forgets them
func (c *Container) unwind() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		cl := c.closers[i]
		if err := cl.fn(); err != nil {
			c.logger.Error("Failed to close component", zap.String("component", cl.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", cl.name, err))
			continue
		}
		c.logger.Debug("Component closed", zap.String("component", cl.name))
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) initDatabase(ctx context.Context) error {
	bundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr
	c.onClose("database", c.conn.Close)

	repos, err := ProvideRepositories(c.conn.DB, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternalClients(context.Context) error {
	bundle, err := ProvideLarkClients(&c.config.Lark, c.logger)
	if err != nil {
		return err
	}
	c.larkClient = bundle.Client
	c.larkMessenger = bundle.Messenger
	return nil
}

func (c *Container) initDispatcherAndWorkflow(context.Context) error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	c.onClose("dispatcher", c.dispatcher.Close)

	c.actions = ProvideActions(&c.config.Actions, c.dispatcher, c.logger)

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Actions:    c.actions,
		Audit:      &c.config.Audit,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine
	return nil
}

func (c *Container) initServices(context.Context) error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:  c.repositories,
		Logger: c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkers(ctx context.Context) error {
	workers, relay, err := ProvideWorkers(&WorkerDeps{
		Repos: c.repositories,
		LarkBundle: &LarkBundle{
			Client:    c.larkClient,
			Messenger: c.larkMessenger,
		},
		RelayCfg: &c.config.Relay,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers
	c.relay = relay

	if !c.config.RunWorkers {
		return nil
	}
	if err := c.workers.Start(ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.onClose("workers", c.workers.Stop)
	return nil
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager { return c.db }

func (c *Container) Repositories() *RepositoryBundle { return c.repositories }

// LarkMessenger is nil when Lark is disabled.
func (c *Container) LarkMessenger() port.LarkMessageSender { return c.larkMessenger }

func (c *Container) Dispatcher() dispatcher.Dispatcher { return c.dispatcher }

func (c *Container) Actions() action.Registry { return c.actions }

func (c *Container) WorkflowEngine() workflow.WorkflowEngine { return c.workflow }

func (c *Container) Services() *ServiceBundle { return c.services }

func (c *Container) Workers() *worker.Group { return c.workers }

// RelayWorker is nil when Lark is disabled.
func (c *Container) RelayWorker() *worker.NotificationRelayWorker { return c.relay }

func (c *Container) Logger() *zap.Logger { return c.logger }

func (c *Container) Config() *Config { return c.config }
