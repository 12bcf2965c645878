package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker defines the interface for background workers
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Checker is implemented by workers that can tell whether their last run
// went well.
type Checker interface {
	Check() error
}

// Group starts and stops a fixed set of workers as a unit. Start is all or
// nothing: when one worker fails the ones already running are stopped again.
type Group struct {
	logger *zap.Logger

	mu      sync.RWMutex
	members []Worker
	running []Worker
	cancel  context.CancelFunc
}

// NewGroup creates an empty group
func NewGroup(logger *zap.Logger) *Group {
	return &Group{logger: logger}
}

// Add appends a worker. Workers added while the group runs start with the
// next Start.
func (g *Group) Add(w Worker) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, w)
	g.logger.Debug("Worker added", zap.String("worker_name", w.Name()), zap.Int("members", len(g.members)))
}

// Start launches every member under a context derived from ctx
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		return fmt.Errorf("worker group already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	running := make([]Worker, 0, len(g.members))
	for _, w := range g.members {
		if err := w.Start(runCtx); err != nil {
			cancel()
			stopErr := stopReverse(running, g.logger)
			return errors.Join(fmt.Errorf("failed to start %s: %w", w.Name(), err), stopErr)
		}
		running = append(running, w)
		g.logger.Info("Worker started", zap.String("worker_name", w.Name()))
	}

	g.running = running
	g.cancel = cancel
	return nil
}

// Stop cancels the group context and stops the running workers newest first.
// Stopping an idle group is a no-op.
func (g *Group) Stop() error {
	g.mu.Lock()
	running, cancel := g.running, g.cancel
	g.running, g.cancel = nil, nil
	g.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	return stopReverse(running, g.logger)
}

func stopReverse(workers []Worker, logger *zap.Logger) error {
	var errs []error
	for i := len(workers) - 1; i >= 0; i-- {
		w := workers[i]
		if err := w.Stop(); err != nil {
			logger.Error("Failed to stop worker", zap.String("worker_name", w.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
			continue
		}
		logger.Info("Worker stopped", zap.String("worker_name", w.Name()))
	}
	return errors.Join(errs...)
}

// Len returns the number of members
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// Running reports whether Start succeeded and Stop has not been called
func (g *Group) Running() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cancel != nil
}

// Check joins the errors of running workers that implement Checker
func (g *Group) Check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	for _, w := range g.running {
		c, ok := w.(Checker)
		if !ok {
			continue
		}
		if err := c.Check(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Name(), err))
		}
	}
	return errors.Join(errs...)
}
