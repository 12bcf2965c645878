package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
)

// RelayWorkerConfig holds configuration for the notification relay
type RelayWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	SendTimeout  time.Duration
	// MaxAttempts failed pushes abandon a pair
	MaxAttempts int
	// RetryBackoff doubles after every failed push, up to maxRetryBackoff
	RetryBackoff time.Duration
}

const maxRetryBackoff = time.Hour

// ErrEmptyMessage is reported for notifications with neither subject nor body
var ErrEmptyMessage = errors.New("empty message")

// DefaultRelayWorkerConfig returns default configuration
func DefaultRelayWorkerConfig() RelayWorkerConfig {
	return RelayWorkerConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    50,
		SendTimeout:  15 * time.Second,
		MaxAttempts:  5,
		RetryBackoff: 30 * time.Second,
	}
}

// RelayStats is a snapshot of relay progress
type RelayStats struct {
	Delivered int
	Failed    int
	Abandoned int
	LastRun   time.Time
	LastError error
}

// NotificationRelayWorker pushes stored notifications to recipients' Lark
// inboxes. Each (notification, user) pair is delivered at most once. A pair
// whose push fails backs off before it is tried again and is abandoned after
// MaxAttempts failures, so it never holds the head of the queue.
type NotificationRelayWorker struct {
	config RelayWorkerConfig

	notifications port.NotificationRepository
	sender        port.LarkMessageSender
	logger        *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	stats     RelayStats
}

// NewNotificationRelayWorker creates a new relay worker
func NewNotificationRelayWorker(
	config RelayWorkerConfig,
	notifications port.NotificationRepository,
	sender port.LarkMessageSender,
	logger *zap.Logger,
) *NotificationRelayWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultRelayWorkerConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultRelayWorkerConfig().PollInterval
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRelayWorkerConfig().MaxAttempts
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = DefaultRelayWorkerConfig().RetryBackoff
	}
	return &NotificationRelayWorker{
		config:        config,
		notifications: notifications,
		sender:        sender,
		logger:        logger,
	}
}

// Start begins the polling loop
func (w *NotificationRelayWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("notification relay already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("NotificationRelayWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for the batch in flight
func (w *NotificationRelayWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("NotificationRelayWorker stopped",
		zap.Int("delivered", stats.Delivered),
		zap.Int("failed", stats.Failed),
		zap.Int("abandoned", stats.Abandoned))
	return nil
}

// Name returns the worker name for identification
func (w *NotificationRelayWorker) Name() string {
	return "NotificationRelayWorker"
}

// Stats returns a copy of the counters
func (w *NotificationRelayWorker) Stats() RelayStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

// Check returns the error of the last batch, nil when every push went through
func (w *NotificationRelayWorker) Check() error {
	return w.Stats().LastError
}

func (w *NotificationRelayWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Relay loop context cancelled")
			return

		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("Failed to relay notifications", zap.Error(err))
			}
		}
	}
}

// RunOnce delivers one batch and returns the number of successful pushes.
// A failed push is retried on a later run once its backoff has passed.
func (w *NotificationRelayWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.notifications.GetPendingDeliveries(ctx, w.config.BatchSize)
	if err != nil {
		w.record(batchResult{}, err)
		return 0, fmt.Errorf("failed to get pending deliveries: %w", err)
	}

	var res batchResult
	var lastErr error
	for _, d := range pending {
		if ctx.Err() != nil {
			break
		}
		abandoned, err := w.deliver(ctx, d)
		switch {
		case err == nil:
			res.delivered++
		case abandoned:
			res.abandoned++
			lastErr = err
		default:
			res.failed++
			lastErr = err
		}
	}

	var batchErr error
	if lastErr != nil {
		batchErr = fmt.Errorf("%d of %d deliveries failed: %w", res.failed+res.abandoned, len(pending), lastErr)
	}
	w.record(res, batchErr)
	if len(pending) > 0 {
		w.logger.Info("Relay batch finished",
			zap.Int("pending", len(pending)),
			zap.Int("delivered", res.delivered),
			zap.Int("failed", res.failed),
			zap.Int("abandoned", res.abandoned))
	}
	return res.delivered, nil
}

type batchResult struct {
	delivered int
	failed    int
	abandoned int
}

// deliver pushes one pair. On error it reports whether the pair was
// abandoned rather than scheduled for a retry.
func (w *NotificationRelayWorker) deliver(ctx context.Context, d *entity.PendingDelivery) (bool, error) {
	text := FormatMessage(d.Subject, d.Body)
	if text == "" {
		return true, w.abandon(ctx, d, ErrEmptyMessage)
	}

	sendCtx := ctx
	if w.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, w.config.SendTimeout)
		defer cancel()
	}

	if err := w.sender.SendMessage(sendCtx, d.LarkOpenID, text); err != nil {
		attempts := d.Attempts + 1
		if attempts >= w.config.MaxAttempts {
			return true, w.abandon(ctx, d, fmt.Errorf("giving up after %d attempts: %w", attempts, err))
		}
		return false, w.retryLater(ctx, d, attempts, err)
	}
	if err := w.notifications.MarkDelivered(ctx, d.NotificationID, d.UserID, entity.DeliveryChannelLark); err != nil {
		return false, err
	}
	return false, nil
}

func (w *NotificationRelayWorker) retryLater(ctx context.Context, d *entity.PendingDelivery, attempts int, cause error) error {
	retryAt := time.Now().Add(w.backoff(attempts))
	w.logger.Warn("Failed to deliver notification",
		zap.Int64("notification_id", d.NotificationID),
		zap.Int64("user_id", d.UserID),
		zap.Int("attempts", attempts),
		zap.Time("retry_at", retryAt),
		zap.Error(cause))

	if err := w.notifications.RecordFailure(ctx, d.NotificationID, d.UserID, entity.DeliveryChannelLark, cause.Error(), retryAt); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (w *NotificationRelayWorker) abandon(ctx context.Context, d *entity.PendingDelivery, cause error) error {
	w.logger.Error("Abandoning notification delivery",
		zap.Int64("notification_id", d.NotificationID),
		zap.Int64("user_id", d.UserID),
		zap.Error(cause))

	if err := w.notifications.Abandon(ctx, d.NotificationID, d.UserID, entity.DeliveryChannelLark, cause.Error()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// backoff is RetryBackoff after the first failure, doubling per attempt
func (w *NotificationRelayWorker) backoff(attempts int) time.Duration {
	d := w.config.RetryBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}

func (w *NotificationRelayWorker) record(res batchResult, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Delivered += res.delivered
	w.stats.Failed += res.failed
	w.stats.Abandoned += res.abandoned
	w.stats.LastRun = time.Now()
	w.stats.LastError = err
}

var lineBreaks = strings.NewReplacer("<br/>", "\n", "<br />", "\n", "<br>", "\n")

// FormatMessage renders a notification as Lark plain text
func FormatMessage(subject, body string) string {
	text := strings.TrimSpace(lineBreaks.Replace(body))
	if text == "" {
		return subject
	}
	if subject == "" {
		return text
	}
	return subject + "\n\n" + text
}
