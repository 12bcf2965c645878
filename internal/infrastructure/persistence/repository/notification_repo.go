package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/content-workflow/internal/application/port"
	"github.com/garyjia/content-workflow/internal/domain/entity"
	"github.com/garyjia/content-workflow/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	tx     *sqlite.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		tx:     sqlite.NewDB(db, logger),
		logger: logger,
	}
}

// GetNotificationTypeID resolves a seeded notification type by name
func (r *NotificationRepository) GetNotificationTypeID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx,
		`SELECT id FROM notification_types WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("notification type %q is not registered", name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get notification type: %w", err)
	}
	return id, nil
}

// Send stores the notification and one recipient row per role and user
func (r *NotificationRepository) Send(ctx context.Context, n *entity.Notification, portalID int64, roles []*entity.Role, users []*entity.User) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		exec := sqlite.ExecutorFor(ctx, r.db)

		result, err := exec.ExecContext(ctx, `
			INSERT INTO notifications (
				portal_id, type_id, subject, body, sender_user_id, context,
				include_dismiss, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			portalID,
			n.NotificationTypeID,
			n.Subject,
			n.Body,
			n.SenderUserID,
			n.Context,
			n.IncludeDismissAction,
			n.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to create notification", zap.String("context", n.Context), zap.Error(err))
			return fmt.Errorf("failed to create notification: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		n.ID = id

		for _, role := range roles {
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO notification_recipients (notification_id, role_id) VALUES (?, ?)`,
				n.ID, role.ID,
			); err != nil {
				return fmt.Errorf("failed to address role %d: %w", role.ID, err)
			}
		}
		for _, user := range users {
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO notification_recipients (notification_id, user_id) VALUES (?, ?)`,
				n.ID, user.ID,
			); err != nil {
				return fmt.Errorf("failed to address user %d: %w", user.ID, err)
			}
		}

		r.logger.Info("Notification stored",
			zap.Int64("notification_id", n.ID),
			zap.Int("roles", len(roles)),
			zap.Int("users", len(users)))
		return nil
	})
}

// GetByContext returns notifications of a type sharing a context key
func (r *NotificationRepository) GetByContext(ctx context.Context, typeID int64, key string) ([]*entity.Notification, error) {
	query := `
		SELECT id, type_id, subject, body, sender_user_id, context, include_dismiss, created_at
		FROM notifications
		WHERE type_id = ? AND context = ?
		ORDER BY id ASC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, typeID, key)
	if err != nil {
		r.logger.Error("Failed to get notifications by context", zap.String("context", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		err := rows.Scan(
			&n.ID,
			&n.NotificationTypeID,
			&n.Subject,
			&n.Body,
			&n.SenderUserID,
			&n.Context,
			&n.IncludeDismissAction,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// DeleteAllRecipients retracts a notification from every inbox
func (r *NotificationRepository) DeleteAllRecipients(ctx context.Context, notificationID int64) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM notification_recipients WHERE notification_id = ?`, notificationID)
	if err != nil {
		r.logger.Error("Failed to delete notification recipients",
			zap.Int64("notification_id", notificationID),
			zap.Error(err))
		return fmt.Errorf("failed to delete notification recipients: %w", err)
	}
	return nil
}

// GetPendingDeliveries expands role recipients into their members and skips
// users already pushed or abandoned on the Lark channel, as well as pairs
// waiting out a retry
func (r *NotificationRepository) GetPendingDeliveries(ctx context.Context, limit int) ([]*entity.PendingDelivery, error) {
	query := `
		SELECT n.id, u.id, u.lark_open_id, n.subject, n.body, COALESCE(MAX(a.attempts), 0) AS attempts
		FROM notification_recipients nr
		JOIN notifications n ON n.id = nr.notification_id
		JOIN users u ON u.id = nr.user_id
			OR u.id IN (SELECT user_id FROM user_roles WHERE role_id = nr.role_id)
		LEFT JOIN notification_delivery_attempts a
			ON a.notification_id = n.id AND a.user_id = u.id AND a.channel = ?
		WHERE u.lark_open_id <> ''
		AND NOT EXISTS (
			SELECT 1 FROM notification_deliveries d
			WHERE d.notification_id = n.id AND d.user_id = u.id AND d.channel = ?
		)
		AND COALESCE(a.next_attempt_at, 0) <= ?
		GROUP BY n.id, u.id
		ORDER BY attempts ASC, n.id ASC, u.id ASC
		LIMIT ?
	`

	channel := entity.DeliveryChannelLark
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, channel, channel, time.Now().UnixMilli(), limit)
	if err != nil {
		r.logger.Error("Failed to get pending deliveries", zap.Error(err))
		return nil, fmt.Errorf("failed to get pending deliveries: %w", err)
	}
	defer rows.Close()

	var out []*entity.PendingDelivery
	for rows.Next() {
		var d entity.PendingDelivery
		if err := rows.Scan(&d.NotificationID, &d.UserID, &d.LarkOpenID, &d.Subject, &d.Body, &d.Attempts); err != nil {
			return nil, fmt.Errorf("failed to scan pending delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// MarkDelivered is idempotent
func (r *NotificationRepository) MarkDelivered(ctx context.Context, notificationID, userID int64, channel string) error {
	return r.finish(ctx, notificationID, userID, channel, "delivered", "")
}

// Abandon is idempotent and never overwrites a recorded delivery
func (r *NotificationRepository) Abandon(ctx context.Context, notificationID, userID int64, channel, reason string) error {
	return r.finish(ctx, notificationID, userID, channel, "abandoned", reason)
}

func (r *NotificationRepository) finish(ctx context.Context, notificationID, userID int64, channel, outcome, reason string) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT OR IGNORE INTO notification_deliveries (notification_id, user_id, channel, delivered_at, outcome, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, notificationID, userID, channel, time.Now().UTC(), outcome, reason)
	if err != nil {
		r.logger.Error("Failed to record delivery outcome",
			zap.Int64("notification_id", notificationID),
			zap.Int64("user_id", userID),
			zap.String("outcome", outcome),
			zap.Error(err))
		return fmt.Errorf("failed to mark %s: %w", outcome, err)
	}
	return nil
}

// RecordFailure increments the attempt counter of the pair
func (r *NotificationRepository) RecordFailure(ctx context.Context, notificationID, userID int64, channel, reason string, retryAt time.Time) error {
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO notification_delivery_attempts (notification_id, user_id, channel, attempts, last_error, next_attempt_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT (notification_id, user_id, channel) DO UPDATE SET
			attempts = attempts + 1,
			last_error = excluded.last_error,
			next_attempt_at = excluded.next_attempt_at
	`, notificationID, userID, channel, reason, retryAt.UnixMilli())
	if err != nil {
		r.logger.Error("Failed to record delivery failure",
			zap.Int64("notification_id", notificationID),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("failed to record delivery failure: %w", err)
	}
	return nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
