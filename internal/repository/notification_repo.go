// internal/repository/notification_repo.go
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"booking-workers/internal/common/errors"
	"booking-workers/internal/models"

	"github.com/lib/pq"
)

const notificationColumns = `id, user_id, type, title, message, data, priority, read, read_at,
	expires_at, COALESCE(action_url, ''), COALESCE(action_label, ''), created_at`

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var typ, priority string
	var data []byte
	var readAt, expiresAt sql.NullTime
	if err := row.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &data, &priority, &n.Read,
		&readAt, &expiresAt, &n.ActionURL, &n.ActionLabel, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Type = models.NotificationType(typ)
	n.Priority = models.Priority(priority)
	n.ReadAt = nullTimePtr(readAt)
	n.ExpiresAt = nullTimePtr(expiresAt)
	n.Data = map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return &n, nil
}

// Insert persists n and fills its id and created_at.
func (r *NotificationRepository) Insert(ctx context.Context, n *models.Notification) error {
	data := n.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.NewValidationError("data", fmt.Sprintf("data is not JSON-serializable: %v", err))
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, type, title, message, data, priority, expires_at, action_url, action_label)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''))
		RETURNING id, created_at`,
		n.UserID, string(n.Type), n.Title, n.Message, raw, string(n.Priority),
		n.ExpiresAt, n.ActionURL, n.ActionLabel,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (r *NotificationRepository) Get(ctx context.Context, id string) (*models.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("notification", id)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get notification", err)
	}
	return n, nil
}

// List returns a user's notifications newest first, narrowed by filter. Limit 0 means no limit.
func (r *NotificationRepository) List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`)
	args := []interface{}{userID}

	if filter.UnreadOnly {
		sb.WriteString(` AND read = FALSE`)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		fmt.Fprintf(&sb, ` AND type = ANY($%d)`, len(args))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		fmt.Fprintf(&sb, ` AND priority = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC`)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&sb, ` OFFSET $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan notification", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	return out, nil
}

// MarkAsRead marks one of the user's notifications read. Already-read rows keep their read_at.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, NOW())
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark notification read", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFoundError("notification", id)
	}
	return nil
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, "mark all notifications read", `
		UPDATE notifications SET read = TRUE, read_at = NOW()
		WHERE user_id = $1 AND read = FALSE`, userID)
}

func (r *NotificationRepository) SetRead(ctx context.Context, userID string, ids []string, read bool) (int64, error) {
	if read {
		return r.exec(ctx, "bulk mark read", `
			UPDATE notifications SET read = TRUE, read_at = COALESCE(read_at, NOW())
			WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(ids))
	}
	return r.exec(ctx, "bulk mark unread", `
		UPDATE notifications SET read = FALSE, read_at = NULL
		WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(ids))
}

func (r *NotificationRepository) DeleteMany(ctx context.Context, userID string, ids []string) (int64, error) {
	return r.exec(ctx, "bulk delete notifications",
		`DELETE FROM notifications WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(ids))
}

// DeleteExpired removes rows whose expiry is before now. Safe to repeat.
func (r *NotificationRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, "delete expired notifications",
		`DELETE FROM notifications WHERE expires_at IS NOT NULL AND expires_at < $1`, now)
}

func (r *NotificationRepository) exec(ctx context.Context, op, query string, args ...interface{}) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, execError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError(op, err)
	}
	return n, nil
}
