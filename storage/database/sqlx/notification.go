package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

type dbNotification struct {
	ID          string      `db:"id"`
	RecipientID string      `db:"recipient_id"`
	Category    string      `db:"category"`
	Title       string      `db:"title"`
	Body        null.String `db:"body"`
	Link        null.String `db:"link"`
	ReadAt      null.Time   `db:"read_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (repo notificationRepository) unrow(n dbNotification) notification.Notification {
	return notification.Notification{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		Category:    n.Category,
		Title:       n.Title,
		Body:        n.Body,
		Link:        n.Link,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	notif.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO notification (id, recipient_id, category, title, body, link, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		notif.ID, notif.RecipientID, notif.Category, notif.Title, notif.Body, notif.Link, notif.CreatedAt.UTC())
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return notif, nil
}

func (repo notificationRepository) QueryUnreadByRecipient(ctx context.Context, recipientID string, limit int) ([]notification.Notification, error) {
	var rows []dbNotification
	q := `
		SELECT id, recipient_id, category, title, body, link, read_at, created_at
		FROM notification
		WHERE recipient_id = $1 AND read_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2`
	if err := repo.db.SelectContext(ctx, &rows, q, recipientID, limit); err != nil {
		return nil, errors.Wrap(err, "querying unread notifications")
	}
	notifs := make([]notification.Notification, 0, len(rows))
	for _, n := range rows {
		notifs = append(notifs, repo.unrow(n))
	}
	return notifs, nil
}

func (repo notificationRepository) MarkNotificationRead(ctx context.Context, recipientID, id string, readAt time.Time) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE notification SET read_at = $1 WHERE id = $2 AND recipient_id = $3 AND read_at IS NULL`,
		readAt.UTC(), id, recipientID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (repo notificationRepository) MarkAllNotificationsRead(ctx context.Context, recipientID string, readAt time.Time) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE notification SET read_at = $1 WHERE recipient_id = $2 AND read_at IS NULL`,
		readAt.UTC(), recipientID)
	return errors.Wrap(err, "marking all notifications read")
}
