package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core/notification"
)

type notificationRepository struct {
	db *DB

	// failing makes every call error out; lets tests exercise the
	// dispatcher's best-effort behavior.
	failing error
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

// NewFailingNotificationRepository returns a repository whose every method
// fails with err.
func NewFailingNotificationRepository(db *DB, err error) *notificationRepository {
	return &notificationRepository{db: db, failing: err}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, notif notification.Notification) (notification.Notification, error) {
	if repo.failing != nil {
		return notification.Notification{}, repo.failing
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	notif.ID = uuid.New().String()
	repo.db.notifications[notif.ID] = &notif
	return notif, nil
}

func (repo *notificationRepository) QueryUnreadByRecipient(ctx context.Context, recipientID string, limit int) ([]notification.Notification, error) {
	if repo.failing != nil {
		return nil, repo.failing
	}
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var notifs []notification.Notification
	for _, n := range repo.db.notifications {
		if n.RecipientID == recipientID && !n.IsRead() {
			notifs = append(notifs, *n)
		}
	}
	sort.Slice(notifs, func(i, j int) bool { return notifs[i].CreatedAt.After(notifs[j].CreatedAt) })
	if len(notifs) > limit {
		notifs = notifs[:limit]
	}
	return notifs, nil
}

func (repo *notificationRepository) MarkNotificationRead(ctx context.Context, recipientID, id string, readAt time.Time) error {
	if repo.failing != nil {
		return repo.failing
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	n, ok := repo.db.notifications[id]
	if !ok || n.RecipientID != recipientID || n.IsRead() {
		return notification.ErrNotFound
	}
	n.ReadAt = null.TimeFrom(readAt)
	return nil
}

func (repo *notificationRepository) MarkAllNotificationsRead(ctx context.Context, recipientID string, readAt time.Time) error {
	if repo.failing != nil {
		return repo.failing
	}
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, n := range repo.db.notifications {
		if n.RecipientID == recipientID && !n.IsRead() {
			n.ReadAt = null.TimeFrom(readAt)
		}
	}
	return nil
}
