package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, notif Notification) (Notification, error)
		// QueryUnreadByRecipient returns unread notifications, newest first,
		// capped at limit.
		QueryUnreadByRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error)
		MarkNotificationRead(ctx context.Context, recipientID, id string, readAt time.Time) error
		MarkAllNotificationsRead(ctx context.Context, recipientID string, readAt time.Time) error
	}

	Service struct {
		repo Repository
		log  core.Logger
	}
)

func NewService(repo Repository, log core.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Notify records a notification for the recipient. It is strictly best-effort:
// the caller's primary action must not fail because a notification could not
// be written, so failures are only logged.
func (svc *Service) Notify(ctx context.Context, recipientID, category, title, body, link string) {
	notif := Notification{
		RecipientID: recipientID,
		Category:    category,
		Title:       title,
		Body:        null.NewString(body, body != ""),
		Link:        null.NewString(link, link != ""),
		CreatedAt:   time.Now().UTC(),
	}
	if _, err := svc.repo.CreateNotification(ctx, notif); err != nil {
		svc.log.Error(
			"dispatching notification",
			errors.Wrap(err, "creating notification"),
			map[string]interface{}{"recipient": recipientID, "category": category},
		)
	}
}

func (svc *Service) Unread(ctx context.Context, recipientID string) ([]Notification, error) {
	return svc.repo.QueryUnreadByRecipient(ctx, recipientID, UnreadLimit)
}

// MarkRead marks one of the recipient's own notifications read.
func (svc *Service) MarkRead(ctx context.Context, recipientID, id string) error {
	return svc.repo.MarkNotificationRead(ctx, recipientID, id, time.Now().UTC())
}

// MarkAllRead marks all of the recipient's unread notifications read.
func (svc *Service) MarkAllRead(ctx context.Context, recipientID string) error {
	return svc.repo.MarkAllNotificationsRead(ctx, recipientID, time.Now().UTC())
}
