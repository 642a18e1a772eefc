package notification_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core/notification"
	inmemdb "github.com/trezcool/muziki/storage/database/inmem"
)

// captureLogger records Error calls so tests can assert on them.
type captureLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *captureLogger) Enable(bool)                  {}
func (l *captureLogger) Debug(string, ...interface{}) {}
func (l *captureLogger) Info(string, ...interface{})  {}
func (l *captureLogger) Warn(string, ...interface{})  {}
func (l *captureLogger) Fatal(string, ...interface{}) {}

func (l *captureLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestService_Notify(t *testing.T) {
	db := inmemdb.Open()
	logger := &captureLogger{}
	svc := notification.NewService(inmemdb.NewNotificationRepository(db), logger)
	ctx := context.Background()

	svc.Notify(ctx, "u1", notification.CategoryLesson, "New Lesson Scheduled", "See you Monday.", "/dashboard/schedule")
	svc.Notify(ctx, "u1", notification.CategoryMessage, "New Message", "", "")
	svc.Notify(ctx, "u2", notification.CategoryFeedback, "Feedback Received", "Nice work.", "")

	notifs, err := svc.Unread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, notifs, 2)
	// newest first
	assert.Equal(t, "New Message", notifs[0].Title)
	assert.False(t, notifs[0].Body.Valid)
	assert.Equal(t, "New Lesson Scheduled", notifs[1].Title)
	assert.Equal(t, "See you Monday.", notifs[1].Body.String)
	assert.False(t, notifs[0].IsRead())

	assert.Empty(t, logger.errors)
}

// Notify is best-effort: a storage failure is logged, never returned.
func TestService_Notify_failureIsSwallowed(t *testing.T) {
	db := inmemdb.Open()
	logger := &captureLogger{}
	repo := inmemdb.NewFailingNotificationRepository(db, errors.New("disk on fire"))
	svc := notification.NewService(repo, logger)

	svc.Notify(context.Background(), "u1", notification.CategoryLesson, "New Lesson Scheduled", "", "")

	require.Len(t, logger.errors, 1)
	assert.Equal(t, "dispatching notification", logger.errors[0])
}

func TestService_MarkRead(t *testing.T) {
	db := inmemdb.Open()
	svc := notification.NewService(inmemdb.NewNotificationRepository(db), &captureLogger{})
	ctx := context.Background()

	svc.Notify(ctx, "u1", notification.CategoryLesson, "A", "", "")
	svc.Notify(ctx, "u1", notification.CategoryLesson, "B", "", "")

	notifs, err := svc.Unread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, notifs, 2)

	t.Run("only the recipient's own notification", func(t *testing.T) {
		err := svc.MarkRead(ctx, "u2", notifs[0].ID)
		assert.Equal(t, notification.ErrNotFound, errors.Cause(err))
	})

	require.NoError(t, svc.MarkRead(ctx, "u1", notifs[0].ID))
	remaining, err := svc.Unread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, notifs[1].ID, remaining[0].ID)

	t.Run("marking twice is a not-found", func(t *testing.T) {
		err := svc.MarkRead(ctx, "u1", notifs[0].ID)
		assert.Equal(t, notification.ErrNotFound, errors.Cause(err))
	})

	require.NoError(t, svc.MarkAllRead(ctx, "u1"))
	remaining, err = svc.Unread(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
