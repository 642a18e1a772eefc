package message_test

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/message"
	"github.com/trezcool/muziki/core/notification"
	"github.com/trezcool/muziki/core/user"
	emailsvc "github.com/trezcool/muziki/services/email"
	logsvc "github.com/trezcool/muziki/services/logger"
	inmemdb "github.com/trezcool/muziki/storage/database/inmem"
	"github.com/trezcool/muziki/tests"
)

type testDeps struct {
	svc      *message.Service
	notifSvc *notification.Service
	usrRepo  user.Repository
}

func setup(t *testing.T) testDeps {
	t.Helper()

	conf := core.NewTestConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), logger)

	return testDeps{
		svc:      message.NewService(inmemdb.NewMessageRepository(db), usrSvc, notifSvc),
		notifSvc: notifSvc,
		usrRepo:  usrRepo,
	}
}

func TestService_Contacts(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	t.Run("teacher sees their roster", func(t *testing.T) {
		contacts, err := deps.svc.Contacts(ctx, teacher)
		require.NoError(t, err)
		require.Len(t, contacts, 2)
		assert.Equal(t, alice.ID, contacts[0].ID)
		assert.Equal(t, bob.ID, contacts[1].ID)
	})

	t.Run("student sees their teacher", func(t *testing.T) {
		contacts, err := deps.svc.Contacts(ctx, alice)
		require.NoError(t, err)
		require.Len(t, contacts, 1)
		assert.Equal(t, teacher.ID, contacts[0].ID)
	})
}

func TestService_SendAndConversation(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	msg, err := deps.svc.Send(ctx, teacher, message.NewMessage{
		ReceiverID: alice.ID,
		Content:    "Remember the metronome.",
	})
	require.NoError(t, err)
	assert.False(t, msg.IsRead())

	_, err = deps.svc.Send(ctx, alice, message.NewMessage{
		ReceiverID: teacher.ID,
		Content:    "Will do!",
	})
	require.NoError(t, err)

	// the receiver is notified
	notifs, err := deps.notifSvc.Unread(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.CategoryMessage, notifs[0].Category)

	t.Run("thread is oldest first, both directions", func(t *testing.T) {
		msgs, err := deps.svc.Conversation(ctx, teacher, alice.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "Remember the metronome.", msgs[0].Content)
		assert.Equal(t, "Will do!", msgs[1].Content)
	})

	t.Run("students cannot message each other", func(t *testing.T) {
		_, err := deps.svc.Send(ctx, alice, message.NewMessage{
			ReceiverID: bob.ID,
			Content:    "psst",
		})
		assert.Equal(t, message.ErrNotContact, err)

		_, err = deps.svc.Conversation(ctx, alice, bob.ID)
		assert.Equal(t, message.ErrNotContact, err)
	})

	t.Run("mark read only affects the other side's messages", func(t *testing.T) {
		require.NoError(t, deps.svc.MarkRead(ctx, alice, teacher.ID))

		msgs, err := deps.svc.Conversation(ctx, alice, teacher.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.True(t, msgs[0].IsRead())  // teacher -> alice, now read
		assert.False(t, msgs[1].IsRead()) // alice -> teacher, untouched
	})
}
