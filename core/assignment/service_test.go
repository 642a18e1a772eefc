package assignment_test

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/assignment"
	"github.com/trezcool/muziki/core/notification"
	"github.com/trezcool/muziki/core/resource"
	"github.com/trezcool/muziki/core/user"
	emailsvc "github.com/trezcool/muziki/services/email"
	filesvc "github.com/trezcool/muziki/services/filestore"
	logsvc "github.com/trezcool/muziki/services/logger"
	inmemdb "github.com/trezcool/muziki/storage/database/inmem"
	"github.com/trezcool/muziki/tests"
)

type testDeps struct {
	svc      *assignment.Service
	resSvc   *resource.Service
	notifSvc *notification.Service
	usrRepo  user.Repository
	store    interface {
		Contents(url string) []byte
	}
}

func setup(t *testing.T) testDeps {
	t.Helper()

	conf := core.NewTestConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)

	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), logger)
	store := filesvc.NewInmemStore()
	resSvc := resource.NewService(inmemdb.NewResourceRepository(db), store, logger)

	return testDeps{
		svc:      assignment.NewService(inmemdb.NewAssignmentRepository(db), usrSvc, resSvc, notifSvc, store),
		resSvc:   resSvc,
		notifSvc: notifSvc,
		usrRepo:  usrRepo,
		store:    store,
	}
}

func TestService_Create(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	res, err := deps.resSvc.Upload(ctx, teacher, resource.NewResource{
		Title:    "Etude",
		FileName: "etude.pdf",
	}, strings.NewReader("pdf"))
	require.NoError(t, err)

	due := time.Date(2021, 3, 20, 0, 0, 0, 0, time.UTC)
	detail, err := deps.svc.Create(ctx, teacher, assignment.NewAssignment{
		Title:       "Etude week",
		Description: "Bars 1-16, slow.",
		StudentIDs:  []string{alice.ID, bob.ID},
		ResourceIDs: []string{res.ID},
		DueDate:     &due,
	})
	require.NoError(t, err)
	assert.Equal(t, due, detail.DueDate.Time)
	require.Len(t, detail.Students, 2)
	for _, as := range detail.Students {
		assert.Equal(t, assignment.StatusPending, as.Status)
	}
	require.Len(t, detail.Resources, 1)
	assert.Equal(t, res.ID, detail.Resources[0].ID)

	// every assigned student is notified
	for _, sid := range []string{alice.ID, bob.ID} {
		notifs, err := deps.notifSvc.Unread(ctx, sid)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, notification.CategoryAssignment, notifs[0].Category)
	}

	t.Run("student outside the roster is rejected", func(t *testing.T) {
		other := testutil.CreateTeacher(t, deps.usrRepo, "Other", "other", "other@test.cd")
		stranger := testutil.CreateStudent(t, deps.usrRepo, other, "Stranger", "stranger", "stranger@test.cd")

		_, err := deps.svc.Create(ctx, teacher, assignment.NewAssignment{
			Title:      "Nope",
			StudentIDs: []string{stranger.ID},
		})
		_, ok := err.(*core.ValidationError)
		require.True(t, ok, "expected *core.ValidationError, got %v", err)
	})

	t.Run("resource outside the library is rejected", func(t *testing.T) {
		_, err := deps.svc.Create(ctx, teacher, assignment.NewAssignment{
			Title:       "Nope",
			StudentIDs:  []string{alice.ID},
			ResourceIDs: []string{"4242"},
		})
		_, ok := err.(*core.ValidationError)
		require.True(t, ok, "expected *core.ValidationError, got %v", err)
	})
}

func TestService_submitAndReviewFlow(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	detail, err := deps.svc.Create(ctx, teacher, assignment.NewAssignment{
		Title:      "Scales",
		StudentIDs: []string{alice.ID},
	})
	require.NoError(t, err)

	t.Run("unassigned student cannot submit", func(t *testing.T) {
		_, err := deps.svc.Submit(ctx, bob, detail.ID, assignment.NewSubmission{
			FileName: "take.mp3",
		}, strings.NewReader("audio"))
		assert.Equal(t, assignment.ErrNotAssigned, err)
	})

	sub, err := deps.svc.Submit(ctx, alice, detail.ID, assignment.NewSubmission{
		FileName: "take.mp3",
		Notes:    "Second take, cleaner.",
	}, strings.NewReader("audio"))
	require.NoError(t, err)
	assert.Equal(t, resource.FileTypeAudio, sub.FileType)
	assert.Equal(t, []byte("audio"), deps.store.Contents(sub.FileURL))

	// the student's status moved along and the teacher was notified
	refreshed, err := deps.svc.Get(ctx, teacher, detail.ID)
	require.NoError(t, err)
	require.Len(t, refreshed.Students, 1)
	assert.Equal(t, assignment.StatusSubmitted, refreshed.Students[0].Status)

	notifs, err := deps.notifSvc.Unread(ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.CategorySubmission, notifs[0].Category)

	t.Run("teacher and student can read it, others cannot", func(t *testing.T) {
		_, _, err := deps.svc.GetSubmission(ctx, teacher, sub.ID)
		require.NoError(t, err)
		_, _, err = deps.svc.GetSubmission(ctx, alice, sub.ID)
		require.NoError(t, err)
		_, _, err = deps.svc.GetSubmission(ctx, bob, sub.ID)
		assert.Equal(t, assignment.ErrNotFound, err)
	})

	rating := 4
	fb, err := deps.svc.Review(ctx, teacher, sub.ID, assignment.NewFeedback{
		Content: "Much better. Watch the left hand in bar 9.",
		Rating:  &rating,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, fb.Rating.Int)

	refreshed, err = deps.svc.Get(ctx, teacher, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusReviewed, refreshed.Students[0].Status)

	t.Run("feedback reaches the student", func(t *testing.T) {
		fbs, err := deps.svc.FeedbackFor(ctx, alice)
		require.NoError(t, err)
		require.Len(t, fbs, 1)
		assert.Equal(t, fb.ID, fbs[0].ID)

		_, fbs, err = deps.svc.GetSubmission(ctx, alice, sub.ID)
		require.NoError(t, err)
		require.Len(t, fbs, 1)
	})

	t.Run("another teacher cannot review", func(t *testing.T) {
		other := testutil.CreateTeacher(t, deps.usrRepo, "Other", "other", "other@test.cd")
		_, err := deps.svc.Review(ctx, other, sub.ID, assignment.NewFeedback{Content: "mine now"})
		assert.Equal(t, assignment.ErrNotFound, err)
	})
}

func TestService_studentView(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	_, err := deps.svc.Create(ctx, teacher, assignment.NewAssignment{
		Title:      "Scales",
		StudentIDs: []string{alice.ID, bob.ID},
	})
	require.NoError(t, err)
	_, err = deps.svc.Create(ctx, teacher, assignment.NewAssignment{
		Title:      "Arpeggios",
		StudentIDs: []string{alice.ID},
	})
	require.NoError(t, err)

	mine, err := deps.svc.ForStudent(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	theirs, err := deps.svc.ForStudent(ctx, bob)
	require.NoError(t, err)
	require.Len(t, theirs, 1)
	assert.Equal(t, "Scales", theirs[0].Title)
	assert.Equal(t, assignment.StatusPending, theirs[0].Status)

	all, err := deps.svc.ForTeacher(ctx, teacher)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_Delete(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")

	detail, err := deps.svc.Create(ctx, teacher, assignment.NewAssignment{
		Title:      "Scales",
		StudentIDs: []string{alice.ID},
	})
	require.NoError(t, err)

	_, err = deps.svc.Submit(ctx, alice, detail.ID, assignment.NewSubmission{
		FileName: "take.mp3",
	}, strings.NewReader("audio"))
	require.NoError(t, err)

	require.NoError(t, deps.svc.Delete(ctx, teacher, detail.ID))

	_, err = deps.svc.Get(ctx, teacher, detail.ID)
	assert.Equal(t, assignment.ErrNotFound, err)

	// the cascade took the submissions with it
	subs, err := deps.svc.Submissions(ctx, teacher)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
