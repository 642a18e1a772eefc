package lesson_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/notification"
	"github.com/trezcool/muziki/core/user"
	emailsvc "github.com/trezcool/muziki/services/email"
	logsvc "github.com/trezcool/muziki/services/logger"
	inmemdb "github.com/trezcool/muziki/storage/database/inmem"
	"github.com/trezcool/muziki/tests"
)

type testDeps struct {
	svc      *lesson.Service
	usrRepo  user.Repository
	notifSvc *notification.Service
	db       *inmemdb.DB
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
		svc:      lesson.NewService(inmemdb.NewLessonRepository(db), usrSvc, notifSvc),
		usrRepo:  usrRepo,
		notifSvc: notifSvc,
		db:       db,
	}
}

func at(hour int) time.Time {
	return time.Date(2021, 3, 10, hour, 0, 0, 0, time.UTC)
}

func TestService_Create(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	lsn, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
		StudentID:       alice.ID,
		Start:           at(10),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, lesson.StatusScheduled, lsn.Status)
	assert.Equal(t, at(11), lsn.End)
	assert.Equal(t, "Alice", lsn.StudentName)

	// the student is notified
	notifs, err := deps.notifSvc.Unread(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.CategoryLesson, notifs[0].Category)

	t.Run("overlapping slot conflicts", func(t *testing.T) {
		_, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
			StudentID:       bob.ID,
			Start:           at(10).Add(30 * time.Minute),
			DurationMinutes: 60,
		})
		conflictErr, ok := err.(*lesson.ConflictError)
		require.True(t, ok, "expected *lesson.ConflictError, got %v", err)
		assert.Equal(t, "Alice", conflictErr.StudentName)
		assert.Equal(t, at(10), conflictErr.Start)
	})

	t.Run("contained slot conflicts", func(t *testing.T) {
		_, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
			StudentID:       bob.ID,
			Start:           at(10).Add(15 * time.Minute),
			DurationMinutes: 15,
		})
		_, ok := err.(*lesson.ConflictError)
		require.True(t, ok, "expected *lesson.ConflictError, got %v", err)
	})

	t.Run("back-to-back does not conflict", func(t *testing.T) {
		_, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
			StudentID:       bob.ID,
			Start:           at(11),
			DurationMinutes: 60,
		})
		require.NoError(t, err)
	})

	t.Run("student of another teacher is rejected", func(t *testing.T) {
		other := testutil.CreateTeacher(t, deps.usrRepo, "Other", "other", "other@test.cd")
		stranger := testutil.CreateStudent(t, deps.usrRepo, other, "Stranger", "stranger", "stranger@test.cd")

		_, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
			StudentID:       stranger.ID,
			Start:           at(14),
			DurationMinutes: 30,
		})
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestService_Create_cancelledLessonsDoNotConflict(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")

	lsn, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
		StudentID:       alice.ID,
		Start:           at(10),
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	_, err = deps.svc.Update(ctx, teacher, lsn.ID, lesson.UpdateLesson{
		StudentID:       alice.ID,
		Start:           at(10),
		DurationMinutes: 60,
		Status:          lesson.StatusCancelled,
	})
	require.NoError(t, err)

	// the freed slot can be re-booked
	_, err = deps.svc.Create(ctx, teacher, lesson.NewLesson{
		StudentID:       alice.ID,
		Start:           at(10),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
}

func TestService_Update(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	first, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
		StudentID: alice.ID, Start: at(10), DurationMinutes: 60,
	})
	require.NoError(t, err)
	second, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
		StudentID: bob.ID, Start: at(12), DurationMinutes: 60,
	})
	require.NoError(t, err)

	t.Run("reschedule does not self-conflict", func(t *testing.T) {
		updated, err := deps.svc.Update(ctx, teacher, first.ID, lesson.UpdateLesson{
			StudentID:       alice.ID,
			Start:           at(10).Add(15 * time.Minute),
			DurationMinutes: 60,
		})
		require.NoError(t, err)
		assert.Equal(t, at(10).Add(15*time.Minute), updated.Start)
	})

	t.Run("reschedule onto another lesson conflicts", func(t *testing.T) {
		_, err := deps.svc.Update(ctx, teacher, first.ID, lesson.UpdateLesson{
			StudentID:       alice.ID,
			Start:           second.Start,
			DurationMinutes: 60,
		})
		conflictErr, ok := err.(*lesson.ConflictError)
		require.True(t, ok, "expected *lesson.ConflictError, got %v", err)
		assert.Equal(t, "Bob", conflictErr.StudentName)
	})

	t.Run("another teacher cannot touch the lesson", func(t *testing.T) {
		other := testutil.CreateTeacher(t, deps.usrRepo, "Other", "other", "other@test.cd")
		_, err := deps.svc.Update(ctx, other, first.ID, lesson.UpdateLesson{
			StudentID:       alice.ID,
			Start:           at(16),
			DurationMinutes: 30,
		})
		assert.Equal(t, lesson.ErrNotFound, err)
	})
}

func TestService_queryWindows(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")

	for _, h := range []int{9, 11, 15} {
		_, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
			StudentID: alice.ID, Start: at(h), DurationMinutes: 60,
		})
		require.NoError(t, err)
	}

	lessons, err := deps.svc.ForTeacher(ctx, teacher, lesson.QueryFilter{From: at(10), To: at(16)})
	require.NoError(t, err)
	require.Len(t, lessons, 2)
	// ordered by start time
	assert.Equal(t, at(11), lessons[0].Start)
	assert.Equal(t, at(15), lessons[1].Start)

	studentLessons, err := deps.svc.ForStudent(ctx, alice, lesson.QueryFilter{From: at(0), To: at(23)})
	require.NoError(t, err)
	assert.Len(t, studentLessons, 3)
}

// A write that slips past the advisory check still surfaces as a conflict:
// the storage layer rejects the overlap and the service re-queries for the
// offending lesson.
func TestService_Create_lostRaceStillConflicts(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, deps.usrRepo, "Teacher", "teach", "teach@test.cd")
	alice := testutil.CreateStudent(t, deps.usrRepo, teacher, "Alice", "alice", "alice@test.cd")
	bob := testutil.CreateStudent(t, deps.usrRepo, teacher, "Bob", "bob", "bob@test.cd")

	_, err := deps.svc.Create(ctx, teacher, lesson.NewLesson{
		StudentID: alice.ID, Start: at(10), DurationMinutes: 60,
	})
	require.NoError(t, err)

	// drive the repository directly, as a concurrent writer would
	repo := inmemdb.NewLessonRepository(deps.db)
	_, err = repo.CreateLesson(ctx, lesson.Lesson{
		TeacherID: teacher.ID,
		StudentID: bob.ID,
		Start:     at(10).Add(30 * time.Minute),
		End:       at(11).Add(30 * time.Minute),
		Status:    lesson.StatusScheduled,
	})
	assert.Equal(t, lesson.ErrOverlap, err)
}
