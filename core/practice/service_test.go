package practice_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/practice"
	"github.com/trezcool/muziki/core/user"
	emailsvc "github.com/trezcool/muziki/services/email"
	inmemdb "github.com/trezcool/muziki/storage/database/inmem"
	"github.com/trezcool/muziki/tests"
)

func setup(t *testing.T) (*practice.Service, user.Repository) {
	t.Helper()

	conf := core.NewTestConfig()
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf), conf)
	svc := practice.NewService(inmemdb.NewPracticeRepository(db), usrSvc)
	return svc, usrRepo
}

func TestService_LogAndEntries(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "teach@test.cd")
	student := testutil.CreateStudent(t, usrRepo, teacher, "Student", "stud", "stud@test.cd")

	entry, err := svc.Log(ctx, student, practice.NewEntry{
		Date:            time.Date(2021, 3, 10, 17, 30, 0, 0, time.UTC),
		DurationMinutes: 45,
		Notes:           "scales and arpeggios",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, student.ID, entry.StudentID)
	// the session timestamp is truncated to its calendar day
	assert.Equal(t, time.Date(2021, 3, 10, 0, 0, 0, 0, time.UTC), entry.Date)

	_, err = svc.Log(ctx, student, practice.NewEntry{
		Date:            time.Date(2021, 3, 9, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	})
	require.NoError(t, err)

	entries, err := svc.Entries(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// newest first
	assert.Equal(t, 45, entries[0].DurationMinutes)
	assert.Equal(t, 30, entries[1].DurationMinutes)
}

func TestService_Stats(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "teach@test.cd")
	student := testutil.CreateStudent(t, usrRepo, teacher, "Student", "stud", "stud@test.cd")

	// Wednesday
	now := time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC)
	practice.NowFunc = func() time.Time { return now }
	defer func() { practice.NowFunc = time.Now }()

	for _, e := range []practice.NewEntry{
		{Date: now, DurationMinutes: 40},                       // today
		{Date: now.AddDate(0, 0, -1), DurationMinutes: 25},     // tuesday
		{Date: now.AddDate(0, 0, -2), DurationMinutes: 35},     // monday, week start
		{Date: now.AddDate(0, 0, -3), DurationMinutes: 60},     // sunday, previous week
		{Date: now.AddDate(0, 0, -3), DurationMinutes: 20},     // second session that day
		{Date: now.AddDate(0, 0, -5), DurationMinutes: 90},     // gap on friday breaks nothing recent
	} {
		_, err := svc.Log(ctx, student, e)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Streak) // sun, mon, tue, wed
	assert.Equal(t, 100, stats.WeeklyTotalMinutes)
	assert.Equal(t, user.DefaultWeeklyGoalMinutes, stats.WeeklyGoalMinutes)
}

func TestService_Stats_customWeeklyGoal(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "teach@test.cd")
	student := testutil.CreateStudent(t, usrRepo, teacher, "Student", "stud", "stud@test.cd")

	prof, err := usrRepo.GetStudentProfile(ctx, student.ID)
	require.NoError(t, err)
	prof.WeeklyGoalMinutes = 300
	_, err = usrRepo.UpdateStudentProfile(ctx, prof)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Streak)
	assert.Equal(t, 300, stats.WeeklyGoalMinutes)
}
