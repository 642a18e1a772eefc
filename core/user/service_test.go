package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/user"
	emailsvc "github.com/trezcool/muziki/services/email"
	inmemdb "github.com/trezcool/muziki/storage/database/inmem"
	"github.com/trezcool/muziki/tests"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) (*user.Service, user.Repository, *core.Config) {
	t.Helper()

	conf := core.NewTestConfig()
	conf.SecretKey = []byte("secret")
	conf.InviteExpirationDelta = 7 * 24 * time.Hour
	core.ParseEmailTemplates(conf, nopLogger{})

	db := inmemdb.Open()
	repo := inmemdb.NewUserRepository(db)
	svc := user.NewService(repo, emailsvc.NewConsoleServiceMock(conf), conf)
	return svc, repo, conf
}

func TestService_CreateTeacher(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.CreateTeacher(ctx, user.NewTeacher{
		Name:       "Nana Kwame",
		Email:      "nana@test.cd",
		Password:   "s3cr3t",
		StudioName: "Kwame Keys",
	})
	require.NoError(t, err)
	assert.True(t, usr.IsTeacher())
	assert.False(t, usr.IsStudent())
	require.NoError(t, usr.CheckPassword("s3cr3t"))

	prof, err := repo.GetTeacherProfile(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kwame Keys", prof.StudioName)
}

func TestService_inviteLifecycle(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, repo, "Teacher", "teach", "teach@test.cd")

	emailsvc.ClearSentMessages()
	inv, err := svc.InviteStudent(ctx, teacher, user.NewInvite{Email: "kid@test.cd"})
	require.NoError(t, err)
	assert.NotEmpty(t, inv.Token)
	assert.False(t, inv.IsUsed())
	assert.False(t, inv.IsExpired())

	// the invitee got the email
	require.Len(t, emailsvc.SentMessages, 1)
	assert.Equal(t, "kid@test.cd", emailsvc.SentMessages[0].To[0].Address)

	t.Run("double invite is rejected", func(t *testing.T) {
		_, err := svc.InviteStudent(ctx, teacher, user.NewInvite{Email: "kid@test.cd"})
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok, "expected *core.ValidationError, got %v", err)
		assert.Equal(t, user.ErrInviteExists, vErr.Err)
	})

	t.Run("token lookup", func(t *testing.T) {
		got, err := svc.GetInviteByToken(ctx, inv.Token)
		require.NoError(t, err)
		assert.Equal(t, inv.ID, got.ID)

		_, err = svc.GetInviteByToken(ctx, "nope")
		assert.Equal(t, user.ErrInviteNotFound, err)
	})

	var student user.User
	t.Run("accept creates a linked student", func(t *testing.T) {
		var err error
		student, err = svc.AcceptInvite(ctx, user.AcceptInvite{
			Token:      inv.Token,
			Name:       "Kid",
			Password:   "s3cr3t",
			Instrument: "violin",
			SkillLevel: user.SkillBeginner,
		})
		require.NoError(t, err)
		assert.True(t, student.IsStudent())
		assert.Equal(t, "kid@test.cd", student.Email)

		prof, err := repo.GetStudentProfile(ctx, student.ID)
		require.NoError(t, err)
		assert.Equal(t, teacher.ID, prof.TeacherID)
		assert.Equal(t, "violin", prof.Instrument)
		assert.Equal(t, user.DefaultWeeklyGoalMinutes, prof.WeeklyGoalMinutes)
	})

	t.Run("used token cannot be redeemed again", func(t *testing.T) {
		_, err := svc.AcceptInvite(ctx, user.AcceptInvite{Token: inv.Token, Name: "Kid", Password: "x"})
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok, "expected *core.ValidationError, got %v", err)
		assert.Equal(t, user.ErrInviteUsed, vErr.Err)
	})

	t.Run("existing student cannot be re-invited", func(t *testing.T) {
		_, err := svc.InviteStudent(ctx, teacher, user.NewInvite{Email: student.Email})
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok, "expected *core.ValidationError, got %v", err)
		assert.Equal(t, user.ErrStudentExists, vErr.Err)
	})
}

func TestService_AcceptInvite_expiredToken(t *testing.T) {
	svc, repo, conf := setup(t)
	ctx := context.Background()

	conf.InviteExpirationDelta = -time.Hour // already expired

	teacher := testutil.CreateTeacher(t, repo, "Teacher", "teach", "teach@test.cd")
	inv, err := svc.InviteStudent(ctx, teacher, user.NewInvite{Email: "late@test.cd"})
	require.NoError(t, err)

	_, err = svc.AcceptInvite(ctx, user.AcceptInvite{Token: inv.Token, Name: "Late", Password: "x"})
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "expected *core.ValidationError, got %v", err)
	assert.Equal(t, user.ErrInviteExpired, vErr.Err)
}

func TestService_RemoveStudent(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, repo, "Teacher", "teach", "teach@test.cd")
	student := testutil.CreateStudent(t, repo, teacher, "Student", "stud", "stud@test.cd")

	require.NoError(t, svc.RemoveStudent(ctx, teacher, student.ID))

	_, err := svc.GetStudent(ctx, teacher, student.ID)
	assert.Equal(t, user.ErrNotFound, err)

	// the account is deactivated, not deleted
	usr, err := svc.GetByID(ctx, student.ID)
	require.NoError(t, err)
	require.NotNil(t, usr.IsActive)
	assert.False(t, *usr.IsActive)
}

func TestService_passwordReset(t *testing.T) {
	svc, repo, conf := setup(t)
	ctx := context.Background()

	usr := testutil.CreateTeacher(t, repo, "Teacher", "teach", "teach@test.cd")

	token, err := user.MakeToken(usr, conf)
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{
		UID:      user.EncodeUID(usr),
		Token:    token,
		Password: "n3w-s3cr3t",
	}))

	refreshed, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	require.NoError(t, refreshed.CheckPassword("n3w-s3cr3t"))

	t.Run("token is single-use", func(t *testing.T) {
		// the password hash changed, which invalidates the old token
		err := svc.ResetPassword(ctx, user.ResetUserPassword{
			UID:      user.EncodeUID(usr),
			Token:    token,
			Password: "another",
		})
		_, ok := err.(*core.ValidationError)
		assert.True(t, ok, "expected *core.ValidationError, got %v", err)
	})
}
