package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/muziki/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  &isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateTeacher creates an active teacher account with a studio profile.
func CreateTeacher(t *testing.T, repo user.Repository, name, uname, email string) user.User {
	t.Helper()

	usr := CreateUser(t, repo, name, uname, email, "s3cr3t", user.TeacherRoles, true)
	now := time.Now().UTC()
	if _, err := repo.CreateTeacherProfile(context.Background(), user.TeacherProfile{
		UserID:     usr.ID,
		StudioName: name + "'s Studio",
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return usr
}

// CreateStudent creates an active student account on the given teacher's roster.
func CreateStudent(t *testing.T, repo user.Repository, teacher user.User, name, uname, email string) user.User {
	t.Helper()

	usr := CreateUser(t, repo, name, uname, email, "s3cr3t", user.StudentRoles, true)
	now := time.Now().UTC()
	if _, err := repo.CreateStudentProfile(context.Background(), user.StudentProfile{
		UserID:            usr.ID,
		TeacherID:         teacher.ID,
		Instrument:        "piano",
		SkillLevel:        user.SkillBeginner,
		WeeklyGoalMinutes: user.DefaultWeeklyGoalMinutes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}
