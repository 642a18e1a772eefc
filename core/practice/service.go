package practice

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/user"
)

var NowFunc = time.Now // mockable

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		// QueryEntriesByStudent returns the student's log, newest first.
		QueryEntriesByStudent(ctx context.Context, studentID string) ([]Entry, error)
		// QueryPracticeDates returns the (possibly duplicated) practice dates
		// of a student.
		QueryPracticeDates(ctx context.Context, studentID string) ([]time.Time, error)
		// SumDurationSince totals the practiced minutes on or after `from`.
		SumDurationSince(ctx context.Context, studentID string, from time.Time) (int, error)
	}

	Service struct {
		repo   Repository
		usrSvc *user.Service
	}
)

func NewService(repo Repository, usrSvc *user.Service) *Service {
	return &Service{repo: repo, usrSvc: usrSvc}
}

// Log records a practice session for the student.
func (svc *Service) Log(ctx context.Context, student user.User, ne NewEntry) (Entry, error) {
	return svc.repo.CreateEntry(ctx, Entry{
		StudentID:       student.ID,
		Date:            DateOf(ne.Date),
		DurationMinutes: ne.DurationMinutes,
		Notes:           ne.Notes,
		CreatedAt:       time.Now().UTC(),
	})
}

func (svc *Service) Entries(ctx context.Context, studentID string) ([]Entry, error) {
	return svc.repo.QueryEntriesByStudent(ctx, studentID)
}

// Streak computes the student's current consecutive-day practice streak.
func (svc *Service) Streak(ctx context.Context, studentID string) (int, error) {
	dates, err := svc.repo.QueryPracticeDates(ctx, studentID)
	if err != nil {
		return 0, errors.Wrap(err, "querying practice dates")
	}
	return ComputeStreak(dates, NowFunc()), nil
}

// Stats returns the student's streak and progress against their weekly goal.
// Weeks start Monday 00:00 UTC.
func (svc *Service) Stats(ctx context.Context, studentID string) (Stats, error) {
	streak, err := svc.Streak(ctx, studentID)
	if err != nil {
		return Stats{}, err
	}

	weekStart := StartOfWeek(NowFunc())
	total, err := svc.repo.SumDurationSince(ctx, studentID, weekStart)
	if err != nil {
		return Stats{}, errors.Wrap(err, "summing weekly practice")
	}

	goal := user.DefaultWeeklyGoalMinutes
	if prof, err := svc.usrSvc.GetStudentProfile(ctx, studentID); err == nil {
		goal = prof.WeeklyGoalMinutes
	} else if err != user.ErrNotFound {
		return Stats{}, errors.Wrap(err, "getting student profile")
	}

	return Stats{
		Streak:             streak,
		WeeklyTotalMinutes: total,
		WeeklyGoalMinutes:  goal,
	}, nil
}

// StartOfWeek returns the Monday 00:00 UTC of t's week.
func StartOfWeek(t time.Time) time.Time {
	day := DateOf(t)
	offset := int(day.Weekday()) - 1
	if offset < 0 { // Sunday
		offset = 6
	}
	return day.AddDate(0, 0, -offset)
}
