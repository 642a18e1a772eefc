package lesson

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/notification"
	"github.com/trezcool/muziki/core/user"
)

var (
	ErrNotFound = errors.New("lesson not found")
	// ErrOverlap is returned by repositories when the teacher-overlap
	// exclusion constraint rejects a write. It closes the window between the
	// service-level conflict check and the insert under concurrent writers.
	ErrOverlap = errors.New("lesson overlaps an existing lesson")
)

type (
	Repository interface {
		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, teacherID, id string) error
		// QueryLessonsByTeacher returns the teacher's lessons within [from, to),
		// ordered by start time.
		QueryLessonsByTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]Lesson, error)
		QueryLessonsByStudent(ctx context.Context, studentID string, from, to time.Time) ([]Lesson, error)
		// FindOverlapping returns the first non-cancelled lesson of the teacher
		// whose half-open interval intersects [start, end), skipping excludeID
		// (the editing case); ErrNotFound when the slot is free.
		FindOverlapping(ctx context.Context, teacherID string, start, end time.Time, excludeID string) (Lesson, error)
	}

	Service struct {
		repo     Repository
		usrSvc   *user.Service
		notifSvc *notification.Service
	}
)

func NewService(repo Repository, usrSvc *user.Service, notifSvc *notification.Service) *Service {
	return &Service{repo: repo, usrSvc: usrSvc, notifSvc: notifSvc}
}

// Create schedules a lesson for one of the teacher's students. It fails with
// *ConflictError when the slot overlaps another non-cancelled lesson of the
// same teacher.
func (svc *Service) Create(ctx context.Context, teacher user.User, nl NewLesson) (Lesson, error) {
	student, err := svc.usrSvc.GetStudent(ctx, teacher, nl.StudentID)
	if err != nil {
		return Lesson{}, err
	}

	start, end := nl.Start.UTC(), nl.EndTime().UTC()
	if err = svc.findConflict(ctx, teacher.ID, start, end, ""); err != nil {
		return Lesson{}, err
	}

	lsn, err := svc.repo.CreateLesson(ctx, Lesson{
		TeacherID:   teacher.ID,
		StudentID:   student.User.ID,
		Start:       start,
		End:         end,
		Status:      StatusScheduled,
		Notes:       nl.Notes,
		CreatedAt:   time.Now().UTC(),
		StudentName: student.User.Name,
	})
	if err != nil {
		return Lesson{}, svc.trapOverlapErr(ctx, teacher.ID, start, end, "", err)
	}

	svc.notifSvc.Notify(ctx, lsn.StudentID, notification.CategoryLesson,
		"New Lesson Scheduled",
		fmt.Sprintf("%s scheduled a lesson for %s.", teacher.Name, formatSlot(lsn.Start)),
		"/dashboard/schedule",
	)
	return lsn, nil
}

// Update reschedules or re-statuses a lesson; the conflict check excludes the
// lesson itself so it can be moved without self-conflicting.
func (svc *Service) Update(ctx context.Context, teacher user.User, id string, ul UpdateLesson) (Lesson, error) {
	lsn, err := svc.getOwned(ctx, teacher, id)
	if err != nil {
		return Lesson{}, err
	}
	student, err := svc.usrSvc.GetStudent(ctx, teacher, ul.StudentID)
	if err != nil {
		return Lesson{}, err
	}

	status := lsn.Status
	if ul.Status != "" {
		status = ul.Status
	}

	start, end := ul.Start.UTC(), ul.EndTime().UTC()
	// cancelled lessons never conflict
	if status != StatusCancelled {
		if err = svc.findConflict(ctx, teacher.ID, start, end, lsn.ID); err != nil {
			return Lesson{}, err
		}
	}

	lsn.StudentID = student.User.ID
	lsn.StudentName = student.User.Name
	lsn.Start = start
	lsn.End = end
	lsn.Status = status
	lsn.Notes = ul.Notes

	updated, err := svc.repo.UpdateLesson(ctx, lsn)
	if err != nil {
		return Lesson{}, svc.trapOverlapErr(ctx, teacher.ID, start, end, lsn.ID, err)
	}

	title := "Lesson Updated"
	body := fmt.Sprintf("%s moved your lesson to %s.", teacher.Name, formatSlot(updated.Start))
	if updated.Status == StatusCancelled {
		title = "Lesson Cancelled"
		body = fmt.Sprintf("%s cancelled your lesson on %s.", teacher.Name, formatSlot(updated.Start))
	}
	svc.notifSvc.Notify(ctx, updated.StudentID, notification.CategoryLesson, title, body, "/dashboard/schedule")
	return updated, nil
}

func (svc *Service) Delete(ctx context.Context, teacher user.User, id string) error {
	if _, err := svc.getOwned(ctx, teacher, id); err != nil {
		return err
	}
	return svc.repo.DeleteLesson(ctx, teacher.ID, id)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Lesson, error) {
	return svc.repo.GetLessonByID(ctx, id)
}

// ForTeacher lists the teacher's lessons in the filter window (defaults to the
// current week).
func (svc *Service) ForTeacher(ctx context.Context, teacher user.User, filter QueryFilter) ([]Lesson, error) {
	from, to := windowOf(filter)
	return svc.repo.QueryLessonsByTeacher(ctx, teacher.ID, from, to)
}

func (svc *Service) ForStudent(ctx context.Context, student user.User, filter QueryFilter) ([]Lesson, error) {
	from, to := windowOf(filter)
	return svc.repo.QueryLessonsByStudent(ctx, student.ID, from, to)
}

// findConflict runs the interval-overlap check and shapes a hit into
// *ConflictError. The check alone is advisory; the exclusion constraint is
// what makes it safe under concurrency.
func (svc *Service) findConflict(ctx context.Context, teacherID string, start, end time.Time, excludeID string) error {
	if !end.After(start) {
		return errors.New("lesson end must be after its start")
	}
	existing, err := svc.repo.FindOverlapping(ctx, teacherID, start, end, excludeID)
	if err != nil {
		if err == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding overlapping lessons")
	}
	return &ConflictError{StudentName: existing.StudentName, Start: existing.Start}
}

// trapOverlapErr maps a repository ErrOverlap (lost race) to *ConflictError.
func (svc *Service) trapOverlapErr(ctx context.Context, teacherID string, start, end time.Time, excludeID string, err error) error {
	if errors.Cause(err) != ErrOverlap {
		return err
	}
	if existing, findErr := svc.repo.FindOverlapping(ctx, teacherID, start, end, excludeID); findErr == nil {
		return &ConflictError{StudentName: existing.StudentName, Start: existing.Start}
	}
	return &ConflictError{Start: start}
}

func (svc *Service) getOwned(ctx context.Context, teacher user.User, id string) (Lesson, error) {
	lsn, err := svc.repo.GetLessonByID(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if lsn.TeacherID != teacher.ID {
		return Lesson{}, ErrNotFound
	}
	return lsn, nil
}

func windowOf(filter QueryFilter) (time.Time, time.Time) {
	from, to := filter.From, filter.To
	if from.IsZero() && to.IsZero() {
		now := time.Now().UTC()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := int(day.Weekday()) - 1
		if offset < 0 { // Sunday
			offset = 6
		}
		from = day.AddDate(0, 0, -offset)
		to = from.AddDate(0, 0, 7)
	}
	return from, to
}

func formatSlot(t time.Time) string {
	return t.Format("Monday, 2 January at 15:04")
}
