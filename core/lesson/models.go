package lesson

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/muziki/core"
)

// Statuses
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var Statuses = []string{StatusScheduled, StatusCompleted, StatusCancelled}

// Lesson is a scheduled teacher-student time block. Its time range is
// half-open: [Start, End) — back-to-back lessons sharing a boundary instant do
// not overlap.
type Lesson struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	StudentID string    `json:"student_id"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// StudentName is joined in at the data-access boundary for display.
	StudentName string `json:"student_name,omitempty"`
}

// Overlaps reports whether the lesson's half-open interval intersects
// [start, end).
func (l *Lesson) Overlaps(start, end time.Time) bool {
	return l.Start.Before(end) && l.End.After(start)
}

// ConflictError reports a scheduling overlap with enough context for a
// user-readable message.
type ConflictError struct {
	StudentName string
	Start       time.Time
}

func (e *ConflictError) Error() string {
	name := e.StudentName
	if name == "" {
		name = "another student"
	}
	return fmt.Sprintf("time conflict: you already have a lesson with %s at %s", name, e.Start.Format("15:04"))
}

// NewLesson contains information needed to schedule a lesson.
type NewLesson struct {
	StudentID       string    `json:"student_id" validate:"required"`
	Start           time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Notes           string    `json:"notes"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Notes = core.CleanString(nl.Notes)
	return validate.Struct(nl)
}

func (nl *NewLesson) EndTime() time.Time {
	return nl.Start.Add(time.Duration(nl.DurationMinutes) * time.Minute)
}

// UpdateLesson defines what may be changed on an existing lesson.
type UpdateLesson struct {
	StudentID       string    `json:"student_id" validate:"required"`
	Start           time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Status          string    `json:"status" validate:"omitempty,lessonstatus"`
	Notes           string    `json:"notes"`
}

func (ul *UpdateLesson) Validate(validate *validator.Validate) error {
	ul.Notes = core.CleanString(ul.Notes)
	return validate.Struct(ul)
}

func (ul *UpdateLesson) EndTime() time.Time {
	return ul.Start.Add(time.Duration(ul.DurationMinutes) * time.Minute)
}

// QueryFilter narrows lesson listings to a time window.
type QueryFilter struct {
	From time.Time `query:"from"`
	To   time.Time `query:"to"`
}
