package practice

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/muziki/core"
)

// Entry is one logged practice session. Entries are immutable once created;
// several entries may share a calendar day and count as one day of practice.
type Entry struct {
	ID              string    `json:"id"`
	StudentID       string    `json:"student_id"`
	Date            time.Time `json:"date"` // day precision, UTC
	DurationMinutes int       `json:"duration_minutes"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEntry contains information needed to log a practice session.
type NewEntry struct {
	Date            time.Time `json:"date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
	Notes           string    `json:"notes"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.Notes = core.CleanString(ne.Notes)
	return validate.Struct(ne)
}

// Stats is the gamification summary shown on a student dashboard.
type Stats struct {
	Streak             int `json:"streak"`
	WeeklyTotalMinutes int `json:"weekly_total_minutes"`
	WeeklyGoalMinutes  int `json:"weekly_goal_minutes"`
}
