package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/resource"
)

// Per-student assignment statuses
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusReviewed  = "reviewed"
)

var Statuses = []string{StatusPending, StatusSubmitted, StatusReviewed}

// Assignment is a piece of work a teacher hands out to one or more students.
type Assignment struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacher_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	DueDate     null.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssignmentStudent tracks one student's progress on an assignment.
type AssignmentStudent struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name,omitempty"` // joined in by the repository
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentAssignment is an assignment as seen by one student: the assignment
// plus their own status.
type StudentAssignment struct {
	Assignment
	Status string `json:"status"`
}

// Detail is an assignment with its roster and attached resources.
type Detail struct {
	Assignment
	Students  []AssignmentStudent `json:"students"`
	Resources []resource.Resource `json:"resources"`
}

// Submission is a student's recorded take on an assignment; the file is an
// upload (audio/video recording or annotated score).
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name,omitempty"` // joined in by the repository
	FileURL      string    `json:"file_url"`
	FileType     string    `json:"file_type"`
	Notes        string    `json:"notes,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Feedback is a teacher's review of a submission, optionally rated 1..5.
type Feedback struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	TeacherID    string    `json:"teacher_id"`
	Content      string    `json:"content"`
	Rating       null.Int  `json:"rating,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAssignment contains information needed to hand out an assignment.
type NewAssignment struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	StudentIDs  []string   `json:"student_ids" validate:"required,min=1"`
	ResourceIDs []string   `json:"resource_ids"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

// UpdateAssignment defines what may be changed on an existing assignment.
type UpdateAssignment struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	ua.Title = core.CleanString(ua.Title)
	ua.Description = core.CleanString(ua.Description)
	return validate.Struct(ua)
}

// NewSubmission contains the metadata of a submission upload.
type NewSubmission struct {
	FileName string `json:"file_name" validate:"required"`
	Notes    string `json:"notes"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Notes = core.CleanString(ns.Notes)
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if resource.FileTypeOf(ns.FileName) == "" {
		return core.NewValidationError(nil, core.FieldError{
			Field: "file_name",
			Error: "unsupported file type; use pdf, audio or video files",
		})
	}
	return nil
}

// NewFeedback contains a teacher's review of a submission.
type NewFeedback struct {
	Content string `json:"content" validate:"required"`
	Rating  *int   `json:"rating" validate:"omitempty,min=1,max=5"`
}

func (nf *NewFeedback) Validate(validate *validator.Validate) error {
	nf.Content = core.CleanString(nf.Content)
	return validate.Struct(nf)
}
