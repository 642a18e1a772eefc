package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core/assignment"
)

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

type dbAssignment struct {
	ID          string      `db:"id"`
	TeacherID   string      `db:"teacher_id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	DueDate     null.Time   `db:"due_date"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (repo assignmentRepository) unrow(a dbAssignment) assignment.Assignment {
	return assignment.Assignment{
		ID:          a.ID,
		TeacherID:   a.TeacherID,
		Title:       a.Title,
		Description: a.Description.String,
		DueDate:     a.DueDate,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (repo assignmentRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return assignment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// CreateAssignment inserts the assignment with its roster and resource links
// in one transaction.
func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, studentIDs, resourceIDs []string) (assignment.Assignment, error) {
	a.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assignment (id, teacher_id, title, description, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.TeacherID, a.Title, a.Description, a.DueDate, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}

	for _, sid := range studentIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignment_student (id, assignment_id, student_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New().String(), a.ID, sid, assignment.StatusPending, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
		if err != nil {
			return assignment.Assignment{}, errors.Wrap(err, "inserting assignment student")
		}
	}
	for _, rid := range resourceIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO assignment_resource (id, assignment_id, resource_id, created_at)
			VALUES ($1, $2, $3, $4)`,
			uuid.New().String(), a.ID, rid, a.CreatedAt.UTC())
		if err != nil {
			return assignment.Assignment{}, errors.Wrap(err, "inserting assignment resource")
		}
	}

	if err = tx.Commit(); err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "committing transaction")
	}
	return a, nil
}

const selectAssignment = `SELECT id, teacher_id, title, description, due_date, created_at, updated_at FROM assignment`

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	var a dbAssignment
	if err := repo.db.GetContext(ctx, &a, selectAssignment+` WHERE id = $1`, id); err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, "getting assignment")
	}
	return repo.unrow(a), nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE assignment SET title = $1, description = $2, due_date = $3, updated_at = $4 WHERE id = $5`,
		a.Title, a.Description, a.DueDate, a.UpdatedAt.UTC(), a.ID)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return repo.GetAssignmentByID(ctx, a.ID)
}

func (repo assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM assignment WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo assignmentRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]assignment.Assignment, error) {
	var rows []dbAssignment
	q := selectAssignment + ` WHERE teacher_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying teacher assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, a := range rows {
		assignments = append(assignments, repo.unrow(a))
	}
	return assignments, nil
}

func (repo assignmentRepository) QueryAssignmentsByStudent(ctx context.Context, studentID string) ([]assignment.StudentAssignment, error) {
	type dbStudentAssignment struct {
		dbAssignment
		Status string `db:"status"`
	}
	var rows []dbStudentAssignment
	q := `
		SELECT a.id, a.teacher_id, a.title, a.description, a.due_date, a.created_at, a.updated_at, s.status
		FROM assignment_student s
		JOIN assignment a ON a.id = s.assignment_id
		WHERE s.student_id = $1
		ORDER BY a.created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student assignments")
	}
	assignments := make([]assignment.StudentAssignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, assignment.StudentAssignment{
			Assignment: repo.unrow(r.dbAssignment),
			Status:     r.Status,
		})
	}
	return assignments, nil
}

func (repo assignmentRepository) QueryAssignmentStudents(ctx context.Context, assignmentID string) ([]assignment.AssignmentStudent, error) {
	type dbAssignmentStudent struct {
		ID           string      `db:"id"`
		AssignmentID string      `db:"assignment_id"`
		StudentID    string      `db:"student_id"`
		StudentName  null.String `db:"student_name"`
		Status       string      `db:"status"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}
	var rows []dbAssignmentStudent
	q := `
		SELECT s.id, s.assignment_id, s.student_id, u.name student_name, s.status, s.created_at, s.updated_at
		FROM assignment_student s
		JOIN "user" u ON u.id = s.student_id
		WHERE s.assignment_id = $1
		ORDER BY u.name`
	if err := repo.db.SelectContext(ctx, &rows, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying assignment students")
	}
	students := make([]assignment.AssignmentStudent, 0, len(rows))
	for _, r := range rows {
		students = append(students, assignment.AssignmentStudent{
			ID:           r.ID,
			AssignmentID: r.AssignmentID,
			StudentID:    r.StudentID,
			StudentName:  r.StudentName.String,
			Status:       r.Status,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		})
	}
	return students, nil
}

func (repo assignmentRepository) QueryAssignmentResourceIDs(ctx context.Context, assignmentID string) ([]string, error) {
	var ids []string
	q := `SELECT resource_id FROM assignment_resource WHERE assignment_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &ids, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying assignment resources")
	}
	return ids, nil
}

func (repo assignmentRepository) SetAssignmentStudentStatus(ctx context.Context, assignmentID, studentID, status string, now time.Time) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE assignment_student SET status = $1, updated_at = $2
		WHERE assignment_id = $3 AND student_id = $4`,
		status, now.UTC(), assignmentID, studentID)
	if err != nil {
		return errors.Wrap(err, "setting assignment student status")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return assignment.ErrNotAssigned
	}
	return nil
}

// --- submissions ---

type dbSubmission struct {
	ID           string      `db:"id"`
	AssignmentID string      `db:"assignment_id"`
	StudentID    string      `db:"student_id"`
	StudentName  null.String `db:"student_name"`
	FileURL      string      `db:"file_url"`
	FileType     string      `db:"file_type"`
	Notes        null.String `db:"notes"`
	SubmittedAt  time.Time   `db:"submitted_at"`
}

func (repo assignmentRepository) unrowSubmission(s dbSubmission) assignment.Submission {
	return assignment.Submission{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		StudentName:  s.StudentName.String,
		FileURL:      s.FileURL,
		FileType:     s.FileType,
		Notes:        s.Notes.String,
		SubmittedAt:  s.SubmittedAt,
	}
}

func (repo assignmentRepository) unrowSubmissionSlice(rows []dbSubmission) []assignment.Submission {
	subs := make([]assignment.Submission, 0, len(rows))
	for _, s := range rows {
		subs = append(subs, repo.unrowSubmission(s))
	}
	return subs
}

func (repo assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	sub.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO submission (id, assignment_id, student_id, file_url, file_type, notes, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.FileURL, sub.FileType, sub.Notes, sub.SubmittedAt.UTC())
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

const selectSubmission = `
	SELECT s.id, s.assignment_id, s.student_id, u.name student_name, s.file_url, s.file_type, s.notes, s.submitted_at
	FROM submission s
	JOIN "user" u ON u.id = s.student_id`

func (repo assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	var s dbSubmission
	if err := repo.db.GetContext(ctx, &s, selectSubmission+` WHERE s.id = $1`, id); err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, "getting submission")
	}
	return repo.unrowSubmission(s), nil
}

func (repo assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	var rows []dbSubmission
	q := selectSubmission + ` WHERE s.assignment_id = $1 ORDER BY s.submitted_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, assignmentID); err != nil {
		return nil, errors.Wrap(err, "querying assignment submissions")
	}
	return repo.unrowSubmissionSlice(rows), nil
}

func (repo assignmentRepository) QuerySubmissionsByTeacher(ctx context.Context, teacherID string) ([]assignment.Submission, error) {
	var rows []dbSubmission
	q := selectSubmission + `
		JOIN assignment a ON a.id = s.assignment_id
		WHERE a.teacher_id = $1
		ORDER BY s.submitted_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying teacher submissions")
	}
	return repo.unrowSubmissionSlice(rows), nil
}

// --- feedback ---

type dbFeedback struct {
	ID           string    `db:"id"`
	SubmissionID string    `db:"submission_id"`
	TeacherID    string    `db:"teacher_id"`
	Content      string    `db:"content"`
	Rating       null.Int  `db:"rating"`
	CreatedAt    time.Time `db:"created_at"`
}

func (repo assignmentRepository) unrowFeedback(f dbFeedback) assignment.Feedback {
	return assignment.Feedback{
		ID:           f.ID,
		SubmissionID: f.SubmissionID,
		TeacherID:    f.TeacherID,
		Content:      f.Content,
		Rating:       f.Rating,
		CreatedAt:    f.CreatedAt,
	}
}

func (repo assignmentRepository) CreateFeedback(ctx context.Context, fb assignment.Feedback) (assignment.Feedback, error) {
	fb.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO feedback (id, submission_id, teacher_id, content, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fb.ID, fb.SubmissionID, fb.TeacherID, fb.Content, fb.Rating, fb.CreatedAt.UTC())
	if err != nil {
		return assignment.Feedback{}, errors.Wrap(err, "inserting feedback")
	}
	return fb, nil
}

const selectFeedback = `SELECT id, submission_id, teacher_id, content, rating, created_at FROM feedback`

func (repo assignmentRepository) QueryFeedbackBySubmission(ctx context.Context, submissionID string) ([]assignment.Feedback, error) {
	var rows []dbFeedback
	q := selectFeedback + ` WHERE submission_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, submissionID); err != nil {
		return nil, errors.Wrap(err, "querying submission feedback")
	}
	fbs := make([]assignment.Feedback, 0, len(rows))
	for _, f := range rows {
		fbs = append(fbs, repo.unrowFeedback(f))
	}
	return fbs, nil
}

func (repo assignmentRepository) QueryFeedbackByStudent(ctx context.Context, studentID string) ([]assignment.Feedback, error) {
	var rows []dbFeedback
	q := `
		SELECT f.id, f.submission_id, f.teacher_id, f.content, f.rating, f.created_at
		FROM feedback f
		JOIN submission s ON s.id = f.submission_id
		WHERE s.student_id = $1
		ORDER BY f.created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying student feedback")
	}
	fbs := make([]assignment.Feedback, 0, len(rows))
	for _, f := range rows {
		fbs = append(fbs, repo.unrowFeedback(f))
	}
	return fbs, nil
}
