package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core/lesson"
)

// pq error code raised by the lesson_no_teacher_overlap constraint
const pqExclusionViolation = "23P01"

type lessonRepository struct {
	db *sqlx.DB
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *sqlx.DB) *lessonRepository {
	return &lessonRepository{db: db}
}

type dbLesson struct {
	ID          string      `db:"id"`
	TeacherID   string      `db:"teacher_id"`
	StudentID   string      `db:"student_id"`
	Start       time.Time   `db:"start_time"`
	End         time.Time   `db:"end_time"`
	Status      string      `db:"status"`
	Notes       null.String `db:"notes"`
	CreatedAt   time.Time   `db:"created_at"`
	StudentName null.String `db:"student_name"`
}

func (repo lessonRepository) unrow(l dbLesson) lesson.Lesson {
	return lesson.Lesson{
		ID:          l.ID,
		TeacherID:   l.TeacherID,
		StudentID:   l.StudentID,
		Start:       l.Start,
		End:         l.End,
		Status:      l.Status,
		Notes:       l.Notes.String,
		CreatedAt:   l.CreatedAt,
		StudentName: l.StudentName.String,
	}
}

func (repo lessonRepository) unrowSlice(rows []dbLesson) []lesson.Lesson {
	lessons := make([]lesson.Lesson, 0, len(rows))
	for _, l := range rows {
		lessons = append(lessons, repo.unrow(l))
	}
	return lessons
}

func (repo lessonRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return lesson.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// trapExclusionErr maps an exclusion constraint violation from the
// lesson_no_teacher_overlap constraint to lesson.ErrOverlap.
func (repo lessonRepository) trapExclusionErr(err error, msg string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqExclusionViolation {
		return lesson.ErrOverlap
	}
	return errors.Wrap(err, msg)
}

func (repo lessonRepository) CreateLesson(ctx context.Context, lsn lesson.Lesson) (lesson.Lesson, error) {
	lsn.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO lesson (id, teacher_id, student_id, start_time, end_time, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		lsn.ID, lsn.TeacherID, lsn.StudentID, lsn.Start.UTC(), lsn.End.UTC(), lsn.Status, lsn.Notes, lsn.CreatedAt.UTC())
	if err != nil {
		return lesson.Lesson{}, repo.trapExclusionErr(err, "inserting lesson")
	}
	return repo.GetLessonByID(ctx, lsn.ID)
}

const selectLesson = `
	SELECT l.id, l.teacher_id, l.student_id, l.start_time, l.end_time, l.status, l.notes, l.created_at,
	       u.name student_name
	FROM lesson l
	JOIN "user" u ON u.id = l.student_id`

func (repo lessonRepository) GetLessonByID(ctx context.Context, id string) (lesson.Lesson, error) {
	var l dbLesson
	if err := repo.db.GetContext(ctx, &l, selectLesson+` WHERE l.id = $1`, id); err != nil {
		return lesson.Lesson{}, repo.trapNoRowsErr(err, "getting lesson")
	}
	return repo.unrow(l), nil
}

func (repo lessonRepository) UpdateLesson(ctx context.Context, lsn lesson.Lesson) (lesson.Lesson, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE lesson
		SET student_id = $1, start_time = $2, end_time = $3, status = $4, notes = $5
		WHERE id = $6`,
		lsn.StudentID, lsn.Start.UTC(), lsn.End.UTC(), lsn.Status, lsn.Notes, lsn.ID)
	if err != nil {
		return lesson.Lesson{}, repo.trapExclusionErr(err, "updating lesson")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	return repo.GetLessonByID(ctx, lsn.ID)
}

func (repo lessonRepository) DeleteLesson(ctx context.Context, teacherID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM lesson WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	if err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return lesson.ErrNotFound
	}
	return nil
}

func (repo lessonRepository) QueryLessonsByTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]lesson.Lesson, error) {
	var rows []dbLesson
	q := selectLesson + ` WHERE l.teacher_id = $1 AND l.start_time < $3 AND l.end_time > $2 ORDER BY l.start_time`
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID, from.UTC(), to.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying teacher lessons")
	}
	return repo.unrowSlice(rows), nil
}

func (repo lessonRepository) QueryLessonsByStudent(ctx context.Context, studentID string, from, to time.Time) ([]lesson.Lesson, error) {
	var rows []dbLesson
	q := selectLesson + ` WHERE l.student_id = $1 AND l.start_time < $3 AND l.end_time > $2 ORDER BY l.start_time`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID, from.UTC(), to.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying student lessons")
	}
	return repo.unrowSlice(rows), nil
}

// FindOverlapping returns the first non-cancelled lesson of the teacher whose
// [start_time, end_time) interval intersects [start, end).
func (repo lessonRepository) FindOverlapping(ctx context.Context, teacherID string, start, end time.Time, excludeID string) (lesson.Lesson, error) {
	var l dbLesson
	q := selectLesson + `
		WHERE l.teacher_id = $1
		  AND l.status <> $2
		  AND l.start_time < $4
		  AND l.end_time > $3
		  AND ($5 = '' OR l.id::text <> $5)
		ORDER BY l.start_time
		LIMIT 1`
	err := repo.db.GetContext(ctx, &l, q, teacherID, lesson.StatusCancelled, start.UTC(), end.UTC(), excludeID)
	if err != nil {
		return lesson.Lesson{}, repo.trapNoRowsErr(err, "finding overlapping lesson")
	}
	return repo.unrow(l), nil
}
