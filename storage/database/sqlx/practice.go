package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core/practice"
)

type practiceRepository struct {
	db *sqlx.DB
}

var _ practice.Repository = (*practiceRepository)(nil) // interface compliance check

func NewPracticeRepository(db *sqlx.DB) *practiceRepository {
	return &practiceRepository{db: db}
}

type dbPracticeEntry struct {
	ID              string      `db:"id"`
	StudentID       string      `db:"student_id"`
	Date            time.Time   `db:"date"`
	DurationMinutes int         `db:"duration_minutes"`
	Notes           null.String `db:"notes"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (repo practiceRepository) unrow(e dbPracticeEntry) practice.Entry {
	return practice.Entry{
		ID:              e.ID,
		StudentID:       e.StudentID,
		Date:            e.Date,
		DurationMinutes: e.DurationMinutes,
		Notes:           e.Notes.String,
		CreatedAt:       e.CreatedAt,
	}
}

func (repo practiceRepository) CreateEntry(ctx context.Context, entry practice.Entry) (practice.Entry, error) {
	entry.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO practice_log (id, student_id, date, duration_minutes, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.StudentID, entry.Date, entry.DurationMinutes, entry.Notes, entry.CreatedAt.UTC())
	if err != nil {
		return practice.Entry{}, errors.Wrap(err, "inserting practice entry")
	}
	return entry, nil
}

func (repo practiceRepository) QueryEntriesByStudent(ctx context.Context, studentID string) ([]practice.Entry, error) {
	var rows []dbPracticeEntry
	q := `
		SELECT id, student_id, date, duration_minutes, notes, created_at
		FROM practice_log
		WHERE student_id = $1
		ORDER BY date DESC, created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying practice entries")
	}
	entries := make([]practice.Entry, 0, len(rows))
	for _, e := range rows {
		entries = append(entries, repo.unrow(e))
	}
	return entries, nil
}

func (repo practiceRepository) QueryPracticeDates(ctx context.Context, studentID string) ([]time.Time, error) {
	var dates []time.Time
	q := `SELECT date FROM practice_log WHERE student_id = $1 ORDER BY date DESC`
	if err := repo.db.SelectContext(ctx, &dates, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying practice dates")
	}
	return dates, nil
}

func (repo practiceRepository) SumDurationSince(ctx context.Context, studentID string, from time.Time) (int, error) {
	var total int
	q := `SELECT COALESCE(SUM(duration_minutes), 0) FROM practice_log WHERE student_id = $1 AND date >= $2`
	if err := repo.db.GetContext(ctx, &total, q, studentID, from); err != nil {
		return 0, errors.Wrap(err, "summing practice duration")
	}
	return total, nil
}
