package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/muziki/core/practice"
)

type practiceRepository struct {
	db *DB
}

var _ practice.Repository = (*practiceRepository)(nil) // interface compliance check

func NewPracticeRepository(db *DB) *practiceRepository {
	return &practiceRepository{db: db}
}

func (repo *practiceRepository) CreateEntry(ctx context.Context, entry practice.Entry) (practice.Entry, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	entry.ID = uuid.New().String()
	repo.db.practiceEntries[entry.ID] = &entry
	return entry, nil
}

func (repo *practiceRepository) QueryEntriesByStudent(ctx context.Context, studentID string) ([]practice.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var entries []practice.Entry
	for _, e := range repo.db.practiceEntries {
		if e.StudentID == studentID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date.Equal(entries[j].Date) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Date.After(entries[j].Date)
	})
	return entries, nil
}

func (repo *practiceRepository) QueryPracticeDates(ctx context.Context, studentID string) ([]time.Time, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var dates []time.Time
	for _, e := range repo.db.practiceEntries {
		if e.StudentID == studentID {
			dates = append(dates, e.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })
	return dates, nil
}

func (repo *practiceRepository) SumDurationSince(ctx context.Context, studentID string, from time.Time) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var total int
	for _, e := range repo.db.practiceEntries {
		if e.StudentID == studentID && !e.Date.Before(from) {
			total += e.DurationMinutes
		}
	}
	return total, nil
}
