package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/muziki/core/lesson"
)

type lessonRepository struct {
	db *DB
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *DB) *lessonRepository {
	return &lessonRepository{db: db}
}

func (repo *lessonRepository) withStudentName(lsn lesson.Lesson) lesson.Lesson {
	if usr, ok := repo.db.users[lsn.StudentID]; ok {
		lsn.StudentName = usr.Name
	}
	return lsn
}

// CreateLesson enforces the teacher-overlap constraint the way the database
// schema does, so races surface as lesson.ErrOverlap here too.
func (repo *lessonRepository) CreateLesson(ctx context.Context, lsn lesson.Lesson) (lesson.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkOverlap(lsn); err != nil {
		return lesson.Lesson{}, err
	}
	lsn.ID = uuid.New().String()
	repo.db.lessons[lsn.ID] = &lsn
	return repo.withStudentName(lsn), nil
}

func (repo *lessonRepository) checkOverlap(lsn lesson.Lesson) error {
	if lsn.Status == lesson.StatusCancelled {
		return nil
	}
	for _, other := range repo.db.lessons {
		if other.ID == lsn.ID || other.TeacherID != lsn.TeacherID || other.Status == lesson.StatusCancelled {
			continue
		}
		if other.Overlaps(lsn.Start, lsn.End) {
			return lesson.ErrOverlap
		}
	}
	return nil
}

func (repo *lessonRepository) GetLessonByID(ctx context.Context, id string) (lesson.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return repo.withStudentName(*lsn), nil
	}
	return lesson.Lesson{}, lesson.ErrNotFound
}

func (repo *lessonRepository) UpdateLesson(ctx context.Context, lsn lesson.Lesson) (lesson.Lesson, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.lessons[lsn.ID]
	if !ok {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	if err := repo.checkOverlap(lsn); err != nil {
		return lesson.Lesson{}, err
	}
	orig.StudentID = lsn.StudentID
	orig.Start = lsn.Start
	orig.End = lsn.End
	orig.Status = lsn.Status
	orig.Notes = lsn.Notes
	return repo.withStudentName(*orig), nil
}

func (repo *lessonRepository) DeleteLesson(ctx context.Context, teacherID, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	lsn, ok := repo.db.lessons[id]
	if !ok || lsn.TeacherID != teacherID {
		return lesson.ErrNotFound
	}
	delete(repo.db.lessons, id)
	return nil
}

func (repo *lessonRepository) QueryLessonsByTeacher(ctx context.Context, teacherID string, from, to time.Time) ([]lesson.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var lessons []lesson.Lesson
	for _, lsn := range repo.db.lessons {
		if lsn.TeacherID == teacherID && lsn.Overlaps(from, to) {
			lessons = append(lessons, repo.withStudentName(*lsn))
		}
	}
	sortByStart(lessons)
	return lessons, nil
}

func (repo *lessonRepository) QueryLessonsByStudent(ctx context.Context, studentID string, from, to time.Time) ([]lesson.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var lessons []lesson.Lesson
	for _, lsn := range repo.db.lessons {
		if lsn.StudentID == studentID && lsn.Overlaps(from, to) {
			lessons = append(lessons, repo.withStudentName(*lsn))
		}
	}
	sortByStart(lessons)
	return lessons, nil
}

func (repo *lessonRepository) FindOverlapping(ctx context.Context, teacherID string, start, end time.Time, excludeID string) (lesson.Lesson, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var hits []lesson.Lesson
	for _, lsn := range repo.db.lessons {
		if lsn.TeacherID != teacherID || lsn.Status == lesson.StatusCancelled || lsn.ID == excludeID {
			continue
		}
		if lsn.Overlaps(start, end) {
			hits = append(hits, repo.withStudentName(*lsn))
		}
	}
	if len(hits) == 0 {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	sortByStart(hits)
	return hits[0], nil
}

func sortByStart(lessons []lesson.Lesson) {
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Start.Before(lessons[j].Start) })
}
