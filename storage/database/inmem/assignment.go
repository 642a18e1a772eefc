package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/muziki/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, studentIDs, resourceIDs []string) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	a.ID = uuid.New().String()
	repo.db.assignments[a.ID] = &a
	for _, sid := range studentIDs {
		as := assignment.AssignmentStudent{
			ID:           uuid.New().String(),
			AssignmentID: a.ID,
			StudentID:    sid,
			Status:       assignment.StatusPending,
			CreatedAt:    a.CreatedAt,
			UpdatedAt:    a.UpdatedAt,
		}
		repo.db.assignmentStudents[as.ID] = &as
	}
	repo.db.assignmentResources[a.ID] = append([]string(nil), resourceIDs...)
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	orig.Title = a.Title
	orig.Description = a.Description
	orig.DueDate = a.DueDate
	orig.UpdatedAt = a.UpdatedAt
	return *orig, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignments, id)
	delete(repo.db.assignmentResources, id)
	for asID, as := range repo.db.assignmentStudents {
		if as.AssignmentID == id {
			delete(repo.db.assignmentStudents, asID)
		}
	}
	for subID, sub := range repo.db.submissions {
		if sub.AssignmentID == id {
			delete(repo.db.submissions, subID)
			for fbID, fb := range repo.db.feedback {
				if fb.SubmissionID == subID {
					delete(repo.db.feedback, fbID)
				}
			}
		}
	}
	return nil
}

func (repo *assignmentRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var assignments []assignment.Assignment
	for _, a := range repo.db.assignments {
		if a.TeacherID == teacherID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.After(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *assignmentRepository) QueryAssignmentsByStudent(ctx context.Context, studentID string) ([]assignment.StudentAssignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var assignments []assignment.StudentAssignment
	for _, as := range repo.db.assignmentStudents {
		if as.StudentID != studentID {
			continue
		}
		a, ok := repo.db.assignments[as.AssignmentID]
		if !ok {
			continue
		}
		assignments = append(assignments, assignment.StudentAssignment{Assignment: *a, Status: as.Status})
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.After(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *assignmentRepository) QueryAssignmentStudents(ctx context.Context, assignmentID string) ([]assignment.AssignmentStudent, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var students []assignment.AssignmentStudent
	for _, as := range repo.db.assignmentStudents {
		if as.AssignmentID != assignmentID {
			continue
		}
		s := *as
		if usr, ok := repo.db.users[s.StudentID]; ok {
			s.StudentName = usr.Name
		}
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].StudentName < students[j].StudentName })
	return students, nil
}

func (repo *assignmentRepository) QueryAssignmentResourceIDs(ctx context.Context, assignmentID string) ([]string, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return append([]string(nil), repo.db.assignmentResources[assignmentID]...), nil
}

func (repo *assignmentRepository) SetAssignmentStudentStatus(ctx context.Context, assignmentID, studentID, status string, now time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, as := range repo.db.assignmentStudents {
		if as.AssignmentID == assignmentID && as.StudentID == studentID {
			as.Status = status
			as.UpdatedAt = now
			return nil
		}
	}
	return assignment.ErrNotAssigned
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		s := *sub
		if usr, ok := repo.db.users[s.StudentID]; ok {
			s.StudentName = usr.Name
		}
		return s, nil
	}
	return assignment.Submission{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var subs []assignment.Submission
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			subs = append(subs, repo.withStudentName(*sub))
		}
	}
	sortBySubmittedAt(subs)
	return subs, nil
}

func (repo *assignmentRepository) QuerySubmissionsByTeacher(ctx context.Context, teacherID string) ([]assignment.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var subs []assignment.Submission
	for _, sub := range repo.db.submissions {
		a, ok := repo.db.assignments[sub.AssignmentID]
		if !ok || a.TeacherID != teacherID {
			continue
		}
		subs = append(subs, repo.withStudentName(*sub))
	}
	sortBySubmittedAt(subs)
	return subs, nil
}

func (repo *assignmentRepository) withStudentName(sub assignment.Submission) assignment.Submission {
	if usr, ok := repo.db.users[sub.StudentID]; ok {
		sub.StudentName = usr.Name
	}
	return sub
}

func sortBySubmittedAt(subs []assignment.Submission) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.After(subs[j].SubmittedAt) })
}

func (repo *assignmentRepository) CreateFeedback(ctx context.Context, fb assignment.Feedback) (assignment.Feedback, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	fb.ID = uuid.New().String()
	repo.db.feedback[fb.ID] = &fb
	return fb, nil
}

func (repo *assignmentRepository) QueryFeedbackBySubmission(ctx context.Context, submissionID string) ([]assignment.Feedback, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var fbs []assignment.Feedback
	for _, fb := range repo.db.feedback {
		if fb.SubmissionID == submissionID {
			fbs = append(fbs, *fb)
		}
	}
	sort.Slice(fbs, func(i, j int) bool { return fbs[i].CreatedAt.Before(fbs[j].CreatedAt) })
	return fbs, nil
}

func (repo *assignmentRepository) QueryFeedbackByStudent(ctx context.Context, studentID string) ([]assignment.Feedback, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var fbs []assignment.Feedback
	for _, fb := range repo.db.feedback {
		sub, ok := repo.db.submissions[fb.SubmissionID]
		if !ok || sub.StudentID != studentID {
			continue
		}
		fbs = append(fbs, *fb)
	}
	sort.Slice(fbs, func(i, j int) bool { return fbs[i].CreatedAt.After(fbs[j].CreatedAt) })
	return fbs, nil
}
