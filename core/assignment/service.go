package assignment

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/notification"
	"github.com/trezcool/muziki/core/resource"
	"github.com/trezcool/muziki/core/user"
)

var (
	ErrNotFound    = errors.New("assignment not found")
	ErrNotAssigned = errors.New("student is not assigned")

	// NowFunc returns the current time. It can be mocked in tests.
	NowFunc = time.Now
)

type Repository interface {
	CreateAssignment(ctx context.Context, a Assignment, studentIDs, resourceIDs []string) (Assignment, error)
	GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
	UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
	QueryAssignmentsByTeacher(ctx context.Context, teacherID string) ([]Assignment, error)
	QueryAssignmentsByStudent(ctx context.Context, studentID string) ([]StudentAssignment, error)
	QueryAssignmentStudents(ctx context.Context, assignmentID string) ([]AssignmentStudent, error)
	QueryAssignmentResourceIDs(ctx context.Context, assignmentID string) ([]string, error)
	SetAssignmentStudentStatus(ctx context.Context, assignmentID, studentID, status string, now time.Time) error
	CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
	GetSubmissionByID(ctx context.Context, id string) (Submission, error)
	QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
	QuerySubmissionsByTeacher(ctx context.Context, teacherID string) ([]Submission, error)
	CreateFeedback(ctx context.Context, fb Feedback) (Feedback, error)
	QueryFeedbackBySubmission(ctx context.Context, submissionID string) ([]Feedback, error)
	QueryFeedbackByStudent(ctx context.Context, studentID string) ([]Feedback, error)
}

type Service struct {
	repo     Repository
	usrSvc   *user.Service
	resSvc   *resource.Service
	notifSvc *notification.Service
	store    core.FileStore
}

func NewService(
	repo Repository,
	usrSvc *user.Service,
	resSvc *resource.Service,
	notifSvc *notification.Service,
	store core.FileStore,
) *Service {
	return &Service{
		repo:     repo,
		usrSvc:   usrSvc,
		resSvc:   resSvc,
		notifSvc: notifSvc,
		store:    store,
	}
}

// Create hands out a new assignment to the given students and notifies each
// of them. Every student must belong to the teacher's roster and every
// attached resource to the teacher's library.
func (svc *Service) Create(ctx context.Context, teacher user.User, na NewAssignment) (Detail, error) {
	for _, sid := range na.StudentIDs {
		if _, err := svc.usrSvc.GetStudent(ctx, teacher, sid); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return Detail{}, core.NewValidationError(nil, core.FieldError{
					Field: "student_ids",
					Error: fmt.Sprintf("student %s not found", sid),
				})
			}
			return Detail{}, err
		}
	}
	if len(na.ResourceIDs) > 0 {
		ress, err := svc.resSvc.GetByIDs(ctx, na.ResourceIDs)
		if err != nil {
			return Detail{}, err
		}
		owned := make(map[string]bool, len(ress))
		for _, res := range ress {
			if res.TeacherID == teacher.ID {
				owned[res.ID] = true
			}
		}
		for _, rid := range na.ResourceIDs {
			if !owned[rid] {
				return Detail{}, core.NewValidationError(nil, core.FieldError{
					Field: "resource_ids",
					Error: fmt.Sprintf("resource %s not found", rid),
				})
			}
		}
	}

	now := NowFunc()
	a := Assignment{
		TeacherID:   teacher.ID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     null.TimeFromPtr(na.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a, err := svc.repo.CreateAssignment(ctx, a, na.StudentIDs, na.ResourceIDs)
	if err != nil {
		return Detail{}, err
	}

	body := fmt.Sprintf("%s assigned you %q", teacher.Name, a.Title)
	for _, sid := range na.StudentIDs {
		svc.notifSvc.Notify(ctx, sid, notification.CategoryAssignment,
			"New Assignment", body, "/assignments/"+a.ID)
	}
	return svc.detail(ctx, a)
}

// Get returns a fully loaded assignment. Teachers see their own assignments,
// students those they are assigned to.
func (svc *Service) Get(ctx context.Context, usr user.User, id string) (Detail, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	d, err := svc.detail(ctx, a)
	if err != nil {
		return Detail{}, err
	}
	if a.TeacherID == usr.ID {
		return d, nil
	}
	for _, as := range d.Students {
		if as.StudentID == usr.ID {
			return d, nil
		}
	}
	return Detail{}, ErrNotFound
}

func (svc *Service) detail(ctx context.Context, a Assignment) (Detail, error) {
	students, err := svc.repo.QueryAssignmentStudents(ctx, a.ID)
	if err != nil {
		return Detail{}, err
	}
	resIDs, err := svc.repo.QueryAssignmentResourceIDs(ctx, a.ID)
	if err != nil {
		return Detail{}, err
	}
	var ress []resource.Resource
	if len(resIDs) > 0 {
		if ress, err = svc.resSvc.GetByIDs(ctx, resIDs); err != nil {
			return Detail{}, err
		}
	}
	return Detail{Assignment: a, Students: students, Resources: ress}, nil
}

// Update edits an assignment's title, description and due date.
func (svc *Service) Update(ctx context.Context, teacher user.User, id string, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.getOwned(ctx, teacher.ID, id)
	if err != nil {
		return Assignment{}, err
	}
	a.Title = ua.Title
	a.Description = ua.Description
	a.DueDate = null.TimeFromPtr(ua.DueDate)
	a.UpdatedAt = NowFunc()
	return svc.repo.UpdateAssignment(ctx, a)
}

// Delete removes an assignment along with its roster entries, submissions
// and feedback.
func (svc *Service) Delete(ctx context.Context, teacher user.User, id string) error {
	if _, err := svc.getOwned(ctx, teacher.ID, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, id)
}

// ForTeacher returns all assignments a teacher has handed out.
func (svc *Service) ForTeacher(ctx context.Context, teacher user.User) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByTeacher(ctx, teacher.ID)
}

// ForStudent returns a student's assignments with their own status on each.
func (svc *Service) ForStudent(ctx context.Context, student user.User) ([]StudentAssignment, error) {
	return svc.repo.QueryAssignmentsByStudent(ctx, student.ID)
}

// Submit records a student's take on an assignment, stores the uploaded file
// and notifies the teacher. The student's status moves to "submitted".
func (svc *Service) Submit(
	ctx context.Context, student user.User, assignmentID string, ns NewSubmission, content io.Reader,
) (Submission, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	assigned := false
	students, err := svc.repo.QueryAssignmentStudents(ctx, a.ID)
	if err != nil {
		return Submission{}, err
	}
	for _, as := range students {
		if as.StudentID == student.ID {
			assigned = true
			break
		}
	}
	if !assigned {
		return Submission{}, ErrNotAssigned
	}

	ext := strings.ToLower(filepath.Ext(ns.FileName))
	path := fmt.Sprintf("submissions/%s/%s/%s%s", a.ID, student.ID, uuid.New().String(), ext)
	url, err := svc.store.Save(path, content)
	if err != nil {
		return Submission{}, errors.Wrap(err, "saving submission file")
	}

	now := NowFunc()
	sub := Submission{
		AssignmentID: a.ID,
		StudentID:    student.ID,
		FileURL:      url,
		FileType:     resource.FileTypeOf(ns.FileName),
		Notes:        ns.Notes,
		SubmittedAt:  now,
	}
	if sub, err = svc.repo.CreateSubmission(ctx, sub); err != nil {
		_ = svc.store.Delete(url)
		return Submission{}, err
	}
	if err = svc.repo.SetAssignmentStudentStatus(ctx, a.ID, student.ID, StatusSubmitted, now); err != nil {
		return Submission{}, err
	}

	svc.notifSvc.Notify(ctx, a.TeacherID, notification.CategorySubmission,
		"New Submission",
		fmt.Sprintf("%s submitted %q", student.Name, a.Title),
		"/assignments/"+a.ID)
	return sub, nil
}

// Submissions returns every submission made against a teacher's assignments.
func (svc *Service) Submissions(ctx context.Context, teacher user.User) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByTeacher(ctx, teacher.ID)
}

// GetSubmission returns a submission with its feedback. Accessible to the
// submitting student and the assignment's teacher.
func (svc *Service) GetSubmission(ctx context.Context, usr user.User, id string) (Submission, []Feedback, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, nil, err
	}
	if sub.StudentID != usr.ID {
		a, err := svc.repo.GetAssignmentByID(ctx, sub.AssignmentID)
		if err != nil {
			return Submission{}, nil, err
		}
		if a.TeacherID != usr.ID {
			return Submission{}, nil, ErrNotFound
		}
	}
	fbs, err := svc.repo.QueryFeedbackBySubmission(ctx, sub.ID)
	if err != nil {
		return Submission{}, nil, err
	}
	return sub, fbs, nil
}

// Review attaches feedback to a submission and notifies the student. The
// student's status moves to "reviewed".
func (svc *Service) Review(ctx context.Context, teacher user.User, submissionID string, nf NewFeedback) (Feedback, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Feedback{}, err
	}
	a, err := svc.getOwned(ctx, teacher.ID, sub.AssignmentID)
	if err != nil {
		return Feedback{}, err
	}

	now := NowFunc()
	fb := Feedback{
		SubmissionID: sub.ID,
		TeacherID:    teacher.ID,
		Content:      nf.Content,
		Rating:       null.IntFromPtr(nf.Rating),
		CreatedAt:    now,
	}
	if fb, err = svc.repo.CreateFeedback(ctx, fb); err != nil {
		return Feedback{}, err
	}
	if err = svc.repo.SetAssignmentStudentStatus(ctx, a.ID, sub.StudentID, StatusReviewed, now); err != nil {
		return Feedback{}, err
	}

	svc.notifSvc.Notify(ctx, sub.StudentID, notification.CategoryFeedback,
		"New Feedback",
		fmt.Sprintf("%s reviewed your submission for %q", teacher.Name, a.Title),
		"/assignments/"+a.ID)
	return fb, nil
}

// FeedbackFor returns all feedback a student has received.
func (svc *Service) FeedbackFor(ctx context.Context, student user.User) ([]Feedback, error) {
	return svc.repo.QueryFeedbackByStudent(ctx, student.ID)
}

func (svc *Service) getOwned(ctx context.Context, teacherID, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if a.TeacherID != teacherID {
		return Assignment{}, ErrNotFound
	}
	return a, nil
}
