// Package inmemdb provides map-backed repositories for tests.
package inmemdb

import (
	"sync"

	"github.com/trezcool/muziki/core/assignment"
	"github.com/trezcool/muziki/core/lesson"
	"github.com/trezcool/muziki/core/message"
	"github.com/trezcool/muziki/core/notification"
	"github.com/trezcool/muziki/core/practice"
	"github.com/trezcool/muziki/core/resource"
	"github.com/trezcool/muziki/core/user"
)

type DB struct {
	mu sync.RWMutex

	users           map[string]*user.User
	teacherProfiles map[string]*user.TeacherProfile // keyed by user ID
	studentProfiles map[string]*user.StudentProfile // keyed by user ID
	invites         map[string]*user.Invite

	lessons         map[string]*lesson.Lesson
	practiceEntries map[string]*practice.Entry
	notifications   map[string]*notification.Notification
	messages        map[string]*message.Message
	resources       map[string]*resource.Resource

	assignments         map[string]*assignment.Assignment
	assignmentStudents  map[string]*assignment.AssignmentStudent
	assignmentResources map[string][]string // assignment ID -> resource IDs
	submissions         map[string]*assignment.Submission
	feedback            map[string]*assignment.Feedback
}

func Open() *DB {
	return &DB{
		users:               make(map[string]*user.User),
		teacherProfiles:     make(map[string]*user.TeacherProfile),
		studentProfiles:     make(map[string]*user.StudentProfile),
		invites:             make(map[string]*user.Invite),
		lessons:             make(map[string]*lesson.Lesson),
		practiceEntries:     make(map[string]*practice.Entry),
		notifications:       make(map[string]*notification.Notification),
		messages:            make(map[string]*message.Message),
		resources:           make(map[string]*resource.Resource),
		assignments:         make(map[string]*assignment.Assignment),
		assignmentStudents:  make(map[string]*assignment.AssignmentStudent),
		assignmentResources: make(map[string][]string),
		submissions:         make(map[string]*assignment.Submission),
		feedback:            make(map[string]*assignment.Feedback),
	}
}
