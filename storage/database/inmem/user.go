package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if strings.EqualFold(usr.Username, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(usr.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.query(), nil
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if usr, ok := repo.db.users[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if strings.EqualFold(usr.Username, username) {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if strings.EqualFold(usr.Email, email) {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, usr := range repo.db.users {
		if strings.EqualFold(usr.Username, username) || strings.EqualFold(usr.Email, username) {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var users []user.User
	for _, usr := range repo.query() {
		if filter.Search != "" {
			s := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(usr.Name), s) &&
				!strings.Contains(strings.ToLower(usr.Username), s) &&
				!strings.Contains(strings.ToLower(usr.Email), s) {
				continue
			}
		}
		if len(filter.Roles) > 0 {
			match := false
			for _, role := range filter.Roles {
				if usr.RoleStartsWith(role) {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		if filter.IsActive != nil && (usr.IsActive == nil || *usr.IsActive != *filter.IsActive) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		users = append(users, usr)
	}
	sortUsers(users, filter.Orderings())
	return users, nil
}

func sortUsers(users []user.User, ords []core.DBOrdering) {
	if len(ords) == 0 {
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ords {
			a, b := userSortKey(users[i], ord.Field), userSortKey(users[j], ord.Field)
			if a == b {
				continue
			}
			if ord.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
}

func userSortKey(usr user.User, field string) string {
	switch field {
	case "username":
		return usr.Username
	case "email":
		return usr.Email
	case "created_at":
		return usr.CreatedAt.Format(time.RFC3339Nano)
	default:
		return usr.Name
	}
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Name != "" {
		orig.Name = usr.Name
	}
	if usr.Username != "" {
		orig.Username = usr.Username
	}
	if usr.Email != "" {
		orig.Email = usr.Email
	}
	if usr.Roles != nil {
		orig.Roles = usr.Roles
	}
	if usr.PasswordHash != nil {
		orig.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = isActive
	}
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *userRepository) SetUserLastLogin(ctx context.Context, id string, t time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = t
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		delete(repo.db.users, id)
		delete(repo.db.teacherProfiles, id)
		delete(repo.db.studentProfiles, id)
	}
	return nil
}

// --- profiles ---

func (repo *userRepository) CreateTeacherProfile(ctx context.Context, prof user.TeacherProfile) (user.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prof.ID = uuid.New().String()
	repo.db.teacherProfiles[prof.UserID] = &prof
	return prof, nil
}

func (repo *userRepository) GetTeacherProfile(ctx context.Context, userID string) (user.TeacherProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if prof, ok := repo.db.teacherProfiles[userID]; ok {
		return *prof, nil
	}
	return user.TeacherProfile{}, user.ErrNotFound
}

func (repo *userRepository) UpdateTeacherProfile(ctx context.Context, prof user.TeacherProfile) (user.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.teacherProfiles[prof.UserID]
	if !ok {
		return user.TeacherProfile{}, user.ErrNotFound
	}
	orig.StudioName = prof.StudioName
	orig.Bio = prof.Bio
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *userRepository) CreateStudentProfile(ctx context.Context, prof user.StudentProfile) (user.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	prof.ID = uuid.New().String()
	repo.db.studentProfiles[prof.UserID] = &prof
	return prof, nil
}

func (repo *userRepository) GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if prof, ok := repo.db.studentProfiles[userID]; ok {
		return *prof, nil
	}
	return user.StudentProfile{}, user.ErrNotFound
}

func (repo *userRepository) UpdateStudentProfile(ctx context.Context, prof user.StudentProfile) (user.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.studentProfiles[prof.UserID]
	if !ok {
		return user.StudentProfile{}, user.ErrNotFound
	}
	orig.Instrument = prof.Instrument
	orig.SkillLevel = prof.SkillLevel
	orig.Notes = prof.Notes
	orig.WeeklyGoalMinutes = prof.WeeklyGoalMinutes
	orig.UpdatedAt = time.Now().UTC()
	return *orig, nil
}

func (repo *userRepository) DeleteStudentProfile(ctx context.Context, userID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	delete(repo.db.studentProfiles, userID)
	return nil
}

func (repo *userRepository) QueryStudentsByTeacher(ctx context.Context, teacherID string) ([]user.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var students []user.Student
	for userID, prof := range repo.db.studentProfiles {
		if prof.TeacherID != teacherID {
			continue
		}
		usr, ok := repo.db.users[userID]
		if !ok {
			continue
		}
		students = append(students, user.Student{User: *usr, Profile: *prof})
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

// --- invites ---

func (repo *userRepository) CreateInvite(ctx context.Context, inv user.Invite) (user.Invite, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv.ID = uuid.New().String()
	repo.db.invites[inv.ID] = &inv
	return inv, nil
}

func (repo *userRepository) GetInviteByToken(ctx context.Context, token string) (user.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inv := range repo.db.invites {
		if inv.Token == token {
			return *inv, nil
		}
	}
	return user.Invite{}, user.ErrInviteNotFound
}

func (repo *userRepository) GetActiveInvite(ctx context.Context, teacherID, email string) (user.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, inv := range repo.db.invites {
		if inv.TeacherID == teacherID && strings.EqualFold(inv.Email, email) && !inv.IsUsed() && !inv.IsExpired() {
			return *inv, nil
		}
	}
	return user.Invite{}, user.ErrInviteNotFound
}

func (repo *userRepository) QueryInvitesByTeacher(ctx context.Context, teacherID string) ([]user.Invite, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var invites []user.Invite
	for _, inv := range repo.db.invites {
		if inv.TeacherID == teacherID {
			invites = append(invites, *inv)
		}
	}
	sort.Slice(invites, func(i, j int) bool { return invites[i].CreatedAt.After(invites[j].CreatedAt) })
	return invites, nil
}

func (repo *userRepository) MarkInviteUsed(ctx context.Context, id string, usedAt time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv, ok := repo.db.invites[id]
	if !ok {
		return user.ErrInviteNotFound
	}
	inv.UsedAt = usedAt
	return nil
}

func (repo *userRepository) DeleteInvite(ctx context.Context, teacherID, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	inv, ok := repo.db.invites[id]
	if !ok || inv.TeacherID != teacherID {
		return user.ErrInviteNotFound
	}
	delete(repo.db.invites, id)
	return nil
}
