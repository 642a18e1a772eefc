package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/muziki/core"
)

// Roles
const (
	RoleAdmin   = "admin:"
	RoleTeacher = "teacher:"
	RoleStudent = "student:"
)

var (
	AdminRoles   = []string{RoleAdmin}
	TeacherRoles = []string{RoleTeacher}
	StudentRoles = []string{RoleStudent}
	AllRoles     = []string{RoleAdmin, RoleTeacher, RoleStudent}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleStudent: 10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     *bool     `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool   { return u.RoleStartsWith(RoleAdmin) }
func (u *User) IsTeacher() bool { return u.RoleStartsWith(RoleTeacher) }
func (u *User) IsStudent() bool { return u.RoleStartsWith(RoleStudent) }

// Skill levels
const (
	SkillBeginner     = "beginner"
	SkillIntermediate = "intermediate"
	SkillAdvanced     = "advanced"
)

var SkillLevels = []string{SkillBeginner, SkillIntermediate, SkillAdvanced}

// DefaultWeeklyGoalMinutes is the weekly practice goal a new student starts with.
const DefaultWeeklyGoalMinutes = 120

type TeacherProfile struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	StudioName string    `json:"studio_name"`
	Bio        string    `json:"bio"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type StudentProfile struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	TeacherID         string    `json:"teacher_id"`
	Instrument        string    `json:"instrument"`
	SkillLevel        string    `json:"skill_level"`
	Notes             string    `json:"notes"`
	WeeklyGoalMinutes int       `json:"weekly_goal_minutes"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Student is a student User with their studio profile attached; the join shape
// is decided once at the data-access boundary.
type Student struct {
	User
	Profile StudentProfile `json:"profile"`
}

type Invite struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	UsedAt    time.Time `json:"used_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (inv *Invite) IsUsed() bool    { return !inv.UsedAt.IsZero() }
func (inv *Invite) IsExpired() bool { return time.Now().UTC().After(inv.ExpiresAt) }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// NewTeacher contains information needed to sign a teacher up.
type NewTeacher struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	StudioName      string `json:"studio_name"`
	Bio             string `json:"bio"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate, svc *Service) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.StudioName = core.CleanString(nt.StudioName)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.CheckUniqueness("", nt.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
	Password        string   `json:"password" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate, origUsr User, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Username, uu.Email, origUsr)
}

// NewInvite is a teacher's request to invite a student into their studio.
type NewInvite struct {
	Email string `json:"email" validate:"required,email"`
}

func (ni *NewInvite) Validate(validate *validator.Validate) error {
	ni.Email = core.CleanString(ni.Email, true /* lower */)
	return validate.Struct(ni)
}

// AcceptInvite creates the student account behind a valid invite token.
type AcceptInvite struct {
	Token           string `json:"token" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Instrument      string `json:"instrument"`
	SkillLevel      string `json:"skill_level" validate:"omitempty,skilllevel"`
}

func (ai *AcceptInvite) Validate(validate *validator.Validate) error {
	ai.Name = core.CleanString(ai.Name)
	ai.Instrument = core.CleanString(ai.Instrument)
	return validate.Struct(ai)
}

// UpdateStudentProfile defines what a teacher (notes, goal) or the student
// themselves (instrument, skill level) may change on a studio profile.
type UpdateStudentProfile struct {
	Instrument        *string `json:"instrument"`
	SkillLevel        *string `json:"skill_level" validate:"omitempty,skilllevel"`
	Notes             *string `json:"notes"`
	WeeklyGoalMinutes *int    `json:"weekly_goal_minutes" validate:"omitempty,gt=0"`
}

func (up *UpdateStudentProfile) Validate(validate *validator.Validate) error {
	if up.Instrument != nil {
		*up.Instrument = core.CleanString(*up.Instrument)
	}
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
	Ordering    string    `query:"ordering"` // comma-separated fields, "-" prefix for descending
}

// sortableFields are the QueryFilter.Ordering fields repositories honor.
var sortableFields = map[string]bool{
	"name":       true,
	"username":   true,
	"email":      true,
	"created_at": true,
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero() && qf.Ordering == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Orderings parses Ordering into DBOrderings, dropping unknown fields.
func (qf *QueryFilter) Orderings() []core.DBOrdering {
	var ords []core.DBOrdering
	for _, field := range strings.Split(qf.Ordering, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if !sortableFields[field] {
			continue
		}
		ords = append(ords, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return ords
}
