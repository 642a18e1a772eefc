package user

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	ErrInviteNotFound = errors.New("invite not found")
	ErrInviteExpired  = errors.New("this invite has expired")
	ErrInviteUsed     = errors.New("this invite has already been used")
	ErrInviteExists   = errors.New("an active invite already exists for this email")
	ErrStudentExists  = errors.New("this student is already in your studio")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		SetUserLastLogin(ctx context.Context, id string, t time.Time) error
		DeleteUsersByID(ctx context.Context, ids ...string) error

		CreateTeacherProfile(ctx context.Context, prof TeacherProfile) (TeacherProfile, error)
		GetTeacherProfile(ctx context.Context, userID string) (TeacherProfile, error)
		UpdateTeacherProfile(ctx context.Context, prof TeacherProfile) (TeacherProfile, error)

		CreateStudentProfile(ctx context.Context, prof StudentProfile) (StudentProfile, error)
		GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error)
		UpdateStudentProfile(ctx context.Context, prof StudentProfile) (StudentProfile, error)
		DeleteStudentProfile(ctx context.Context, userID string) error
		// QueryStudentsByTeacher returns the teacher's roster with profiles
		// attached, ordered by student name.
		QueryStudentsByTeacher(ctx context.Context, teacherID string) ([]Student, error)

		CreateInvite(ctx context.Context, inv Invite) (Invite, error)
		GetInviteByToken(ctx context.Context, token string) (Invite, error)
		GetActiveInvite(ctx context.Context, teacherID, email string) (Invite, error)
		QueryInvitesByTeacher(ctx context.Context, teacherID string) ([]Invite, error)
		MarkInviteUsed(ctx context.Context, id string, usedAt time.Time) error
		DeleteInvite(ctx context.Context, teacherID, id string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  boolPtr(true),
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// CreateTeacher signs a teacher up: account + studio profile.
func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (User, error) {
	usr, err := svc.Create(ctx, NewUser{
		Name:     nt.Name,
		Email:    nt.Email,
		Password: nt.Password,
		Roles:    TeacherRoles,
	})
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	_, err = svc.repo.CreateTeacherProfile(ctx, TeacherProfile{
		UserID:     usr.ID,
		StudioName: nt.StudioName,
		Bio:        nt.Bio,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return User{}, errors.Wrap(err, "creating teacher profile")
	}
	return usr, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter)
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetUserLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = now
	return usr, nil
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// Password reset

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := MakeToken(usr, svc.conf)
	if err != nil {
		return errors.Wrap(err, "making token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct{ Name, UID, Token string }{usr.Name, EncodeUID(usr), token},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	if err = verifyToken(usr, rp.Token, svc.conf); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr, nil)
	return err
}

// Roster & invites

func (svc *Service) Students(ctx context.Context, teacher User) ([]Student, error) {
	return svc.repo.QueryStudentsByTeacher(ctx, teacher.ID)
}

// GetStudent fetches one of the teacher's students; a student outside their
// studio is a not-found, never a permission leak.
func (svc *Service) GetStudent(ctx context.Context, teacher User, studentUserID string) (Student, error) {
	prof, err := svc.repo.GetStudentProfile(ctx, studentUserID)
	if err != nil {
		return Student{}, err
	}
	if prof.TeacherID != teacher.ID {
		return Student{}, ErrNotFound
	}
	usr, err := svc.repo.GetUserByID(ctx, studentUserID)
	if err != nil {
		return Student{}, err
	}
	return Student{User: usr, Profile: prof}, nil
}

func (svc *Service) GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error) {
	return svc.repo.GetStudentProfile(ctx, userID)
}

func (svc *Service) UpdateStudent(ctx context.Context, teacher User, studentUserID string, up UpdateStudentProfile) (Student, error) {
	student, err := svc.GetStudent(ctx, teacher, studentUserID)
	if err != nil {
		return Student{}, err
	}

	prof := student.Profile
	if up.Instrument != nil {
		prof.Instrument = *up.Instrument
	}
	if up.SkillLevel != nil {
		prof.SkillLevel = *up.SkillLevel
	}
	if up.Notes != nil {
		prof.Notes = *up.Notes
	}
	if up.WeeklyGoalMinutes != nil {
		prof.WeeklyGoalMinutes = *up.WeeklyGoalMinutes
	}
	prof.UpdatedAt = time.Now().UTC()

	prof, err = svc.repo.UpdateStudentProfile(ctx, prof)
	if err != nil {
		return Student{}, err
	}
	student.Profile = prof
	return student, nil
}

// RemoveStudent unlinks a student from the teacher's studio and deactivates
// the account.
func (svc *Service) RemoveStudent(ctx context.Context, teacher User, studentUserID string) error {
	student, err := svc.GetStudent(ctx, teacher, studentUserID)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteStudentProfile(ctx, student.User.ID); err != nil {
		return err
	}
	student.User.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, student.User, boolPtr(false))
	return err
}

func (svc *Service) InviteStudent(ctx context.Context, teacher User, ni NewInvite) (Invite, error) {
	// an existing student cannot be invited again
	if existing, err := svc.GetByEmail(ctx, ni.Email); err == nil {
		if prof, pErr := svc.repo.GetStudentProfile(ctx, existing.ID); pErr == nil && prof.TeacherID == teacher.ID {
			return Invite{}, core.NewValidationError(ErrStudentExists, core.FieldError{Field: "email", Error: ErrStudentExists.Error()})
		}
	} else if err != ErrNotFound {
		return Invite{}, err
	}

	if _, err := svc.repo.GetActiveInvite(ctx, teacher.ID, ni.Email); err == nil {
		return Invite{}, core.NewValidationError(ErrInviteExists, core.FieldError{Field: "email", Error: ErrInviteExists.Error()})
	} else if err != ErrInviteNotFound {
		return Invite{}, err
	}

	token, err := makeInviteToken()
	if err != nil {
		return Invite{}, errors.Wrap(err, "making invite token")
	}

	now := time.Now().UTC()
	inv, err := svc.repo.CreateInvite(ctx, Invite{
		TeacherID: teacher.ID,
		Email:     ni.Email,
		Token:     token,
		ExpiresAt: now.Add(svc.conf.InviteExpirationDelta),
		CreatedAt: now,
	})
	if err != nil {
		return Invite{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: inv.Email}},
		Subject:      "You have been invited to join a studio",
		TemplateName: "student-invite",
		TemplateData: struct{ TeacherName, Token, ExpiresAt string }{
			teacher.Name,
			inv.Token,
			inv.ExpiresAt.Format("Monday, 2 January 2006"),
		},
	})
	return inv, nil
}

func (svc *Service) Invites(ctx context.Context, teacher User) ([]Invite, error) {
	return svc.repo.QueryInvitesByTeacher(ctx, teacher.ID)
}

func (svc *Service) CancelInvite(ctx context.Context, teacher User, inviteID string) error {
	return svc.repo.DeleteInvite(ctx, teacher.ID, inviteID)
}

func (svc *Service) GetInviteByToken(ctx context.Context, token string) (Invite, error) {
	inv, err := svc.repo.GetInviteByToken(ctx, token)
	if err != nil {
		return Invite{}, err
	}
	if inv.IsUsed() {
		return Invite{}, ErrInviteUsed
	}
	if inv.IsExpired() {
		return Invite{}, ErrInviteExpired
	}
	return inv, nil
}

// AcceptInvite redeems a valid invite token: creates the student account,
// links it to the inviting teacher and marks the invite used.
func (svc *Service) AcceptInvite(ctx context.Context, ai AcceptInvite) (User, error) {
	inv, err := svc.GetInviteByToken(ctx, ai.Token)
	if err != nil {
		switch err {
		case ErrInviteNotFound, ErrInviteUsed, ErrInviteExpired:
			return User{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
		}
		return User{}, err
	}

	usr, err := svc.Create(ctx, NewUser{
		Name:     ai.Name,
		Email:    inv.Email,
		Password: ai.Password,
		Roles:    StudentRoles,
	})
	if err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	_, err = svc.repo.CreateStudentProfile(ctx, StudentProfile{
		UserID:            usr.ID,
		TeacherID:         inv.TeacherID,
		Instrument:        ai.Instrument,
		SkillLevel:        ai.SkillLevel,
		WeeklyGoalMinutes: DefaultWeeklyGoalMinutes,
		CreatedAt:         now,
		UpdatedAt:         now,
	})
	if err != nil {
		return User{}, errors.Wrap(err, "creating student profile")
	}

	if err = svc.repo.MarkInviteUsed(ctx, inv.ID, now); err != nil {
		return User{}, errors.Wrap(err, "marking invite used")
	}
	return usr, nil
}

// Teacher profile

func (svc *Service) GetTeacherProfile(ctx context.Context, userID string) (TeacherProfile, error) {
	return svc.repo.GetTeacherProfile(ctx, userID)
}

func (svc *Service) UpdateTeacherProfile(ctx context.Context, teacher User, studioName, bio string) (TeacherProfile, error) {
	prof, err := svc.repo.GetTeacherProfile(ctx, teacher.ID)
	if err != nil {
		return TeacherProfile{}, err
	}
	prof.StudioName = core.CleanString(studioName)
	prof.Bio = core.CleanString(bio)
	prof.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateTeacherProfile(ctx, prof)
}

func makeInviteToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func boolPtr(b bool) *bool { return &b }
