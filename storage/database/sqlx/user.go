package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/muziki/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type dbUser struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (repo userRepository) row(usr user.User) dbUser {
	return dbUser{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        usr.Roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unrow(u dbUser) user.User {
	return user.User{
		ID:           u.ID,
		Name:         u.Name.String,
		Username:     u.Username.String,
		Email:        u.Email.String,
		IsActive:     u.IsActive.Ptr(),
		Roles:        u.Roles,
		PasswordHash: u.PasswordHash.Bytes,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		LastLogin:    u.LastLogin.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	ids := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}
	q := `
		SELECT COALESCE(bool_or(LOWER(username) = LOWER($1)), FALSE),
		       COALESCE(bool_or(LOWER(email) = LOWER($2)), FALSE)
		FROM "user"
		WHERE (LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($2)) AND NOT (id = ANY($3))`

	var unameTaken, emailTaken bool
	if err := repo.db.QueryRowContext(ctx, q, username, email, pq.Array(ids)).Scan(&unameTaken, &emailTaken); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if unameTaken {
		return user.ErrUsernameExists
	}
	if emailTaken {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.row(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (id, name, username, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES (:id, :name, :username, :email, :is_active, :roles, :password_hash, :created_at, :updated_at)`, u)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unrow(u), nil
}

const selectUser = `SELECT id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login FROM "user"`

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []dbUser
	if err := repo.db.SelectContext(ctx, &rows, selectUser+` ORDER BY name`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unrowSlice(rows), nil
}

func (repo userRepository) unrowSlice(rows []dbUser) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, u := range rows {
		users = append(users, repo.unrow(u))
	}
	return users
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var u dbUser
	if err := repo.db.GetContext(ctx, &u, selectUser+` WHERE id = $1`, id); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by id")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var u dbUser
	if err := repo.db.GetContext(ctx, &u, selectUser+` WHERE LOWER(username) = LOWER($1)`, username); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by username")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u dbUser
	if err := repo.db.GetContext(ctx, &u, selectUser+` WHERE LOWER(email) = LOWER($1)`, email); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by email")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	var u dbUser
	q := selectUser + ` WHERE LOWER(username) = LOWER($1) OR LOWER(email) = LOWER($1)`
	if err := repo.db.GetContext(ctx, &u, q, username); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user by username or email")
	}
	return repo.unrow(u), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		p := arg(val)
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR username ILIKE %s OR email ILIKE %s)", p, p, p))
	}
	// users with any role that starts with any of the provided roles
	if len(filter.Roles) > 0 {
		roleConds := make([]string, 0, len(filter.Roles))
		for _, role := range filter.Roles {
			roleConds = append(roleConds, fmt.Sprintf(
				`EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role ILIKE %s)`, arg(role+"%")))
		}
		conds = append(conds, "("+strings.Join(roleConds, " OR ")+")")
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}

	q := selectUser
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if ords := filter.Orderings(); len(ords) > 0 {
		clauses := make([]string, 0, len(ords))
		for _, ord := range ords {
			clauses = append(clauses, ord.String())
		}
		q += " ORDER BY " + strings.Join(clauses, ", ")
	} else {
		q += " ORDER BY name"
	}

	var rows []dbUser
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return repo.unrowSlice(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	usr.IsActive = isActive
	usr.UpdatedAt = time.Now().UTC()
	u := repo.row(usr)
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE "user"
		SET name          = COALESCE(:name, name),
		    username      = COALESCE(:username, username),
		    email         = COALESCE(:email, email),
		    is_active     = COALESCE(:is_active, is_active),
		    roles         = COALESCE(:roles, roles),
		    password_hash = COALESCE(:password_hash, password_hash),
		    updated_at    = :updated_at
		WHERE id = :id`, u)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, id string, t time.Time) error {
	_, err := repo.db.ExecContext(ctx, `UPDATE "user" SET last_login = $1 WHERE id = $2`, t.UTC(), id)
	return errors.Wrap(err, "setting last login")
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}

// --- profiles ---

type dbTeacherProfile struct {
	ID         string      `db:"id"`
	UserID     string      `db:"user_id"`
	StudioName null.String `db:"studio_name"`
	Bio        null.String `db:"bio"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (repo userRepository) unrowTeacherProfile(p dbTeacherProfile) user.TeacherProfile {
	return user.TeacherProfile{
		ID:         p.ID,
		UserID:     p.UserID,
		StudioName: p.StudioName.String,
		Bio:        p.Bio.String,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
}

func (repo userRepository) CreateTeacherProfile(ctx context.Context, prof user.TeacherProfile) (user.TeacherProfile, error) {
	prof.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO teacher_profile (id, user_id, studio_name, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		prof.ID, prof.UserID, prof.StudioName, prof.Bio, prof.CreatedAt.UTC(), prof.UpdatedAt.UTC())
	if err != nil {
		return user.TeacherProfile{}, errors.Wrap(err, "inserting teacher profile")
	}
	return prof, nil
}

func (repo userRepository) GetTeacherProfile(ctx context.Context, userID string) (user.TeacherProfile, error) {
	var p dbTeacherProfile
	q := `SELECT id, user_id, studio_name, bio, created_at, updated_at FROM teacher_profile WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &p, q, userID); err != nil {
		return user.TeacherProfile{}, repo.trapNoRowsErr(err, "getting teacher profile")
	}
	return repo.unrowTeacherProfile(p), nil
}

func (repo userRepository) UpdateTeacherProfile(ctx context.Context, prof user.TeacherProfile) (user.TeacherProfile, error) {
	prof.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE teacher_profile SET studio_name = $1, bio = $2, updated_at = $3 WHERE user_id = $4`,
		prof.StudioName, prof.Bio, prof.UpdatedAt, prof.UserID)
	if err != nil {
		return user.TeacherProfile{}, errors.Wrap(err, "updating teacher profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.TeacherProfile{}, user.ErrNotFound
	}
	return repo.GetTeacherProfile(ctx, prof.UserID)
}

type dbStudentProfile struct {
	ID                string      `db:"id"`
	UserID            string      `db:"user_id"`
	TeacherID         string      `db:"teacher_id"`
	Instrument        null.String `db:"instrument"`
	SkillLevel        null.String `db:"skill_level"`
	Notes             null.String `db:"notes"`
	WeeklyGoalMinutes int         `db:"weekly_goal_minutes"`
	CreatedAt         time.Time   `db:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

func (repo userRepository) unrowStudentProfile(p dbStudentProfile) user.StudentProfile {
	return user.StudentProfile{
		ID:                p.ID,
		UserID:            p.UserID,
		TeacherID:         p.TeacherID,
		Instrument:        p.Instrument.String,
		SkillLevel:        p.SkillLevel.String,
		Notes:             p.Notes.String,
		WeeklyGoalMinutes: p.WeeklyGoalMinutes,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

func (repo userRepository) CreateStudentProfile(ctx context.Context, prof user.StudentProfile) (user.StudentProfile, error) {
	prof.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO student_profile (id, user_id, teacher_id, instrument, skill_level, notes, weekly_goal_minutes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		prof.ID, prof.UserID, prof.TeacherID, prof.Instrument, prof.SkillLevel,
		prof.Notes, prof.WeeklyGoalMinutes, prof.CreatedAt.UTC(), prof.UpdatedAt.UTC())
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "inserting student profile")
	}
	return prof, nil
}

const selectStudentProfile = `SELECT id, user_id, teacher_id, instrument, skill_level, notes, weekly_goal_minutes, created_at, updated_at FROM student_profile`

func (repo userRepository) GetStudentProfile(ctx context.Context, userID string) (user.StudentProfile, error) {
	var p dbStudentProfile
	if err := repo.db.GetContext(ctx, &p, selectStudentProfile+` WHERE user_id = $1`, userID); err != nil {
		return user.StudentProfile{}, repo.trapNoRowsErr(err, "getting student profile")
	}
	return repo.unrowStudentProfile(p), nil
}

func (repo userRepository) UpdateStudentProfile(ctx context.Context, prof user.StudentProfile) (user.StudentProfile, error) {
	prof.UpdatedAt = time.Now().UTC()
	res, err := repo.db.ExecContext(ctx, `
		UPDATE student_profile
		SET instrument = $1, skill_level = $2, notes = $3, weekly_goal_minutes = $4, updated_at = $5
		WHERE user_id = $6`,
		prof.Instrument, prof.SkillLevel, prof.Notes, prof.WeeklyGoalMinutes, prof.UpdatedAt, prof.UserID)
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "updating student profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.StudentProfile{}, user.ErrNotFound
	}
	return repo.GetStudentProfile(ctx, prof.UserID)
}

func (repo userRepository) DeleteStudentProfile(ctx context.Context, userID string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM student_profile WHERE user_id = $1`, userID)
	return errors.Wrap(err, "deleting student profile")
}

func (repo userRepository) QueryStudentsByTeacher(ctx context.Context, teacherID string) ([]user.Student, error) {
	type dbStudent struct {
		dbUser
		Profile dbStudentProfile `db:"profile"`
	}
	q := `
		SELECT u.id, u.name, u.username, u.email, u.is_active, u.roles, u.password_hash,
		       u.created_at, u.updated_at, u.last_login,
		       p.id "profile.id", p.user_id "profile.user_id", p.teacher_id "profile.teacher_id",
		       p.instrument "profile.instrument", p.skill_level "profile.skill_level",
		       p.notes "profile.notes", p.weekly_goal_minutes "profile.weekly_goal_minutes",
		       p.created_at "profile.created_at", p.updated_at "profile.updated_at"
		FROM student_profile p
		JOIN "user" u ON u.id = p.user_id
		WHERE p.teacher_id = $1
		ORDER BY u.name`

	var rows []dbStudent
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]user.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, user.Student{
			User:    repo.unrow(r.dbUser),
			Profile: repo.unrowStudentProfile(r.Profile),
		})
	}
	return students, nil
}

// --- invites ---

type dbInvite struct {
	ID        string      `db:"id"`
	TeacherID string      `db:"teacher_id"`
	Email     null.String `db:"email"`
	Token     string      `db:"token"`
	ExpiresAt time.Time   `db:"expires_at"`
	UsedAt    null.Time   `db:"used_at"`
	CreatedAt time.Time   `db:"created_at"`
}

func (repo userRepository) unrowInvite(inv dbInvite) user.Invite {
	return user.Invite{
		ID:        inv.ID,
		TeacherID: inv.TeacherID,
		Email:     inv.Email.String,
		Token:     inv.Token,
		ExpiresAt: inv.ExpiresAt,
		UsedAt:    inv.UsedAt.Time,
		CreatedAt: inv.CreatedAt,
	}
}

// trapInviteNoRowsErr maps psql "no rows" err to user.ErrInviteNotFound
func (repo userRepository) trapInviteNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrInviteNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CreateInvite(ctx context.Context, inv user.Invite) (user.Invite, error) {
	inv.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO invite (id, teacher_id, email, token, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		inv.ID, inv.TeacherID, inv.Email, inv.Token, inv.ExpiresAt.UTC(), inv.CreatedAt.UTC())
	if err != nil {
		return user.Invite{}, errors.Wrap(err, "inserting invite")
	}
	return inv, nil
}

const selectInvite = `SELECT id, teacher_id, email, token, expires_at, used_at, created_at FROM invite`

func (repo userRepository) GetInviteByToken(ctx context.Context, token string) (user.Invite, error) {
	var inv dbInvite
	if err := repo.db.GetContext(ctx, &inv, selectInvite+` WHERE token = $1`, token); err != nil {
		return user.Invite{}, repo.trapInviteNoRowsErr(err, "getting invite by token")
	}
	return repo.unrowInvite(inv), nil
}

func (repo userRepository) GetActiveInvite(ctx context.Context, teacherID, email string) (user.Invite, error) {
	var inv dbInvite
	q := selectInvite + ` WHERE teacher_id = $1 AND LOWER(email) = LOWER($2) AND used_at IS NULL AND expires_at > now()`
	if err := repo.db.GetContext(ctx, &inv, q, teacherID, email); err != nil {
		return user.Invite{}, repo.trapInviteNoRowsErr(err, "getting active invite")
	}
	return repo.unrowInvite(inv), nil
}

func (repo userRepository) QueryInvitesByTeacher(ctx context.Context, teacherID string) ([]user.Invite, error) {
	var rows []dbInvite
	q := selectInvite + ` WHERE teacher_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying invites")
	}
	invites := make([]user.Invite, 0, len(rows))
	for _, inv := range rows {
		invites = append(invites, repo.unrowInvite(inv))
	}
	return invites, nil
}

func (repo userRepository) MarkInviteUsed(ctx context.Context, id string, usedAt time.Time) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE invite SET used_at = $1 WHERE id = $2`, usedAt.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "marking invite used")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrInviteNotFound
	}
	return nil
}

func (repo userRepository) DeleteInvite(ctx context.Context, teacherID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM invite WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	if err != nil {
		return errors.Wrap(err, "deleting invite")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrInviteNotFound
	}
	return nil
}
