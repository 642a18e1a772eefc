package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core/resource"
)

type resourceRepository struct {
	db *sqlx.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) *resourceRepository {
	return &resourceRepository{db: db}
}

type dbResource struct {
	ID        string    `db:"id"`
	TeacherID string    `db:"teacher_id"`
	Title     string    `db:"title"`
	FileURL   string    `db:"file_url"`
	FileType  string    `db:"file_type"`
	CreatedAt time.Time `db:"created_at"`
}

func (repo resourceRepository) unrow(r dbResource) resource.Resource {
	return resource.Resource{
		ID:        r.ID,
		TeacherID: r.TeacherID,
		Title:     r.Title,
		FileURL:   r.FileURL,
		FileType:  r.FileType,
		CreatedAt: r.CreatedAt,
	}
}

func (repo resourceRepository) unrowSlice(rows []dbResource) []resource.Resource {
	ress := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		ress = append(ress, repo.unrow(r))
	}
	return ress
}

func (repo resourceRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return resource.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	res.ID = uuid.New().String()
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO resource (id, teacher_id, title, file_url, file_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.TeacherID, res.Title, res.FileURL, res.FileType, res.CreatedAt.UTC())
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return res, nil
}

const selectResource = `SELECT id, teacher_id, title, file_url, file_type, created_at FROM resource`

func (repo resourceRepository) GetResourceByID(ctx context.Context, id string) (resource.Resource, error) {
	var r dbResource
	if err := repo.db.GetContext(ctx, &r, selectResource+` WHERE id = $1`, id); err != nil {
		return resource.Resource{}, repo.trapNoRowsErr(err, "getting resource")
	}
	return repo.unrow(r), nil
}

func (repo resourceRepository) GetResourcesByIDs(ctx context.Context, ids []string) ([]resource.Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []dbResource
	q := selectResource + ` WHERE id = ANY($1) ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, pq.Array(ids)); err != nil {
		return nil, errors.Wrap(err, "querying resources by ids")
	}
	return repo.unrowSlice(rows), nil
}

func (repo resourceRepository) QueryResourcesByTeacher(ctx context.Context, teacherID string) ([]resource.Resource, error) {
	var rows []dbResource
	q := selectResource + ` WHERE teacher_id = $1 ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying teacher resources")
	}
	return repo.unrowSlice(rows), nil
}

func (repo resourceRepository) DeleteResource(ctx context.Context, teacherID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM resource WHERE id = $1 AND teacher_id = $2`, id, teacherID)
	if err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return resource.ErrNotFound
	}
	return nil
}
