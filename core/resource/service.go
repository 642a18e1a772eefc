package resource

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
	"github.com/trezcool/muziki/core/user"
)

var ErrNotFound = errors.New("resource not found")

type (
	Repository interface {
		CreateResource(ctx context.Context, res Resource) (Resource, error)
		GetResourceByID(ctx context.Context, id string) (Resource, error)
		GetResourcesByIDs(ctx context.Context, ids []string) ([]Resource, error)
		// QueryResourcesByTeacher returns the teacher's library, newest first.
		QueryResourcesByTeacher(ctx context.Context, teacherID string) ([]Resource, error)
		DeleteResource(ctx context.Context, teacherID, id string) error
	}

	Service struct {
		repo  Repository
		store core.FileStore
		log   core.Logger
	}
)

func NewService(repo Repository, store core.FileStore, log core.Logger) *Service {
	return &Service{repo: repo, store: store, log: log}
}

// Upload stores a library file and records it in the teacher's library.
func (svc *Service) Upload(ctx context.Context, teacher user.User, nr NewResource, content io.Reader) (Resource, error) {
	path := fmt.Sprintf("resources/%s/%s%s", teacher.ID, uuid.New().String(), filepath.Ext(nr.FileName))
	url, err := svc.store.Save(path, content)
	if err != nil {
		return Resource{}, errors.Wrap(err, "storing resource file")
	}

	res, err := svc.repo.CreateResource(ctx, Resource{
		TeacherID: teacher.ID,
		Title:     nr.Title,
		FileURL:   url,
		FileType:  FileTypeOf(nr.FileName),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		// the record is the source of truth; drop the orphaned blob
		if delErr := svc.store.Delete(url); delErr != nil {
			svc.log.Warn("deleting orphaned resource file", delErr)
		}
		return Resource{}, err
	}
	return res, nil
}

func (svc *Service) ForTeacher(ctx context.Context, teacher user.User) ([]Resource, error) {
	return svc.repo.QueryResourcesByTeacher(ctx, teacher.ID)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Resource, error) {
	return svc.repo.GetResourceByID(ctx, id)
}

func (svc *Service) GetByIDs(ctx context.Context, ids []string) ([]Resource, error) {
	return svc.repo.GetResourcesByIDs(ctx, ids)
}

// Delete removes a library resource; the blob delete is best-effort.
func (svc *Service) Delete(ctx context.Context, teacher user.User, id string) error {
	res, err := svc.repo.GetResourceByID(ctx, id)
	if err != nil {
		return err
	}
	if res.TeacherID != teacher.ID {
		return ErrNotFound
	}
	if err = svc.repo.DeleteResource(ctx, teacher.ID, id); err != nil {
		return err
	}
	if err = svc.store.Delete(res.FileURL); err != nil {
		svc.log.Warn("deleting resource file", err)
	}
	return nil
}
