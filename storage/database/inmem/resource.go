package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/muziki/core/resource"
)

type resourceRepository struct {
	db *DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	res.ID = uuid.New().String()
	repo.db.resources[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) GetResourceByID(ctx context.Context, id string) (resource.Resource, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if res, ok := repo.db.resources[id]; ok {
		return *res, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) GetResourcesByIDs(ctx context.Context, ids []string) ([]resource.Resource, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ress []resource.Resource
	for _, id := range ids {
		if res, ok := repo.db.resources[id]; ok {
			ress = append(ress, *res)
		}
	}
	return ress, nil
}

func (repo *resourceRepository) QueryResourcesByTeacher(ctx context.Context, teacherID string) ([]resource.Resource, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var ress []resource.Resource
	for _, res := range repo.db.resources {
		if res.TeacherID == teacherID {
			ress = append(ress, *res)
		}
	}
	sort.Slice(ress, func(i, j int) bool { return ress[i].CreatedAt.After(ress[j].CreatedAt) })
	return ress, nil
}

func (repo *resourceRepository) DeleteResource(ctx context.Context, teacherID, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	res, ok := repo.db.resources[id]
	if !ok || res.TeacherID != teacherID {
		return resource.ErrNotFound
	}
	delete(repo.db.resources, id)
	return nil
}
