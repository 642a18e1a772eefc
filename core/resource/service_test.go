package resource_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/muziki/core/resource"
	filesvc "github.com/trezcool/muziki/services/filestore"
	inmemdb "github.com/trezcool/muziki/storage/database/inmem"
	"github.com/trezcool/muziki/tests"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestFileTypeOf(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"etude.pdf", resource.FileTypePDF},
		{"Etude.PDF", resource.FileTypePDF},
		{"take1.mp3", resource.FileTypeAudio},
		{"take1.flac", resource.FileTypeAudio},
		{"recital.mp4", resource.FileTypeVideo},
		{"recital.webm", resource.FileTypeVideo},
		{"notes.txt", ""},
		{"noext", ""},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, resource.FileTypeOf(tt.filename))
		})
	}
}

func TestService_Upload(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	store := filesvc.NewInmemStore()
	svc := resource.NewService(inmemdb.NewResourceRepository(db), store, nopLogger{})
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "teach@test.cd")

	res, err := svc.Upload(ctx, teacher, resource.NewResource{
		Title:    "Hanon No. 1",
		FileName: "hanon-1.pdf",
	}, strings.NewReader("%PDF-1.4 ..."))
	require.NoError(t, err)
	assert.Equal(t, resource.FileTypePDF, res.FileType)
	assert.Equal(t, []byte("%PDF-1.4 ..."), store.Contents(res.FileURL))

	lib, err := svc.ForTeacher(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, lib, 1)
	assert.Equal(t, "Hanon No. 1", lib[0].Title)
}

func TestService_Upload_storeFailure(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	store := filesvc.NewInmemStore()
	store.SaveErr = errors.New("bucket unavailable")
	svc := resource.NewService(inmemdb.NewResourceRepository(db), store, nopLogger{})

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "teach@test.cd")

	_, err := svc.Upload(context.Background(), teacher, resource.NewResource{
		Title:    "Hanon No. 1",
		FileName: "hanon-1.pdf",
	}, strings.NewReader("x"))
	require.Error(t, err)
	assert.Equal(t, "bucket unavailable", errors.Cause(err).Error())
}

func TestService_Delete(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	store := filesvc.NewInmemStore()
	svc := resource.NewService(inmemdb.NewResourceRepository(db), store, nopLogger{})
	ctx := context.Background()

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "teach@test.cd")
	other := testutil.CreateTeacher(t, usrRepo, "Other", "other", "other@test.cd")

	res, err := svc.Upload(ctx, teacher, resource.NewResource{
		Title:    "Warmup",
		FileName: "warmup.mp3",
	}, strings.NewReader("audio"))
	require.NoError(t, err)

	t.Run("another teacher cannot delete it", func(t *testing.T) {
		err := svc.Delete(ctx, other, res.ID)
		assert.Equal(t, resource.ErrNotFound, err)
	})

	require.NoError(t, svc.Delete(ctx, teacher, res.ID))
	_, err = svc.GetByID(ctx, res.ID)
	assert.Equal(t, resource.ErrNotFound, err)
	// the blob is gone too
	assert.Nil(t, store.Contents(res.FileURL))
}
