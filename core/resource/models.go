package resource

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/muziki/core"
)

// File types
const (
	FileTypePDF   = "pdf"
	FileTypeAudio = "audio"
	FileTypeVideo = "video"
)

var FileTypes = []string{FileTypePDF, FileTypeAudio, FileTypeVideo}

// FileTypeOf guesses the library file type from a file name; empty when the
// extension is not supported.
func FileTypeOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac":
		return FileTypeAudio
	case ".mp4", ".mov", ".webm", ".mkv":
		return FileTypeVideo
	}
	return ""
}

// Resource is a file in a teacher's library, referenced by lessons and
// assignments. FileURL is an opaque URL handed out by the file store.
type Resource struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacher_id"`
	Title     string    `json:"title"`
	FileURL   string    `json:"file_url"`
	FileType  string    `json:"file_type"`
	CreatedAt time.Time `json:"created_at"`
}

// NewResource contains the metadata of a library upload; the file content
// travels separately.
type NewResource struct {
	Title    string `json:"title" validate:"required"`
	FileName string `json:"file_name" validate:"required"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	if err := validate.Struct(nr); err != nil {
		return err
	}
	if FileTypeOf(nr.FileName) == "" {
		return core.NewValidationError(nil, core.FieldError{
			Field: "file_name",
			Error: "unsupported file type; use pdf, audio or video files",
		})
	}
	return nil
}
