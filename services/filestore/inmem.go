package filestore

import (
	"io"
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
)

type inmemStore struct {
	mu    sync.Mutex
	files map[string][]byte

	// SaveErr makes Save fail; lets tests exercise upload failure paths.
	SaveErr error
}

var _ core.FileStore = (*inmemStore)(nil)

// NewInmemStore returns a map-backed store for tests.
func NewInmemStore() *inmemStore {
	return &inmemStore{files: make(map[string][]byte)}
}

func (s *inmemStore) Save(path string, content io.Reader) (string, error) {
	if s.SaveErr != nil {
		return "", s.SaveErr
	}
	data, err := ioutil.ReadAll(content)
	if err != nil {
		return "", errors.Wrap(err, "reading content")
	}
	s.mu.Lock()
	s.files["mem://"+path] = data
	s.mu.Unlock()
	return "mem://" + path, nil
}

func (s *inmemStore) Delete(url string) error {
	s.mu.Lock()
	delete(s.files, url)
	s.mu.Unlock()
	return nil
}

// Contents returns the stored file, nil when absent.
func (s *inmemStore) Contents(url string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.files[url]
}
