// Package filestore provides core.FileStore implementations.
package filestore

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/muziki/core"
)

type localStore struct {
	root    string
	baseURL string
}

var _ core.FileStore = (*localStore)(nil)

// NewLocalStore stores files on disk under conf.Media.Root and hands out URLs
// under conf.Media.BaseURL.
func NewLocalStore(conf *core.Config) *localStore {
	return &localStore{
		root:    conf.Media.Root,
		baseURL: strings.TrimSuffix(conf.Media.BaseURL, "/"),
	}
}

func (s *localStore) Save(path string, content io.Reader) (string, error) {
	fp := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", errors.Wrap(err, "creating media directory")
	}
	f, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	defer func() { _ = f.Close() }()

	if _, err = io.Copy(f, content); err != nil {
		return "", errors.Wrap(err, "writing media file")
	}
	return s.baseURL + "/" + path, nil
}

func (s *localStore) Delete(url string) error {
	path := strings.TrimPrefix(url, s.baseURL+"/")
	if path == url {
		return errors.Errorf("url %q is not under this store", url)
	}
	fp := filepath.Join(s.root, filepath.FromSlash(path))
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing media file")
	}
	return nil
}
