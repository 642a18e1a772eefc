package core

import "io"

// FileStore is any service that can persist uploaded files and serve them back
// by an opaque URL. Implementations decide where the bytes actually live.
type FileStore interface {
	// Save stores the content under a path relative to the store root and
	// returns the public URL of the stored file.
	Save(path string, content io.Reader) (url string, err error)
	// Delete removes a file previously returned by Save. Deleting a URL that
	// no longer exists is not an error.
	Delete(url string) error
}
