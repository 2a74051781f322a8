// Package artifacts stores submission artifact bodies on the local
// filesystem, keyed by "<submissionID>/<name>". Metadata lives in the
// database; this store only holds bytes.
package artifacts

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no object exists under the key.
var ErrNotFound = errors.New("artifact object not found")

// Object is a stored artifact body.
type Object struct {
	Key  string
	Size int64
	Body io.ReadCloser
}

// Store is a directory-backed object store.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "create artifact dir")
	}
	return &Store{root: root}, nil
}

// Key builds the canonical object key for an artifact.
func Key(submissionID, name string) string {
	return submissionID + "/" + name
}

func (s *Store) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", errors.Errorf("invalid artifact key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes an object, replacing any previous body under the key.
func (s *Store) Put(key string, body io.Reader) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, errors.Wrap(err, "create artifact subdir")
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrap(err, "create artifact object")
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrap(err, "write artifact object")
	}
	return n, nil
}

// Get opens an object for reading. The caller closes Body.
func (s *Store) Get(key string) (Object, error) {
	path, err := s.path(key)
	if err != nil {
		return Object{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Object{}, ErrNotFound
		}
		return Object{}, errors.Wrap(err, "open artifact object")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return Object{}, errors.Wrap(err, "stat artifact object")
	}
	return Object{Key: key, Size: info.Size(), Body: f}, nil
}

// Delete removes an object; deleting a missing object is not an error.
func (s *Store) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete artifact object")
	}
	return nil
}
