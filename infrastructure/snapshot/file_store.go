// Package snapshot persists the exception collection to a YAML file so the
// daemon picks up in-flight exceptions across restarts. Terminal statuses
// survive the round trip; the status machine never runs backwards on reload.
package snapshot

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/breakglass-dev/breakglass/domain/entities"
	derrors "github.com/breakglass-dev/breakglass/domain/errors"
)

// fileStoreConfig holds configuration for the FileStore.
type fileStoreConfig struct {
	path     string
	dirPerm  os.FileMode
	filePerm os.FileMode
}

func defaultFileStoreConfig() fileStoreConfig {
	return fileStoreConfig{
		path:     filepath.Join(os.Getenv("HOME"), ".breakglass", "exceptions.yaml"),
		dirPerm:  0o755,
		filePerm: 0o600, // exceptions grant access; user-only read/write
	}
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*fileStoreConfig)

// WithPath sets the snapshot file path.
func WithPath(path string) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.path = path
	}
}

// WithFilePermissions sets the snapshot file permissions. Default 0600.
func WithFilePermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.filePerm = perm
	}
}

// WithDirPermissions sets the snapshot directory permissions. Default 0755.
func WithDirPermissions(perm os.FileMode) FileStoreOption {
	return func(c *fileStoreConfig) {
		c.dirPerm = perm
	}
}

// FileStore reads and writes exception snapshots.
type FileStore struct {
	config fileStoreConfig
}

// NewFileStore creates a FileStore with the given options.
func NewFileStore(opts ...FileStoreOption) *FileStore {
	cfg := defaultFileStoreConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &FileStore{config: cfg}
}

// Path returns the snapshot file path, for user messaging.
func (s *FileStore) Path() string {
	return s.config.path
}

type snapshotDoc struct {
	Exceptions []*entities.Exception `yaml:"exceptions"`
}

// Load returns the persisted exceptions. A missing file is an empty
// snapshot, not an error.
func (s *FileStore) Load() ([]*entities.Exception, error) {
	data, err := os.ReadFile(s.config.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &derrors.StorageError{Op: "read exception snapshot", Err: err}
	}
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &derrors.StorageError{Op: "parse exception snapshot", Err: err}
	}
	return doc.Exceptions, nil
}

// Save persists the exceptions, replacing any previous snapshot.
func (s *FileStore) Save(exceptions []*entities.Exception) error {
	data, err := yaml.Marshal(snapshotDoc{Exceptions: exceptions})
	if err != nil {
		return &derrors.StorageError{Op: "marshal exception snapshot", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(s.config.path), s.config.dirPerm); err != nil {
		return &derrors.StorageError{Op: "create snapshot directory", Err: err}
	}
	if err := os.WriteFile(s.config.path, data, s.config.filePerm); err != nil {
		return &derrors.StorageError{Op: "write exception snapshot", Err: err}
	}
	return nil
}
