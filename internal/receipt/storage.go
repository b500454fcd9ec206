package receipt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for storage paths that leave the base directory
var ErrInvalidPath = errors.New("invalid storage path")

// Storage stores original receipt images
type Storage interface {
	// Save stores data under name and returns the path to retrieve it with
	Save(name string, data []byte) (string, error)

	// Get retrieves a stored file
	Get(path string) ([]byte, error)

	// Delete removes a stored file
	Delete(path string) error
}

// LocalStorage keeps receipt images in a directory on disk
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// resolve maps a stored path to a file inside basePath. Only flat names are
// accepted.
func (l *LocalStorage) resolve(path string) (string, error) {
	if path == "" || path != filepath.Base(path) || strings.HasPrefix(path, ".") {
		return "", fmt.Errorf("%q: %w", path, ErrInvalidPath)
	}
	return filepath.Join(l.basePath, path), nil
}

// Save writes the file
func (l *LocalStorage) Save(name string, data []byte) (string, error) {
	full, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return name, nil
}

// Get reads the file
func (l *LocalStorage) Get(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes the file
func (l *LocalStorage) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}
