package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Document names persisted in the data directory
const (
	ReferencesDocument = "images-urls.json"
	IndexDocument      = "images.json"
)

// Documents persists flat, human-readable JSON documents
type Documents struct {
	dir string
}

// NewDocuments creates a document store in dir
func NewDocuments(dir string) (*Documents, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Documents{dir: dir}, nil
}

// Path returns the on-disk location of a document
func (d *Documents) Path(name string) string {
	return filepath.Join(d.dir, name)
}

// SaveJSON writes v with 2-space indentation, replacing the old document
// only once the new one is complete.
func (d *Documents) SaveJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return WriteFileAtomic(d.Path(name), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// LoadJSON decodes a document into v. found is false when it does not exist.
func (d *Documents) LoadJSON(name string, v interface{}) (found bool, err error) {
	data, err := os.ReadFile(d.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return true, nil
}
