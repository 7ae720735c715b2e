package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"marsfeed/pkg/models"
)

const tempPattern = ".partial-*"

// Manager stores downloaded frames in a day-keyed directory tree:
// <root>/<day>/<filename>. File existence is the only record of a download.
type Manager struct {
	root string
}

// NewManager creates a storage manager rooted at root
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the asset root directory
func (m *Manager) Root() string {
	return m.root
}

// DayDir returns the directory holding one day's frames
func (m *Manager) DayDir(day models.Day) string {
	return filepath.Join(m.root, day.Key())
}

// Path returns where a frame for day is stored
func (m *Manager) Path(day models.Day, filename string) string {
	return filepath.Join(m.DayDir(day), filename)
}

// Exists reports whether the frame has already been downloaded
func (m *Manager) Exists(day models.Day, filename string) bool {
	info, err := os.Stat(m.Path(day, filename))
	return err == nil && info.Mode().IsRegular()
}

// Save writes a frame atomically. The day directory is created on demand;
// concurrent creation of the same directory is harmless.
func (m *Manager) Save(day models.Day, filename string, write func(w io.Writer) error) error {
	return WriteFileAtomic(m.Path(day, filename), write)
}

// Days lists the day directories present, ascending
func (m *Manager) Days() ([]models.Day, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read asset directory: %w", err)
	}

	var days []models.Day
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		day, err := models.ParseDay(entry.Name())
		if err != nil {
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// Frames returns the full paths of a day's frames ordered by their
// spacecraft-clock sort key, never by directory listing order.
func (m *Manager) Frames(day models.Day) ([]string, error) {
	dir := m.DayDir(day)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Slice(names, func(i, j int) bool {
		return models.SortKey(names[i]) < models.SortKey(names[j])
	})

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
	}
	return paths, nil
}

// WriteFileAtomic writes through a temporary sibling file and renames it
// into place, so readers never observe a partial file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	err = write(out)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
