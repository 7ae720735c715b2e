package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	errs "marsfeed/pkg/errors"
	"marsfeed/pkg/logger"
	"marsfeed/pkg/models"
	"marsfeed/pkg/storage"
)

// FileName is the checkpoint document inside the data directory
const FileName = ".marsfeed.checkpoint.json"

// Checkpoint is the state of one pipeline run
type Checkpoint struct {
	RunID      string             `json:"run_id"`
	Completed  []string           `json:"completed_stages"`
	Failures   []errs.ItemFailure `json:"failures,omitempty"`
	Incomplete []models.Day       `json:"incomplete_days,omitempty"`
	Counts     map[string]int     `json:"counts,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Version    int                `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager keeps the checkpoint in dataDir
func NewManager(dataDir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		checkpointPath: filepath.Join(dataDir, FileName),
		logger:         log,
	}, nil
}

// Path of the checkpoint file
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create starts a new run and saves it
func (m *Manager) Create() (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		RunID:     uuid.NewString(),
		Counts:    make(map[string]int),
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": cp.RunID,
		"path":   m.checkpointPath,
	})
	return cp, nil
}

// Load returns nil without error when no checkpoint exists
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var cp Checkpoint
	if err := json.NewDecoder(file).Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Counts == nil {
		cp.Counts = make(map[string]int)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":    cp.RunID,
		"completed": cp.Completed,
		"failures":  len(cp.Failures),
	})
	return &cp, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	err := storage.WriteFileAtomic(m.checkpointPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cp)
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"run_id":    cp.RunID,
		"completed": cp.Completed,
	})
	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// CompleteStage records stage as done together with its item failures
func (m *Manager) CompleteStage(cp *Checkpoint, stage string, count int, failures []errs.ItemFailure) error {
	if !cp.IsCompleted(stage) {
		cp.Completed = append(cp.Completed, stage)
	}
	cp.Counts[stage] = count
	cp.Failures = append(cp.Failures, failures...)
	return m.Save(cp)
}

// IsCompleted reports whether stage finished in this run
func (cp *Checkpoint) IsCompleted(stage string) bool {
	return slices.Contains(cp.Completed, stage)
}

// SetIncomplete stores the days that must not be assembled yet
func (cp *Checkpoint) SetIncomplete(days map[models.Day]bool) {
	cp.Incomplete = cp.Incomplete[:0]
	for day := range days {
		cp.Incomplete = append(cp.Incomplete, day)
	}
	slices.Sort(cp.Incomplete)
}

// IncompleteDays is the inverse of SetIncomplete
func (cp *Checkpoint) IncompleteDays() map[models.Day]bool {
	out := make(map[models.Day]bool, len(cp.Incomplete))
	for _, day := range cp.Incomplete {
		out[day] = true
	}
	return out
}
