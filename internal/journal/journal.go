// Package journal keeps the ordered list of operations planned or performed
// during one run, and can save it as a JSON run report.
package journal

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"gotidy/internal/utils"
	"gotidy/pkg/models"
)

// Report is the persisted form of a journal.
type Report struct {
	RunID      string             `json:"run_id"`
	DryRun     bool               `json:"dry_run"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Stats      models.RunStats    `json:"stats"`
	Operations []models.Operation `json:"operations"`
}

type Journal struct {
	mu     sync.RWMutex
	report Report
}

func New(dryRun bool) *Journal {
	return &Journal{
		report: Report{
			RunID:      uuid.NewString(),
			DryRun:     dryRun,
			StartedAt:  time.Now(),
			Operations: make([]models.Operation, 0),
		},
	}
}

func (j *Journal) RunID() string {
	return j.report.RunID
}

func (j *Journal) Record(op models.Operation) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report.Operations = append(j.report.Operations, op)
}

// Operations returns a copy of the recorded operations in order.
func (j *Journal) Operations() []models.Operation {
	j.mu.RLock()
	defer j.mu.RUnlock()
	ops := make([]models.Operation, len(j.report.Operations))
	copy(ops, j.report.Operations)
	return ops
}

// Filter returns the recorded operations with the given status.
func (j *Journal) Filter(status models.OpStatus) []models.Operation {
	return filterOps(j.Operations(), status)
}

// Filter returns the report's operations with the given status; an empty
// status matches all of them.
func (r *Report) Filter(status models.OpStatus) []models.Operation {
	if status == "" {
		return r.Operations
	}
	return filterOps(r.Operations, status)
}

func filterOps(ops []models.Operation, status models.OpStatus) []models.Operation {
	var out []models.Operation
	for _, op := range ops {
		if op.Status == status {
			out = append(out, op)
		}
	}
	return out
}

// Save writes the report to path via a temp file and an atomic rename.
func (j *Journal) Save(fsys afero.Fs, path string, stats models.RunStats) error {
	j.mu.Lock()
	j.report.FinishedAt = time.Now()
	j.report.Stats = stats
	data, err := json.MarshalIndent(j.report, "", "  ")
	j.mu.Unlock()
	if err != nil {
		return err
	}

	if err := fsys.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := afero.WriteFile(fsys, tempPath, data, 0644); err != nil {
		return err
	}
	return utils.MoveFile(fsys, tempPath, path)
}

// Load reads a report written by Save.
func Load(fsys afero.Fs, path string) (*Report, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
