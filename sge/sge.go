package sge

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/clemsonciti/sagitta"
)

// DefaultAccountingFile is used when SGE_ROOT is not set.
const DefaultAccountingFile = "/opt/sge/default/common/accounting"

// AccountingFile returns the accounting file of the local Grid Engine cell,
// $SGE_ROOT/$SGE_CELL/common/accounting.
func AccountingFile() string {
	root := os.Getenv("SGE_ROOT")
	if root == "" {
		slog.Debug("SGE_ROOT not set, using default accounting file", "path", DefaultAccountingFile)
		return DefaultAccountingFile
	}
	cell := os.Getenv("SGE_CELL")
	if cell == "" {
		cell = "default"
	}
	return path.Join(root, cell, "common", "accounting")
}

type jobSource struct {
	locator Locator
}

// NewJobSource reads jobs from the accounting file l points at.
func NewJobSource(l Locator) sagitta.JobSource {
	return jobSource{locator: l}
}

func (s jobSource) GetJobByID(jobID int64, dir sagitta.Direction) (*sagitta.JobRecord, bool, error) {
	line, found, err := s.locator.Find(jobID, dir)
	if err != nil || !found {
		return nil, false, err
	}
	rec, err := sagitta.DecodeLine(line)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode accounting line for job %v: %w", jobID, err)
	}
	slog.Debug("decoded accounting line", "jobID", jobID, "owner", rec.Owner, "task", rec.TaskNumber)
	return rec, true, nil
}
