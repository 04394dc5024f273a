package queue

import (
	"time"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

// Job represents an export job
type Job struct {
	Export     types.ExportJob
	InputPath  string
	Status     string
	OutputPath string
	GDriveURL  string
	Error      error
	CreatedAt  time.Time
}

// NewJob creates a new job with default values
func NewJob(export types.ExportJob, inputPath string) *Job {
	return &Job{
		Export:    export,
		InputPath: inputPath,
		Status:    types.StatusQueued,
		CreatedAt: time.Now(),
	}
}

// ID returns the export job ID
func (j *Job) ID() string {
	return j.Export.ID
}
