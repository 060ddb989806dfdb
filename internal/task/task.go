// Package task tracks submitted translation jobs across the asynchronous
// boundary between the HTTP surface and the pipeline workers.
package task

import (
	"time"

	"github.com/fukidashi-ocr/fukidashi/internal/pipeline"
)

// Status is the lifecycle state of a task. A task moves from
// StatusProcessing to exactly one terminal state and never reverts.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Task is a snapshot of one tracked job. Bubbles is populated only when
// Status is StatusDone; Err only when Status is StatusError.
type Task struct {
	ID         string
	Status     Status
	Bubbles    []pipeline.Bubble
	Err        string
	CreatedAt  time.Time
	FinishedAt time.Time
}

// Terminal reports whether the task has reached a final state.
func (t Task) Terminal() bool {
	return t.Status == StatusDone || t.Status == StatusError
}
