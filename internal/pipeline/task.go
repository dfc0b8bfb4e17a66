package pipeline

import (
	"time"

	"github.com/fmueller/voxserve/internal/promise"
	"github.com/fmueller/voxserve/internal/scratch"
)

// Task is the message handed from admission to the worker.
type Task struct {
	ID          string
	Workspace   *scratch.Workspace
	SubmittedAt time.Time
	Promise     *promise.Promise[string]
}

// Ticket is the caller's handle on a submitted task.
type Ticket struct {
	task *Task
}

func (t *Ticket) ID() string {
	return t.task.ID
}

func (t *Ticket) Promise() *promise.Promise[string] {
	return t.task.Promise
}

func (t *Ticket) SubmittedAt() time.Time {
	return t.task.SubmittedAt
}

// Released reports whether the task's scratch files are gone.
func (t *Ticket) Released() bool {
	return t.task.Workspace.Released()
}
