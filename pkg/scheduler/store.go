package scheduler

import (
	"context"
	"errors"
)

var (
	// ErrTaskNotFound indicates the named task has no stored versions.
	ErrTaskNotFound = errors.New("task not found")

	// ErrVersionConflict indicates a concurrent writer moved the latest
	// pointer since the caller read it.
	ErrVersionConflict = errors.New("task version conflict")
)

// Store persists versioned tasks. Put is a compare-and-swap: the given
// task's Version must equal the stored latest version (zero for a new
// task) or ErrVersionConflict comes back and nothing is written.
type Store interface {
	Put(ctx context.Context, task *Task) (*Task, error)

	// Latest returns the newest version of the named task.
	Latest(ctx context.Context, name string) (*Task, error)

	// Version returns one historical snapshot.
	Version(ctx context.Context, name string, version int) (*Task, error)

	// Delete removes the task and its whole version history. Deleting
	// an absent task is a no-op reporting false.
	Delete(ctx context.Context, name string) (bool, error)

	// Names returns every stored task name exactly once, sorted.
	Names(ctx context.Context) ([]string, error)

	Close() error
}
