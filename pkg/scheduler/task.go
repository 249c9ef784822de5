package scheduler

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Task is a named, versioned schedule binding a cron expression to a
// workflow document. Mutations never rewrite history: each write becomes
// a new snapshot version and moves the latest pointer.
type Task struct {
	Name     string          `json:"name"`
	Schedule string          `json:"schedule"`
	Workflow json.RawMessage `json:"workflow,omitempty"`

	// Version is the snapshot number, starting at 1. On a Task handed
	// to Store.Put it carries the expected current version instead.
	Version int `json:"version"`

	// Active is cleared instead of deleting history when a task is
	// retired.
	Active bool `json:"active"`

	// NextInvocationID deduplicates workflow starts. It is derived
	// fresh on every read and never persisted, so two reads of the
	// same task can never hand the same identifier to a workflow.
	NextInvocationID string `json:"nextInvocationId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var taskNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

const maxTaskNameLen = 128

// ValidateName rejects names that cannot serve as invocation identifier
// prefixes.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("task name is empty")
	}
	if len(name) > maxTaskNameLen {
		return fmt.Errorf("task name %q longer than %d characters", name, maxTaskNameLen)
	}
	if !taskNameRe.MatchString(name) {
		return fmt.Errorf("task name %q may only contain letters, digits, - and _", name)
	}
	return nil
}

// NewInvocationID derives a fresh workflow invocation identifier from a
// task name: the name truncated to 67 characters, a dash, and 12 random
// hex characters, so the result always fits an 80 character limit.
func NewInvocationID(name string) string {
	if len(name) > 67 {
		name = name[:67]
	}
	id := uuid.New()
	return name + "-" + hex.EncodeToString(id[:])[:12]
}
