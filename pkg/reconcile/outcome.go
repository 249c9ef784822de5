package reconcile

import (
	"fmt"
	"strings"

	"github.com/curator-ml/curator/pkg/provider"
)

// Tag classifies the result of a reconcile pass.
type Tag string

const (
	// TagTerminal means the resource exists, matches the desired fields,
	// and is in its final usable state.
	TagTerminal Tag = "terminal"
	// TagPending means work is in flight and the pass should be retried.
	TagPending Tag = "pending"
	// TagNeedsUpdate means the resource exists but drifts from the desired
	// fields and the kind supports in-place update.
	TagNeedsUpdate Tag = "needsUpdate"
	// TagSolutionVersionPending is a pending signal that also carries the
	// ARN of a solution version created during the pass.
	TagSolutionVersionPending Tag = "solutionVersionPending"
	// TagFailed means the pass cannot make progress without operator action.
	TagFailed Tag = "failed"
	// TagInvalid means the remote resource reported a state outside the
	// known status vocabulary.
	TagInvalid Tag = "invalid"
)

// Outcome is the single result type of a reconcile pass. Exactly one
// constructor applies; the orchestrator switches on Tag.
type Outcome struct {
	Tag Tag

	// Resource holds the describe envelope when Tag is TagTerminal.
	Resource provider.Result

	// SolutionVersionARN is set when Tag is TagSolutionVersionPending.
	SolutionVersionARN string

	// Reason explains TagFailed, TagInvalid, and TagNeedsUpdate outcomes.
	Reason string
}

func Terminal(res provider.Result) Outcome {
	return Outcome{Tag: TagTerminal, Resource: res}
}

func Pending() Outcome {
	return Outcome{Tag: TagPending}
}

func NeedsUpdate(mismatches []string) Outcome {
	return Outcome{Tag: TagNeedsUpdate, Reason: strings.Join(mismatches, "; ")}
}

func SolutionVersionPending(arn string) Outcome {
	return Outcome{Tag: TagSolutionVersionPending, SolutionVersionARN: arn}
}

func Failed(format string, args ...any) Outcome {
	return Outcome{Tag: TagFailed, Reason: fmt.Sprintf(format, args...)}
}

func Invalid(format string, args ...any) Outcome {
	return Outcome{Tag: TagInvalid, Reason: fmt.Sprintf(format, args...)}
}

// Retryable reports whether the orchestrator should schedule another pass.
func (o Outcome) Retryable() bool {
	switch o.Tag {
	case TagPending, TagNeedsUpdate, TagSolutionVersionPending:
		return true
	}
	return false
}

func (o Outcome) String() string {
	if o.Reason != "" {
		return fmt.Sprintf("%s: %s", o.Tag, o.Reason)
	}
	return string(o.Tag)
}
