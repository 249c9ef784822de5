package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/curator-ml/curator/pkg/config"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// Starter adapts the orchestrator to the scheduler's trigger loop:
// validate the stored workflow document, then converge it. Invocation
// identifiers are spent on first use, so a replayed trigger starts
// nothing.
type Starter struct {
	orch      *Orchestrator
	validator *config.Validator
	log       *telemetry.Logger

	mu    sync.Mutex
	spent map[string]bool
}

func NewStarter(orch *Orchestrator, log *telemetry.Logger) *Starter {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Starter{
		orch:      orch,
		validator: config.NewValidator(),
		log:       log.NewComponentLogger("starter"),
		spent:     make(map[string]bool),
	}
}

func (s *Starter) StartWorkflow(ctx context.Context, invocationID string, workflow json.RawMessage) error {
	if invocationID != "" {
		s.mu.Lock()
		if s.spent[invocationID] {
			s.mu.Unlock()
			s.log.WithField("invocation", invocationID).Info("duplicate invocation, ignoring")
			return nil
		}
		s.spent[invocationID] = true
		s.mu.Unlock()
	}

	doc, errs := s.validator.Validate(workflow)
	if len(errs) > 0 {
		return fmt.Errorf("workflow document invalid: %s", strings.Join(errs, "; "))
	}
	if _, err := s.orch.Converge(ctx, doc); err != nil {
		return err
	}
	return nil
}
