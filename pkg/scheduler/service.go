package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/curator-ml/curator/pkg/telemetry"
)

// DeleteSentinel in place of a schedule expression routes an upsert to
// deletion, so a single declarative document can retire tasks.
const DeleteSentinel = "delete"

// Registrar keeps trigger loops in step with the store: Start replaces
// any running trigger for the task, Stop cancels it.
type Registrar interface {
	Start(ctx context.Context, name string)
	Stop(name string)
}

// Service applies task mutations on top of a Store: schedule validation,
// idempotent upserts, trigger registration, and metrics.
type Service struct {
	store     Store
	log       *telemetry.Logger
	metrics   *telemetry.Metrics
	registrar Registrar
	now       func() time.Time
}

func NewService(store Store, log *telemetry.Logger, metrics *telemetry.Metrics) *Service {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Service{
		store:   store,
		log:     log.NewComponentLogger("scheduler"),
		metrics: metrics,
		now:     time.Now,
	}
}

// SetRegistrar wires the trigger loops. Subsequent upserts and deletes
// start and stop triggers alongside the store write.
func (s *Service) SetRegistrar(r Registrar) { s.registrar = r }

func (s *Service) register(ctx context.Context, name string) {
	if s.registrar != nil {
		s.registrar.Start(ctx, name)
	}
}

// Upsert creates the named task or moves it to a new version. A schedule
// equal to DeleteSentinel deletes the task instead. An upsert that
// changes neither schedule nor workflow writes nothing and returns the
// stored task unchanged.
func (s *Service) Upsert(ctx context.Context, name, schedule string, workflow json.RawMessage) (*Task, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if strings.EqualFold(strings.TrimSpace(schedule), DeleteSentinel) {
		return nil, s.Delete(ctx, name)
	}
	if _, err := Parse(schedule); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &Task{
		Name:             name,
		Schedule:         schedule,
		Workflow:         workflow,
		Active:           true,
		NextInvocationID: NewInvocationID(name),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	existing, err := s.store.Latest(ctx, name)
	switch {
	case errors.Is(err, ErrTaskNotFound):
		// First version.
	case err != nil:
		return nil, err
	default:
		if existing.Active && existing.Schedule == schedule && sameWorkflow(existing.Workflow, workflow) {
			s.log.WithTask(name).Debug("task unchanged, skipping write")
			return existing, nil
		}
		task.Version = existing.Version
		task.CreatedAt = existing.CreatedAt
	}

	stored, err := s.store.Put(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("storing task %s: %w", name, err)
	}
	if stored.Version == 1 {
		s.metrics.TaskCreated()
	}
	s.log.WithTask(name).WithField("version", stored.Version).Info("task stored")
	s.register(ctx, name)
	return stored, nil
}

// Read returns the latest version of the named task.
func (s *Service) Read(ctx context.Context, name string) (*Task, error) {
	return s.store.Latest(ctx, name)
}

// ReadVersion returns one historical snapshot.
func (s *Service) ReadVersion(ctx context.Context, name string, version int) (*Task, error) {
	return s.store.Version(ctx, name, version)
}

// Delete removes the named task and its history. Deleting an absent
// task succeeds silently.
func (s *Service) Delete(ctx context.Context, name string) error {
	removed, err := s.store.Delete(ctx, name)
	if err != nil {
		return err
	}
	if removed {
		if s.registrar != nil {
			s.registrar.Stop(name)
		}
		s.metrics.TaskDeleted()
		s.log.WithTask(name).Info("task deleted")
	}
	return nil
}

// List returns every stored task name once, sorted.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.store.Names(ctx)
}

// sameWorkflow compares workflow documents structurally so formatting
// differences do not force a new version.
func sameWorkflow(a, b json.RawMessage) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == 0 && len(b) == 0
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return bytes.Equal(a, b)
	}
	return equalValues(av, bv)
}

func equalValues(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
