// Package ingest watches a drop directory for desired-state documents
// and feeds them to the workflow starter, mirroring an event-driven
// bucket upload trigger for local filesystems.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/curator-ml/curator/pkg/config"
	"github.com/curator-ml/curator/pkg/telemetry"
)

// Handler receives a validated document as a raw workflow payload. The
// invocation identifier is stable per file content, so handlers that
// track spent invocations absorb duplicate filesystem events.
type Handler interface {
	StartWorkflow(ctx context.Context, invocationID string, workflow json.RawMessage) error
}

// Watcher validates and dispatches .json documents dropped into a
// directory.
type Watcher struct {
	dir       string
	handler   Handler
	validator *config.Validator
	log       *telemetry.Logger

	// OnInvalid, when set, is called with the validation errors of a
	// rejected document.
	OnInvalid func(path string, errs []string)

	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(dir string, handler Handler, log *telemetry.Logger) *Watcher {
	if log == nil {
		log = telemetry.Nop()
	}
	return &Watcher{
		dir:       dir,
		handler:   handler,
		validator: config.NewValidator(),
		log:       log.NewComponentLogger("ingest"),
		debounce:  200 * time.Millisecond,
		timers:    make(map[string]*time.Timer),
	}
}

// SetDebounce adjusts the settle delay between a write event and
// processing, mainly for tests.
func (w *Watcher) SetDebounce(d time.Duration) { w.debounce = d }

// Run processes documents already present in the directory, then blocks
// watching for new ones until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.processExisting(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	w.watcher = watcher

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.log.WithField("dir", w.dir).Info("Watching for documents")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Error("Watcher error")
		}
	}
}

// schedule debounces per file so a document written in several chunks
// is processed once.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.Process(ctx, path)
	})
}

func (w *Watcher) processExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		w.Process(ctx, filepath.Join(w.dir, e.Name()))
	}
	return nil
}

// Process validates one document file and hands it to the handler.
// Failures are logged and reported through OnInvalid, never returned;
// one bad drop must not stop the watch loop.
func (w *Watcher) Process(ctx context.Context, path string) {
	log := w.log.WithField("path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Error("Failed to read document")
		return
	}

	if _, errs := w.validator.Validate(data); len(errs) > 0 {
		for _, msg := range errs {
			log.WithField("error", msg).Warn("Document rejected")
		}
		if w.OnInvalid != nil {
			w.OnInvalid(path, errs)
		}
		return
	}

	id := invocationID(path, data)
	log.WithField("invocation", id).Info("Starting workflow")
	if err := w.handler.StartWorkflow(ctx, id, data); err != nil {
		log.WithError(err).Error("Workflow failed")
	}
}

// invocationID derives a stable identifier from the file name and its
// content, so an unchanged re-drop is deduplicated downstream.
func invocationID(path string, data []byte) string {
	base := strings.TrimSuffix(filepath.Base(path), ".json")
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s-%x", base, sum[:6])
}
