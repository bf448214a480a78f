// Package pipeline coordinates the background upload workflow: it watches the
// registry for dispatchable uploads, runs them one at a time through the
// processor and transport, and exposes the queue operations callers use to
// enqueue, retry, and discard uploads. A file lock enforces a single running
// pipeline per data directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidpipe/internal/blobstore"
	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/notifications"
	"vidpipe/internal/processor"
	"vidpipe/internal/registry"
	"vidpipe/internal/sequencer"
	"vidpipe/internal/transport"
)

// ErrInFlight is returned when a discard targets the upload currently being
// processed or uploaded.
var ErrInFlight = errors.New("upload is in flight")

// Manager owns the background loop and the public queue operations.
type Manager struct {
	cfg       *config.Config
	registry  *registry.Registry
	blobs     *blobstore.Store
	processor *processor.Processor
	transport *transport.Client
	seq       *sequencer.Sequencer
	notifier  notifications.Service
	logger    *slog.Logger

	lockPath string
	lock     *flock.Flock

	// lifeMu serializes Start and Stop; running stays atomic so Running and
	// the run loop read it without the lifecycle lock.
	lifeMu  sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu          sync.Mutex
	published   int
	failed      int
	queueStart  time.Time
	queueActive bool
}

// New constructs a Manager wired to the given components.
func New(cfg *config.Config, reg *registry.Registry, blobs *blobstore.Store, proc *processor.Processor, tc *transport.Client, notifier notifications.Service, logger *slog.Logger) (*Manager, error) {
	if cfg == nil || reg == nil || blobs == nil || proc == nil || tc == nil {
		return nil, errors.New("pipeline requires config, registry, blob store, processor, and transport")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	return &Manager{
		cfg:       cfg,
		registry:  reg,
		blobs:     blobs,
		processor: proc,
		transport: tc,
		seq:       sequencer.New(),
		notifier:  notifier,
		logger:    logger.With(logging.String(logging.FieldActor, "pipeline")),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the background loop. Safe for
// concurrent callers; at most one loop runs.
func (m *Manager) Start(ctx context.Context) error {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.running.Load() {
		return errors.New("pipeline already running")
	}

	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another pipeline instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running.Store(true)

	m.wg.Add(1)
	go m.run(runCtx)

	m.logger.Info("pipeline started", logging.String("lock", m.lockPath))
	return nil
}

// Stop terminates the background loop and releases the instance lock.
func (m *Manager) Stop() {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if !m.running.Load() {
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.wg.Wait()
	if err := m.lock.Unlock(); err != nil {
		m.logger.Warn("failed to release pipeline lock", logging.Error(err))
	}
	m.running.Store(false)
	m.logger.Info("pipeline stopped")
}

// Running reports whether the background loop is active.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// Enqueue stores the recording segments and registers a pending upload. The
// background loop picks it up on the next registry signal.
func (m *Manager) Enqueue(ctx context.Context, id, title, description string, opts registry.Options, segments [][]byte) error {
	if len(segments) == 0 {
		return errors.New("at least one segment is required")
	}
	if _, exists := m.registry.Get(id); exists {
		return registry.ErrDuplicateID
	}
	if err := m.blobs.PutSegments(id, segments); err != nil {
		return fmt.Errorf("store segments: %w", err)
	}
	if err := m.registry.Enqueue(ctx, id, title, description, opts); err != nil {
		if cleanupErr := m.blobs.RemoveUpload(id); cleanupErr != nil {
			m.logger.Warn("failed to clean up segments after enqueue failure", logging.Error(cleanupErr))
		}
		return err
	}
	return nil
}

// Retry flips a failed upload back to pending.
func (m *Manager) Retry(ctx context.Context, id string) error {
	return m.registry.Retry(ctx, id)
}

// Discard removes an upload and its stored blobs. In-flight uploads cannot be
// discarded; callers must wait for the attempt to settle.
func (m *Manager) Discard(ctx context.Context, id string) error {
	if current, ok := m.seq.InFlight(); ok && current == id {
		return ErrInFlight
	}
	m.seq.Cancel(id)
	rec, ok := m.registry.Get(id)
	if ok {
		m.processor.Forget(id, rec.Options)
	}
	if err := m.registry.Discard(ctx, id); err != nil {
		return err
	}
	if err := m.blobs.RemoveUpload(id); err != nil {
		m.logger.Warn("failed to remove discarded blobs", logging.Error(err))
	}
	return nil
}

// Snapshot returns the current registry view.
func (m *Manager) Snapshot() registry.Snapshot {
	return m.registry.Snapshot()
}

// CompletedTitles returns the titles published during this run.
func (m *Manager) CompletedTitles() []string {
	return m.registry.CompletedTitles()
}

// TestNotification triggers a test notification using the current configuration.
func (m *Manager) TestNotification(ctx context.Context) error {
	return m.notifier.TestNotification(ctx)
}
