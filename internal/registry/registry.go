// Package registry holds the authoritative in-memory map of upload records
// and mirrors every mutation to the durable queue-state store. Mutating
// operations referencing an unknown id are silent no-ops so stale worker
// messages cannot corrupt state.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"vidpipe/internal/logging"
	"vidpipe/internal/statestore"
)

// ErrDuplicateID is returned when enqueueing an id that is already present.
var ErrDuplicateID = errors.New("upload id already enqueued")

// Snapshot is a point-in-time copy of the registry contents.
type Snapshot map[string]Record

// Registry is the authoritative upload state container.
type Registry struct {
	mu        sync.Mutex
	store     *statestore.Store
	records   map[string]*Record
	completed []string
	subs      []chan struct{}
	logger    *slog.Logger
	nextSeq   uint64
}

// New constructs a registry seeded from the queue-state store. Malformed
// stored records are dropped; a damaged store yields an empty registry.
func New(ctx context.Context, store *statestore.Store, logger *slog.Logger) (*Registry, error) {
	if store == nil {
		return nil, errors.New("registry requires a state store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	r := &Registry{
		store:   store,
		records: make(map[string]*Record),
		logger:  logger.With(logging.String(logging.FieldActor, "registry")),
	}

	persisted, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed registry: %w", err)
	}
	for id, raw := range persisted {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			r.logger.Warn("dropping malformed persisted record", logging.String(logging.FieldUploadID, id), logging.Error(err))
			continue
		}
		if _, ok := ParseStatus(string(rec.Status)); !ok {
			r.logger.Warn("dropping record with unknown status", logging.String(logging.FieldUploadID, id), logging.String(logging.FieldStatus, string(rec.Status)))
			continue
		}
		rec.ID = id
		// Interrupted work from the previous run restarts from the queue.
		if rec.Status == StatusProcessing || rec.Status == StatusUploading {
			rec.Status = StatusPending
			rec.Progress = nil
		}
		cp := rec
		r.records[id] = &cp
		if rec.Seq >= r.nextSeq {
			r.nextSeq = rec.Seq + 1
		}
	}
	if len(r.records) > 0 {
		r.logger.Info("registry recovered persisted uploads", logging.Int("count", len(r.records)))
	}
	return r, nil
}

// Subscribe returns a channel that receives a signal after every mutation.
// Signals are coalesced: a slow consumer sees at least one signal for any
// burst of mutations and pulls the current state via Snapshot.
func (r *Registry) Subscribe() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan struct{}, 1)
	r.subs = append(r.subs, ch)
	return ch
}

// Snapshot returns a deep copy of all records.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(Snapshot, len(r.records))
	for id, rec := range r.records {
		snap[id] = rec.Clone()
	}
	return snap
}

// Get returns a copy of one record.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.Clone(), true
}

// CompletedTitles returns the titles that finished during this process
// lifetime, oldest first. The list is not persisted.
func (r *Registry) CompletedTitles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.completed))
	copy(out, r.completed)
	return out
}

// Enqueue creates a pending record for the given id and persists it.
func (r *Registry) Enqueue(ctx context.Context, id, title, description string, opts Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == "" {
		return errors.New("upload id required")
	}
	if _, exists := r.records[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.records[id] = &Record{
		ID:          id,
		Status:      StatusPending,
		Title:       title,
		Description: description,
		Options:     opts,
		CreatedAt:   time.Now().UTC(),
		Seq:         r.claimSeqLocked(),
	}
	return r.persistAndNotifyLocked(ctx)
}

// MarkProcessing transitions a record to processing. Unknown ids are no-ops.
func (r *Registry) MarkProcessing(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(rec *Record) {
		rec.Status = StatusProcessing
		rec.Progress = nil
		rec.Error = ""
	})
}

// MarkUploading transitions a record to uploading and resets progress for the
// upload phase.
func (r *Registry) MarkUploading(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(rec *Record) {
		rec.Status = StatusUploading
		zero := 0
		rec.Progress = &zero
	})
}

// UpdateProgress records a progress percentage. Values are clamped to
// [0,100] and regressions within an attempt are ignored so reported progress
// stays monotonic.
func (r *Registry) UpdateProgress(ctx context.Context, id string, progress int) error {
	return r.mutate(ctx, id, func(rec *Record) {
		if progress < 0 {
			progress = 0
		}
		if progress > 100 {
			progress = 100
		}
		if rec.Progress != nil && progress < *rec.Progress {
			return
		}
		rec.Progress = &progress
	})
}

// MarkFailed records a terminal failure reason for the current attempt.
func (r *Registry) MarkFailed(ctx context.Context, id, reason string) error {
	return r.mutate(ctx, id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.Error = reason
	})
}

// MarkSucceeded removes the record. Re-delivery for an already-removed id is
// a no-op. The caller is responsible for pairing this with blob cleanup.
func (r *Registry) MarkSucceeded(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	r.completed = append(r.completed, rec.Title)
	delete(r.records, id)
	return r.persistAndNotifyLocked(ctx)
}

// Retry resubmits a failed record: status returns to pending, progress and
// error reset, and a fresh dispatch sequence places it behind every upload
// enqueued since it failed. Records not in the failed state are left
// untouched.
func (r *Registry) Retry(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(rec *Record) {
		if rec.Status != StatusFailed {
			return
		}
		rec.Status = StatusPending
		rec.Progress = nil
		rec.Error = ""
		rec.Seq = r.claimSeqLocked()
	})
}

// Discard removes a record without uploading it. The caller pairs this with
// blob cleanup, as with MarkSucceeded.
func (r *Registry) Discard(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return nil
	}
	delete(r.records, id)
	return r.persistAndNotifyLocked(ctx)
}

// PendingIDs returns ids awaiting dispatch in sequence order. Failed records
// are excluded until an explicit retry flips them back to pending; a retried
// record carries a new sequence, so it sorts behind younger pending work.
func (r *Registry) PendingIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	type pair struct {
		id  string
		seq uint64
	}
	var eligible []pair
	for id, rec := range r.records {
		if rec.Status == StatusPending {
			eligible = append(eligible, pair{id, rec.Seq})
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].seq < eligible[j].seq })
	out := make([]string, len(eligible))
	for i, p := range eligible {
		out[i] = p.id
	}
	return out
}

func (r *Registry) claimSeqLocked() uint64 {
	seq := r.nextSeq
	r.nextSeq++
	return seq
}

func (r *Registry) mutate(ctx context.Context, id string, apply func(*Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		// Stale or duplicate message; deliberately not an error.
		return nil
	}
	apply(rec)
	return r.persistAndNotifyLocked(ctx)
}

func (r *Registry) persistAndNotifyLocked(ctx context.Context) error {
	snapshot := make(map[string]json.RawMessage, len(r.records))
	for id, rec := range r.records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %q: %w", id, err)
		}
		snapshot[id] = raw
	}
	if err := r.store.Save(ctx, snapshot); err != nil {
		return err
	}
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}
