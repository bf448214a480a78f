package pipeline

import (
	"context"
	"time"

	"vidpipe/internal/logging"
)

// run is the background loop. It wakes on registry signals, merges the
// dispatchable snapshot into the sequencer, and drains it one job at a time.
func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	signal := m.registry.Subscribe()
	for {
		m.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-signal:
		}
	}
}

func (m *Manager) drain(ctx context.Context) {
	m.seq.Offer(m.registry.PendingIDs())
	for {
		if ctx.Err() != nil {
			return
		}
		id, ok := m.seq.Next()
		if !ok {
			break
		}
		m.noteQueueStarted()
		m.runJob(ctx, id)
		m.seq.Done(id)
		// A job may have enqueued or retried work while it ran.
		m.seq.Offer(m.registry.PendingIDs())
	}
	m.noteQueueDrained(ctx)
}

func (m *Manager) noteQueueStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.queueActive {
		m.queueActive = true
		m.queueStart = time.Now()
		m.published = 0
		m.failed = 0
	}
}

func (m *Manager) noteQueueDrained(ctx context.Context) {
	m.mu.Lock()
	active := m.queueActive
	published := m.published
	failed := m.failed
	start := m.queueStart
	if active && m.seq.Drained() {
		m.queueActive = false
	} else {
		active = false
	}
	m.mu.Unlock()

	if !active || ctx.Err() != nil {
		return
	}
	if err := m.notifier.NotifyQueueDrained(ctx, published, failed, time.Since(start)); err != nil {
		m.logger.Warn("queue drained notification failed", logging.Error(err))
	}
}
