package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"vidpipe/internal/logging"
	"vidpipe/internal/registry"
	"vidpipe/internal/services"
)

// runJob drives a single upload through both phases. Any error or panic
// settles the record as failed with a classified reason; the job never takes
// the loop down with it.
func (m *Manager) runJob(ctx context.Context, id string) {
	rec, ok := m.registry.Get(id)
	if !ok || rec.Status != registry.StatusPending {
		return
	}

	attemptID := uuid.NewString()
	jobCtx := services.WithUploadID(ctx, id)
	jobCtx = services.WithRequestID(jobCtx, attemptID)
	logger := m.logger.With(
		logging.String(logging.FieldUploadID, id),
		logging.String(logging.FieldCorrelationID, attemptID),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("job panicked: %v", r)
			logger.Error("upload job panicked", logging.Error(err))
			m.failJob(jobCtx, logger, rec, services.Wrap(services.ErrProcessing, "pipeline", "job", "unexpected panic", err))
		}
	}()

	if err := m.registry.MarkProcessing(jobCtx, id); err != nil {
		logger.Error("failed to mark processing", logging.Error(err))
		return
	}
	logger.Info("upload dispatched", logging.String("title", rec.Title))
	if err := m.notifier.NotifyUploadStarted(jobCtx, rec.Title); err != nil {
		logger.Warn("start notification failed", logging.Error(err))
	}

	sampler := logging.NewProgressSampler(5)
	report := func(percent int, stage string) {
		if !sampler.ShouldReport(float64(percent), stage) {
			return
		}
		if err := m.registry.UpdateProgress(jobCtx, id, percent); err != nil {
			logger.Warn("failed to record progress", logging.Error(err))
		}
		if err := m.notifier.NotifyUploadProgress(jobCtx, rec.Title, percent, stage); err != nil {
			logger.Warn("progress notification failed", logging.Error(err))
		}
	}

	if _, err := m.processor.Process(jobCtx, id, rec.Options, report); err != nil {
		m.failJob(jobCtx, logger, rec, err)
		return
	}

	if err := m.registry.MarkUploading(jobCtx, id); err != nil {
		logger.Error("failed to mark uploading", logging.Error(err))
		return
	}
	sampler.Reset()

	if err := m.transport.Publish(jobCtx, rec, func(percent int) {
		report(percent, "uploading")
	}); err != nil {
		m.failJob(jobCtx, logger, rec, err)
		return
	}

	if err := m.registry.MarkSucceeded(jobCtx, id); err != nil {
		logger.Error("failed to mark succeeded", logging.Error(err))
		return
	}
	m.mu.Lock()
	m.published++
	m.mu.Unlock()

	logger.Info("upload published", logging.String("title", rec.Title))
	if err := m.notifier.NotifyUploadCompleted(jobCtx, rec.Title); err != nil {
		logger.Warn("completion notification failed", logging.Error(err))
	}
}

func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, rec registry.Record, jobErr error) {
	reason := services.Reason(jobErr)
	logger.Error("upload failed",
		logging.String("reason", reason),
		logging.Error(jobErr),
	)
	if err := m.registry.MarkFailed(ctx, rec.ID, reason); err != nil {
		logger.Error("failed to persist failure", logging.Error(err))
	}
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()

	if err := m.notifier.NotifyUploadFailed(ctx, rec.Title, reason); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}
