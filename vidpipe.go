// Package vidpipe is a background video upload pipeline for host
// applications: recordings are enqueued as raw segments, optimized by a
// transcode engine, and published to the configured endpoints, with every
// state change persisted so the queue survives restarts.
//
// Open wires the whole pipeline from a config file; the returned Pipeline
// exposes the queue operations and lifecycle. Everything else lives under
// internal/.
package vidpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidpipe/internal/blobstore"
	"vidpipe/internal/config"
	"vidpipe/internal/logging"
	"vidpipe/internal/notifications"
	"vidpipe/internal/pipeline"
	"vidpipe/internal/processor"
	"vidpipe/internal/registry"
	"vidpipe/internal/statestore"
	"vidpipe/internal/transcode"
	"vidpipe/internal/transport"
)

// Record is the host-visible view of a queued upload.
type Record = registry.Record

// Options carries per-upload transcode overrides.
type Options = registry.Options

// Snapshot maps upload ids to their current records.
type Snapshot = registry.Snapshot

// ErrInFlight is returned when discarding an upload that is currently being
// processed or uploaded.
var ErrInFlight = pipeline.ErrInFlight

// Pipeline bundles the running components behind the public queue API.
type Pipeline struct {
	cfg     *config.Config
	logger  *slog.Logger
	manager *pipeline.Manager
	blobs   *blobstore.Store
	state   *statestore.Store
}

// Open loads configuration from path (or the default location when empty)
// and wires the pipeline. Call Start to begin background processing and
// Close to release the stores.
func Open(ctx context.Context, configPath string) (*Pipeline, error) {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	return open(ctx, cfg, logger)
}

// OpenWithConfig wires the pipeline from an already-built config, primarily
// for hosts that manage configuration themselves.
func OpenWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return open(ctx, cfg, logger)
}

func open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	state, err := statestore.Open(cfg.StateStorePath())
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	blobs, err := blobstore.Open(cfg.BlobStorePath())
	if err != nil {
		state.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	reg, err := registry.New(ctx, state, logger)
	if err != nil {
		blobs.Close()
		state.Close()
		return nil, fmt.Errorf("restore upload registry: %w", err)
	}

	engine, err := engineFromConfig(cfg)
	if err != nil {
		blobs.Close()
		state.Close()
		return nil, err
	}

	proc := processor.New(blobs, engine, logger, processor.WithCacheEntries(cfg.Transcode.CacheEntries))
	tc := transport.New(cfg.Endpoints.UploadURL, cfg.Endpoints.MetadataURL, blobs, logger,
		transport.WithTimeout(time.Duration(cfg.Endpoints.RequestTimeout)*time.Second))
	notifier := notifications.NewService(cfg)

	manager, err := pipeline.New(cfg, reg, blobs, proc, tc, notifier, logger)
	if err != nil {
		blobs.Close()
		state.Close()
		return nil, err
	}

	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		blobs:   blobs,
		state:   state,
	}, nil
}

func engineFromConfig(cfg *config.Config) (transcode.Client, error) {
	switch cfg.Transcode.Engine {
	case "", "ffmpeg":
		return transcode.NewFFmpeg(
			transcode.WithBinary(cfg.Transcode.FFmpegBinary),
			transcode.WithPreset(cfg.Transcode.Preset),
		), nil
	case "drapto":
		return transcode.NewDrapto(), nil
	default:
		return nil, fmt.Errorf("unknown transcode engine %q", cfg.Transcode.Engine)
	}
}

// Start begins background processing.
func (p *Pipeline) Start(ctx context.Context) error {
	return p.manager.Start(ctx)
}

// Stop halts background processing. The queue state remains on disk.
func (p *Pipeline) Stop() {
	p.manager.Stop()
}

// Close stops the pipeline and releases both stores.
func (p *Pipeline) Close() error {
	p.manager.Stop()
	blobErr := p.blobs.Close()
	stateErr := p.state.Close()
	return errors.Join(blobErr, stateErr)
}

// Enqueue registers a new upload from raw recording segments.
func (p *Pipeline) Enqueue(ctx context.Context, id, title, description string, opts Options, segments [][]byte) error {
	return p.manager.Enqueue(ctx, id, title, description, opts, segments)
}

// Retry re-queues a failed upload.
func (p *Pipeline) Retry(ctx context.Context, id string) error {
	return p.manager.Retry(ctx, id)
}

// Discard removes a queued upload and its stored data.
func (p *Pipeline) Discard(ctx context.Context, id string) error {
	return p.manager.Discard(ctx, id)
}

// Snapshot returns the current queue state.
func (p *Pipeline) Snapshot() Snapshot {
	return p.manager.Snapshot()
}

// CompletedTitles returns the titles published during this run.
func (p *Pipeline) CompletedTitles() []string {
	return p.manager.CompletedTitles()
}

// TestNotification sends a test notification with the current settings.
func (p *Pipeline) TestNotification(ctx context.Context) error {
	return p.manager.TestNotification(ctx)
}
