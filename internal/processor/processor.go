// Package processor turns stored recording segments into a single optimized
// video blob. It merges segments, runs the configured transcode engine over a
// scratch directory, and memoizes recent results so retries with unchanged
// options are free.
package processor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"vidpipe/internal/blobstore"
	"vidpipe/internal/logging"
	"vidpipe/internal/registry"
	"vidpipe/internal/services"
	"vidpipe/internal/transcode"
)

// mergePortion is the share of the progress range attributed to segment
// merging; the engine's own percentage fills the remainder.
const mergePortion = 10

// Option configures the Processor.
type Option func(*Processor)

// WithCacheEntries overrides the result cache capacity.
func WithCacheEntries(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.cache = newResultCache(n)
		}
	}
}

// WithWorkDir overrides the scratch directory root.
func WithWorkDir(dir string) Option {
	return func(p *Processor) {
		if dir != "" {
			p.workDir = dir
		}
	}
}

// Processor optimizes uploads one at a time.
type Processor struct {
	blobs   *blobstore.Store
	client  transcode.Client
	cache   *resultCache
	logger  *slog.Logger
	workDir string
}

// New constructs a Processor backed by the given blob store and engine.
func New(blobs *blobstore.Store, client transcode.Client, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Processor{
		blobs:   blobs,
		client:  client,
		cache:   newResultCache(5),
		logger:  logger.With(logging.String(logging.FieldActor, "processor")),
		workDir: os.TempDir(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process merges and transcodes the stored segments for id and persists the
// result under the optimized blob key, which it returns. Progress runs from 0
// to 100 across both phases and never regresses.
func (p *Processor) Process(ctx context.Context, id string, opts registry.Options, progress func(percent int, stage string)) (string, error) {
	report := func(percent int, stage string) {
		if progress != nil {
			progress(percent, stage)
		}
	}
	logger := p.logger.With(logging.String(logging.FieldUploadID, id))
	outputKey := blobstore.OptimizedKey(id)

	cacheKey := id + "|" + opts.Key()
	if payload, ok := p.cache.Get(cacheKey); ok {
		if err := p.blobs.Put(outputKey, payload); err != nil {
			return "", services.Wrap(services.ErrProcessing, "processor", "cache restore", "failed to persist cached result", err)
		}
		logger.Info("serving optimization from cache", logging.Int("bytes", len(payload)))
		report(100, "transcoding")
		return outputKey, nil
	}

	report(0, "merging segments")
	merged, err := p.mergeSegments(id)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrProcessing, "processor", "merge", "optimization canceled", err)
	}
	report(mergePortion, "merging segments")
	logger.Info("merged recording segments", logging.Int("bytes", len(merged)))

	scratch, err := os.MkdirTemp(p.workDir, "vidpipe-process-")
	if err != nil {
		return "", services.Wrap(services.ErrProcessing, "processor", "scratch", "failed to create scratch directory", err)
	}
	defer os.RemoveAll(scratch)

	inputPath := filepath.Join(scratch, id+".webm")
	if err := os.WriteFile(inputPath, merged, 0o600); err != nil {
		return "", services.Wrap(services.ErrProcessing, "processor", "scratch", "failed to stage merged source", err)
	}
	outputDir := filepath.Join(scratch, "optimized")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrProcessing, "processor", "scratch", "failed to create output directory", err)
	}

	sampler := logging.NewProgressSampler(5)
	outputPath, err := p.client.Transcode(ctx, inputPath, outputDir, engineOptions(opts), func(update transcode.ProgressUpdate) {
		percent := mergePortion + int(update.Percent*(100-mergePortion)/100)
		report(percent, "transcoding")
		if sampler.ShouldReport(update.Percent, update.Stage) {
			logger.Info("transcode progress",
				logging.Float64(logging.FieldProgress, update.Percent),
				logging.String("engine_stage", update.Stage),
			)
		}
	})
	if err != nil {
		return "", services.Wrap(services.ErrProcessing, "processor", "transcode", "video optimization failed", err)
	}

	optimized, err := os.ReadFile(outputPath)
	if err != nil {
		return "", services.Wrap(services.ErrProcessing, "processor", "transcode", "failed to read optimized output", err)
	}
	if err := p.blobs.Put(outputKey, optimized); err != nil {
		return "", services.Wrap(services.ErrProcessing, "processor", "persist", "failed to store optimized result", err)
	}

	p.cache.Add(cacheKey, optimized)
	report(100, "transcoding")
	logger.Info("optimization complete",
		logging.Int("source_bytes", len(merged)),
		logging.Int("optimized_bytes", len(optimized)),
	)
	return outputKey, nil
}

// Forget drops any cached results for id. Called when an upload is discarded
// so a later reuse of the id cannot observe stale output.
func (p *Processor) Forget(id string, opts registry.Options) {
	p.cache.Remove(id + "|" + opts.Key())
}

func (p *Processor) mergeSegments(id string) ([]byte, error) {
	segments, err := p.blobs.Segments(id)
	if err != nil {
		return nil, services.Wrap(services.ErrProcessing, "processor", "merge", "failed to load segments", err)
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrMissingSource, "processor", "merge", "no recording segments stored", nil)
	}
	total := 0
	for _, segment := range segments {
		total += len(segment)
	}
	merged := make([]byte, 0, total)
	for _, segment := range segments {
		merged = append(merged, segment...)
	}
	return merged, nil
}

func engineOptions(opts registry.Options) transcode.Options {
	return transcode.Options{
		Bitrate:   opts.Bitrate,
		Preset:    opts.Preset,
		Resize:    opts.Resize,
		TrimStart: opts.TrimStart,
		TrimEnd:   opts.TrimEnd,
		Watermark: opts.Watermark,
	}
}
