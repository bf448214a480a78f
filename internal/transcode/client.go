// Package transcode abstracts the video optimization engines behind a single
// client interface. Two implementations exist: an FFmpeg CLI shell-out that
// honors explicit per-upload options, and the Drapto library encoder which
// applies its own adaptive quality policy.
package transcode

import "context"

// ProgressUpdate captures engine progress events.
type ProgressUpdate struct {
	Percent float64
	Stage   string
	Message string
}

// Options carries the per-job overrides of the engine defaults. Zero values
// mean "engine default".
type Options struct {
	Bitrate   int
	Preset    string
	Resize    string
	TrimStart float64
	TrimEnd   float64
	Watermark string
}

// IsZero reports whether every override is unset.
func (o Options) IsZero() bool {
	return o == Options{}
}

// Client defines transcode engine behaviour. Transcode reads inputPath,
// writes the optimized file into outputDir, and returns the output path.
type Client interface {
	Transcode(ctx context.Context, inputPath, outputDir string, opts Options, progress func(ProgressUpdate)) (string, error)
}

// DefaultBitrate returns the default target bitrate ceiling in kbit/s for a
// source of the given byte size. Larger sources get a lower ceiling: the
// policy bounds output size rather than quality loss.
func DefaultBitrate(sourceBytes int64) int {
	const mib = 1 << 20
	switch {
	case sourceBytes <= 50*mib:
		return 4000
	case sourceBytes <= 200*mib:
		return 2500
	case sourceBytes <= 500*mib:
		return 1500
	default:
		return 1000
	}
}
