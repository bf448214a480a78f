package transcode

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	draptolib "github.com/five82/drapto"
)

// ErrOptionsUnsupported is returned when the Drapto engine receives explicit
// overrides. Drapto chooses quality settings itself from source analysis and
// exposes no per-job knobs.
var ErrOptionsUnsupported = errors.New("drapto engine does not support explicit transcode options")

// Drapto implements Client using the Drapto Go library directly.
type Drapto struct{}

// NewDrapto constructs a Drapto client.
func NewDrapto() *Drapto {
	return &Drapto{}
}

// Transcode encodes a video file using the Drapto library.
func (d *Drapto) Transcode(ctx context.Context, inputPath, outputDir string, opts Options, progress func(ProgressUpdate)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	cleanOutputDir := strings.TrimSpace(outputDir)
	if cleanOutputDir == "" {
		return "", errors.New("output directory required")
	}
	if !opts.IsZero() {
		return "", ErrOptionsUnsupported
	}

	encoder, err := draptolib.New(draptolib.WithResponsive())
	if err != nil {
		return "", err
	}

	var rep draptolib.Reporter
	if progress != nil {
		rep = newProgressReporter(progress)
	}

	if _, err := encoder.EncodeWithReporter(ctx, inputPath, cleanOutputDir, rep); err != nil {
		return "", err
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(cleanOutputDir, stem+".mkv"), nil
}

// progressReporter adapts the Drapto Reporter interface to the ProgressUpdate
// callback. Only events carrying percentage or stage information are
// forwarded; the rest of the reporting surface is dropped.
type progressReporter struct {
	callback func(ProgressUpdate)
}

func newProgressReporter(callback func(ProgressUpdate)) *progressReporter {
	return &progressReporter{callback: callback}
}

func (r *progressReporter) StageProgress(s draptolib.StageProgress) {
	r.callback(ProgressUpdate{Percent: float64(s.Percent), Stage: s.Stage, Message: s.Message})
}

func (r *progressReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.callback(ProgressUpdate{Percent: float64(s.Percent), Stage: "encoding"})
}

func (r *progressReporter) EncodingComplete(draptolib.EncodingOutcome) {
	r.callback(ProgressUpdate{Percent: 100, Stage: "encoding", Message: "complete"})
}

func (r *progressReporter) Hardware(draptolib.HardwareSummary)               {}
func (r *progressReporter) Initialization(draptolib.InitializationSummary)   {}
func (r *progressReporter) CropResult(draptolib.CropSummary)                 {}
func (r *progressReporter) EncodingConfig(draptolib.EncodingConfigSummary)   {}
func (r *progressReporter) EncodingStarted(uint64)                           {}
func (r *progressReporter) ValidationComplete(draptolib.ValidationSummary)   {}
func (r *progressReporter) Warning(string)                                   {}
func (r *progressReporter) Error(draptolib.ReporterError)                    {}
func (r *progressReporter) OperationComplete(string)                         {}
func (r *progressReporter) BatchStarted(draptolib.BatchStartInfo)            {}
func (r *progressReporter) FileProgress(draptolib.FileProgressContext)       {}
func (r *progressReporter) BatchComplete(draptolib.BatchSummary)             {}

var (
	_ Client             = (*Drapto)(nil)
	_ draptolib.Reporter = (*progressReporter)(nil)
)
