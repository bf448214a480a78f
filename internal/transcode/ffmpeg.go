package transcode

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// FFmpegOption configures the FFmpeg client.
type FFmpegOption func(*FFmpeg)

// WithBinary overrides the default ffmpeg binary name.
func WithBinary(binary string) FFmpegOption {
	return func(c *FFmpeg) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithProbeBinary overrides the default ffprobe binary name.
func WithProbeBinary(binary string) FFmpegOption {
	return func(c *FFmpeg) {
		if binary != "" {
			c.probeBinary = binary
		}
	}
}

// WithPreset sets the encoder preset used when a job carries no override.
func WithPreset(preset string) FFmpegOption {
	return func(c *FFmpeg) {
		if preset != "" {
			c.preset = preset
		}
	}
}

// FFmpeg wraps the ffmpeg command-line encoder. It is the default engine
// and honors every per-upload override.
type FFmpeg struct {
	binary      string
	probeBinary string
	preset      string
}

// NewFFmpeg constructs an FFmpeg client using defaults.
func NewFFmpeg(opts ...FFmpegOption) *FFmpeg {
	cli := &FFmpeg{binary: "ffmpeg", probeBinary: "ffprobe", preset: "medium"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Transcode runs ffmpeg over inputPath and returns the output path.
func (c *FFmpeg) Transcode(ctx context.Context, inputPath, outputDir string, opts Options, progress func(ProgressUpdate)) (string, error) {
	if inputPath == "" {
		return "", errors.New("input path required")
	}
	cleanOutputDir := strings.TrimSpace(outputDir)
	if cleanOutputDir == "" {
		return "", errors.New("output directory required")
	}

	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	outputPath := filepath.Join(cleanOutputDir, stem+".mp4")

	bitrate := opts.Bitrate
	if bitrate <= 0 {
		var size int64
		if info, err := os.Stat(inputPath); err == nil {
			size = info.Size()
		}
		bitrate = DefaultBitrate(size)
	}

	duration := c.probeDuration(ctx, inputPath)
	if opts.TrimEnd > 0 && (duration == 0 || opts.TrimEnd < duration) {
		duration = opts.TrimEnd
	}
	if opts.TrimStart > 0 && opts.TrimStart < duration {
		duration -= opts.TrimStart
	}

	if opts.Preset == "" {
		opts.Preset = c.preset
	}
	args := buildFFmpegArgs(inputPath, outputPath, opts, bitrate)
	cmd := commandContext(ctx, c.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		if progress == nil {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			micros, err := strconv.ParseInt(value, 10, 64)
			if err != nil || duration <= 0 {
				continue
			}
			percent := float64(micros) / 1e6 / duration * 100
			if percent > 100 {
				percent = 100
			}
			progress(ProgressUpdate{Percent: percent, Stage: "transcoding"})
		case "progress":
			if value == "end" {
				progress(ProgressUpdate{Percent: 100, Stage: "transcoding", Message: "complete"})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(detail))
		}
		return "", fmt.Errorf("ffmpeg failed: %w", err)
	}

	return outputPath, nil
}

// probeDuration returns the source duration in seconds, or 0 when it cannot
// be determined. Progress reporting degrades to the completion event only.
func (c *FFmpeg) probeDuration(ctx context.Context, inputPath string) float64 {
	cmd := commandContext(ctx, c.probeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	) //nolint:gosec
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || duration < 0 {
		return 0
	}
	return duration
}

func buildFFmpegArgs(inputPath, outputPath string, opts Options, bitrate int) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", inputPath}

	if opts.TrimStart > 0 {
		args = append(args, "-ss", formatSeconds(opts.TrimStart))
	}
	if opts.TrimEnd > 0 {
		args = append(args, "-to", formatSeconds(opts.TrimEnd))
	}

	var filters []string
	if opts.Resize != "" {
		filters = append(filters, "scale="+strings.ReplaceAll(opts.Resize, "x", ":"))
	}
	if opts.Watermark != "" {
		filters = append(filters, fmt.Sprintf("drawtext=text='%s':fontcolor=white:fontsize=24:x=10:y=h-th-10", escapeDrawtext(opts.Watermark)))
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	preset := opts.Preset
	if preset == "" {
		preset = "medium"
	}
	rate := strconv.Itoa(bitrate) + "k"
	args = append(args,
		"-c:v", "libx264",
		"-preset", preset,
		"-b:v", rate,
		"-maxrate", rate,
		"-bufsize", strconv.Itoa(bitrate*2)+"k",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		"-nostats",
	)
	return append(args, outputPath)
}

func formatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', -1, 64)
}

// escapeDrawtext escapes the characters drawtext treats specially inside a
// single-quoted text argument.
func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	return replacer.Replace(text)
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}

var _ Client = (*FFmpeg)(nil)
