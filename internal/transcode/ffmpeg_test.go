package transcode

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFFmpegWithBinary(t *testing.T) {
	cli := NewFFmpeg(WithBinary("/opt/ffmpeg"), WithProbeBinary("/opt/ffprobe"))
	if cli.binary != "/opt/ffmpeg" {
		t.Fatalf("expected binary override to be applied, got %q", cli.binary)
	}
	if cli.probeBinary != "/opt/ffprobe" {
		t.Fatalf("expected probe binary override to be applied, got %q", cli.probeBinary)
	}
}

func TestFFmpegTranscodeRequiresInput(t *testing.T) {
	cli := NewFFmpeg()
	if _, err := cli.Transcode(context.Background(), "", "/tmp", Options{}, nil); err == nil {
		t.Fatal("expected error when input path is empty")
	}
}

func TestFFmpegTranscodeRequiresOutputDir(t *testing.T) {
	cli := NewFFmpeg()
	if _, err := cli.Transcode(context.Background(), "/media/clip.webm", "", Options{}, nil); err == nil {
		t.Fatal("expected error when output directory is empty")
	}
}

func TestBuildFFmpegArgsDefaults(t *testing.T) {
	args := buildFFmpegArgs("/in/clip.webm", "/out/clip.mp4", Options{}, 2500)

	if idx := findArg(args, "-b:v"); idx == -1 || args[idx+1] != "2500k" {
		t.Fatalf("expected -b:v 2500k, got %v", args)
	}
	if idx := findArg(args, "-preset"); idx == -1 || args[idx+1] != "medium" {
		t.Fatalf("expected default preset medium, got %v", args)
	}
	if findArg(args, "-vf") != -1 {
		t.Fatalf("expected no filter chain without resize or watermark, got %v", args)
	}
	if findArg(args, "-ss") != -1 || findArg(args, "-to") != -1 {
		t.Fatalf("expected no trim flags, got %v", args)
	}
	if args[len(args)-1] != "/out/clip.mp4" {
		t.Fatalf("expected output path last, got %v", args)
	}
}

func TestBuildFFmpegArgsOverrides(t *testing.T) {
	opts := Options{
		Preset:    "fast",
		Resize:    "1280x720",
		TrimStart: 2.5,
		TrimEnd:   10,
		Watermark: "demo: 100%",
	}
	args := buildFFmpegArgs("/in/clip.webm", "/out/clip.mp4", opts, 4000)

	if idx := findArg(args, "-ss"); idx == -1 || args[idx+1] != "2.5" {
		t.Fatalf("expected -ss 2.5, got %v", args)
	}
	if idx := findArg(args, "-to"); idx == -1 || args[idx+1] != "10" {
		t.Fatalf("expected -to 10, got %v", args)
	}
	if idx := findArg(args, "-preset"); idx == -1 || args[idx+1] != "fast" {
		t.Fatalf("expected preset fast, got %v", args)
	}

	idx := findArg(args, "-vf")
	if idx == -1 {
		t.Fatalf("expected filter chain, got %v", args)
	}
	chain := args[idx+1]
	if !strings.Contains(chain, "scale=1280:720") {
		t.Fatalf("expected scale filter, got %q", chain)
	}
	if !strings.Contains(chain, `drawtext=text='demo\: 100\%'`) {
		t.Fatalf("expected escaped drawtext filter, got %q", chain)
	}
}

func TestDefaultBitrateLadder(t *testing.T) {
	const mib = 1 << 20
	cases := []struct {
		bytes int64
		want  int
	}{
		{10 * mib, 4000},
		{50 * mib, 4000},
		{120 * mib, 2500},
		{400 * mib, 1500},
		{900 * mib, 1000},
	}
	for _, tc := range cases {
		if got := DefaultBitrate(tc.bytes); got != tc.want {
			t.Fatalf("DefaultBitrate(%d) = %d, want %d", tc.bytes, got, tc.want)
		}
	}
}

func TestFFmpegTranscodeSuccess(t *testing.T) {
	setHelperCommand(t, "success")

	cli := NewFFmpeg()
	tempDir := t.TempDir()
	input := filepath.Join(tempDir, "clip.webm")
	if err := os.WriteFile(input, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	outputDir := filepath.Join(tempDir, "optimized")

	var updates []ProgressUpdate
	path, err := cli.Transcode(context.Background(), input, outputDir, Options{}, func(update ProgressUpdate) {
		updates = append(updates, update)
	})
	if err != nil {
		t.Fatalf("Transcode returned error: %v", err)
	}
	if want := filepath.Join(outputDir, "clip.mp4"); path != want {
		t.Fatalf("expected output path %q, got %q", want, path)
	}
	if len(updates) == 0 {
		t.Fatal("expected progress updates")
	}
	last := updates[len(updates)-1]
	if last.Percent != 100 {
		t.Fatalf("expected final update at 100 percent, got %f", last.Percent)
	}
	for _, update := range updates {
		if update.Stage != "transcoding" {
			t.Fatalf("expected transcoding stage, got %q", update.Stage)
		}
	}
}

func TestFFmpegTranscodeFailure(t *testing.T) {
	setHelperCommand(t, "failure")

	cli := NewFFmpeg()
	tempDir := t.TempDir()
	input := filepath.Join(tempDir, "clip.webm")
	if err := os.WriteFile(input, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := cli.Transcode(context.Background(), input, filepath.Join(tempDir, "optimized"), Options{}, nil)
	if err == nil {
		t.Fatal("expected transcode failure error")
	}
	if !strings.Contains(err.Error(), "ffmpeg failed") {
		t.Fatalf("expected ffmpeg failure detail, got %v", err)
	}
}

func TestDraptoRejectsExplicitOptions(t *testing.T) {
	cli := NewDrapto()
	_, err := cli.Transcode(context.Background(), "/in/clip.webm", "/out", Options{Bitrate: 2000}, nil)
	if err != ErrOptionsUnsupported {
		t.Fatalf("expected ErrOptionsUnsupported, got %v", err)
	}
}

func setHelperCommand(t *testing.T, mode string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		helperMode := mode
		if filepath.Base(name) == "ffprobe" {
			helperMode = "probe"
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", fmt.Sprintf("FFMPEG_HELPER_MODE=%s", helperMode))
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "probe":
		fmt.Println("20.000000")
		os.Exit(0)
	case "success":
		fmt.Println("out_time_us=5000000")
		fmt.Println("progress=continue")
		fmt.Println("out_time_us=15000000")
		fmt.Println("progress=continue")
		fmt.Println("out_time_us=20000000")
		fmt.Println("progress=end")
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "Error while opening encoder")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}

func findArg(args []string, target string) int {
	for i, arg := range args {
		if arg == target {
			return i
		}
	}
	return -1
}
