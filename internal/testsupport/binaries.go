package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vidpipe/internal/config"
)

// ffmpegStub emits one progress line and writes a fixed payload to the output
// path, which the real binary takes as its final argument.
const ffmpegStub = `#!/bin/sh
for out do :; done
printf 'progress=end\n'
printf 'stub-optimized' > "$out"
`

// StubFFmpeg writes a stand-in ffmpeg executable and returns its path. Wire
// it up via the transcode config's ffmpeg_binary field.
func StubFFmpeg(t testing.TB) string {
	t.Helper()
	binDir := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, "ffmpeg")
	if err := os.WriteFile(target, []byte(ffmpegStub), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	return target
}

// WithFFmpegBinary points the transcode config at the given binary.
func WithFFmpegBinary(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Transcode.FFmpegBinary = path
	}
}
