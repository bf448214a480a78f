package vidpipe_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vidpipe"
	"vidpipe/internal/registry"
	"vidpipe/internal/testsupport"
	"vidpipe/internal/transport"
)

func newEndpoints(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(transport.MediaDescriptor{
			PublicID:  "videos/e2e",
			SecureURL: "https://media.example.com/videos/e2e.mp4",
		})
		w.Write(payload)
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestPipelinePublishesEndToEnd(t *testing.T) {
	server := newEndpoints(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithEndpoints(server.URL+"/upload", server.URL+"/videos"),
		testsupport.WithFFmpegBinary(testsupport.StubFFmpeg(t)),
	)

	ctx := context.Background()
	pipe, err := vidpipe.OpenWithConfig(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	defer pipe.Close()

	if err := pipe.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err = pipe.Enqueue(ctx, "clip-1", "Morning Run", "First lap", vidpipe.Options{}, [][]byte{[]byte("segment")})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, 10*time.Second, func() bool {
		_, exists := pipe.Snapshot()["clip-1"]
		return !exists
	})

	titles := pipe.CompletedTitles()
	if len(titles) != 1 || titles[0] != "Morning Run" {
		t.Fatalf("unexpected completed titles %v", titles)
	}
}

func TestPipelineQueueSurvivesReopen(t *testing.T) {
	server := newEndpoints(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithEndpoints(server.URL+"/upload", server.URL+"/videos"),
		testsupport.WithFFmpegBinary(testsupport.StubFFmpeg(t)),
	)

	ctx := context.Background()
	pipe, err := vidpipe.OpenWithConfig(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}

	// Enqueue without starting: the record stays pending on disk.
	err = pipe.Enqueue(ctx, "clip-2", "Held", "", vidpipe.Options{}, [][]byte{[]byte("segment")})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := pipe.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := vidpipe.OpenWithConfig(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rec, ok := reopened.Snapshot()["clip-2"]
	if !ok {
		t.Fatal("expected record to survive reopen")
	}
	if rec.Status != registry.StatusPending {
		t.Fatalf("unexpected status %q", rec.Status)
	}

	if err := reopened.Start(ctx); err != nil {
		t.Fatalf("Start after reopen: %v", err)
	}
	waitFor(t, 10*time.Second, func() bool {
		_, exists := reopened.Snapshot()["clip-2"]
		return !exists
	})
}
