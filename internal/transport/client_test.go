package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"vidpipe/internal/blobstore"
	"vidpipe/internal/registry"
	"vidpipe/internal/services"
)

func newTestBlobs(t *testing.T) *blobstore.Store {
	t.Helper()
	store, err := blobstore.Open(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func descriptorJSON(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(MediaDescriptor{
		PublicID:         "videos/abc123",
		SecureURL:        "https://media.example.com/videos/abc123.mp4",
		OriginalFilename: "up-1",
		Format:           "mp4",
		Bytes:            9,
		ThumbnailURL:     "https://media.example.com/videos/abc123.jpg",
		ResourceType:     "video",
		CreatedAt:        "2026-08-30T10:00:00Z",
	})
	if err != nil {
		t.Fatal(err)
	}
	return payload
}

func TestUploadSendsMultipartVideoField(t *testing.T) {
	var gotField string
	var gotPayload []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		for field, headers := range r.MultipartForm.File {
			gotField = field
			file, err := headers[0].Open()
			if err != nil {
				t.Errorf("open part: %v", err)
				return
			}
			gotPayload, _ = io.ReadAll(file)
			file.Close()
		}
		w.Write(descriptorJSON(t))
	}))
	defer server.Close()

	client := New(server.URL, server.URL, newTestBlobs(t), nil)
	var percents []int
	descriptor, err := client.Upload(context.Background(), "up-1", []byte("optimized"), func(percent int) {
		percents = append(percents, percent)
	})
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if gotField != "video" {
		t.Fatalf("expected multipart field %q, got %q", "video", gotField)
	}
	if string(gotPayload) != "optimized" {
		t.Fatalf("unexpected uploaded payload %q", gotPayload)
	}
	if descriptor.PublicID != "videos/abc123" {
		t.Fatalf("unexpected descriptor %+v", descriptor)
	}
	if len(percents) == 0 || percents[len(percents)-1] != 100 {
		t.Fatalf("expected byte progress ending at 100, got %v", percents)
	}
}

func TestUploadServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, server.URL, newTestBlobs(t), nil)
	_, err := client.Upload(context.Background(), "up-1", []byte("optimized"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if code, ok := services.StatusCode(err); !ok || code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 in chain, got %v", err)
	}
	if reason := services.Reason(err); reason != "ServerError(500)" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestUploadNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL, server.URL, newTestBlobs(t), nil)
	_, err := client.Upload(context.Background(), "up-1", []byte("optimized"), nil)
	if !errors.Is(err, services.ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		server.Close()
	}()

	client := New(server.URL, server.URL, newTestBlobs(t), nil, WithTimeout(50*time.Millisecond))
	_, err := client.Upload(context.Background(), "up-1", []byte("optimized"), nil)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if reason := services.Reason(err); reason != "TimeoutError" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestPostMetadataPayload(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode metadata: %v", err)
		}
	}))
	defer server.Close()

	client := New(server.URL, server.URL, newTestBlobs(t), nil)
	media := MediaDescriptor{PublicID: "videos/abc123", SecureURL: "https://media.example.com/v.mp4"}
	if err := client.PostMetadata(context.Background(), "Demo", "A clip", media); err != nil {
		t.Fatalf("PostMetadata returned error: %v", err)
	}
	if got["title"] != "Demo" || got["description"] != "A clip" {
		t.Fatalf("unexpected payload %v", got)
	}
	mediaPayload, ok := got["media"].(map[string]any)
	if !ok || mediaPayload["public_id"] != "videos/abc123" {
		t.Fatalf("expected media descriptor in payload, got %v", got["media"])
	}
}

func TestPostMetadataFailureReason(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, server.URL, newTestBlobs(t), nil)
	err := client.PostMetadata(context.Background(), "Demo", "", MediaDescriptor{PublicID: "x", SecureURL: "y"})
	if !errors.Is(err, services.ErrMetadataPost) {
		t.Fatalf("expected ErrMetadataPost, got %v", err)
	}
	if reason := services.Reason(err); reason != "MetadataPostError" {
		t.Fatalf("unexpected reason %q", reason)
	}
}

func TestPublishUploadsAndCleansUp(t *testing.T) {
	uploads := 0
	metadataPosts := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		uploads++
		w.Write(descriptorJSON(t))
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		metadataPosts++
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	blobs := newTestBlobs(t)
	if err := blobs.PutSegments("up-1", [][]byte{[]byte("raw")}); err != nil {
		t.Fatal(err)
	}
	if err := blobs.Put(blobstore.OptimizedKey("up-1"), []byte("optimized")); err != nil {
		t.Fatal(err)
	}

	client := New(server.URL+"/upload", server.URL+"/videos", blobs, nil)
	rec := registry.Record{ID: "up-1", Title: "Demo", Description: "A clip"}
	if err := client.Publish(context.Background(), rec, nil); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if uploads != 1 || metadataPosts != 1 {
		t.Fatalf("expected 1 upload and 1 metadata post, got %d/%d", uploads, metadataPosts)
	}

	for _, key := range []string{"up-1", blobstore.OptimizedKey("up-1"), blobstore.DescriptorKey("up-1")} {
		if _, ok, _ := blobs.Get(key); ok {
			t.Fatalf("expected key %q removed after publish", key)
		}
	}
}

func TestPublishMissingOptimizedBlob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := New(server.URL, server.URL, newTestBlobs(t), nil)
	err := client.Publish(context.Background(), registry.Record{ID: "absent"}, nil)
	if !errors.Is(err, services.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
}

func TestPublishRetrySkipsUploadAfterMetadataFailure(t *testing.T) {
	uploads := 0
	metadataPosts := 0
	metadataFail := true
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		uploads++
		w.Write(descriptorJSON(t))
	})
	mux.HandleFunc("/videos", func(w http.ResponseWriter, r *http.Request) {
		metadataPosts++
		if metadataFail {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	blobs := newTestBlobs(t)
	if err := blobs.Put(blobstore.OptimizedKey("up-2"), []byte("optimized")); err != nil {
		t.Fatal(err)
	}

	client := New(server.URL+"/upload", server.URL+"/videos", blobs, nil)
	rec := registry.Record{ID: "up-2", Title: "Demo"}

	err := client.Publish(context.Background(), rec, nil)
	if !errors.Is(err, services.ErrMetadataPost) {
		t.Fatalf("expected ErrMetadataPost, got %v", err)
	}
	if _, ok, _ := blobs.Get(blobstore.DescriptorKey("up-2")); !ok {
		t.Fatal("expected descriptor cached after failed metadata post")
	}

	metadataFail = false
	var percents []int
	if err := client.Publish(context.Background(), rec, func(percent int) {
		percents = append(percents, percent)
	}); err != nil {
		t.Fatalf("retry Publish returned error: %v", err)
	}
	if uploads != 1 {
		t.Fatalf("expected retry to reuse descriptor, got %d uploads", uploads)
	}
	if metadataPosts != 2 {
		t.Fatalf("expected 2 metadata posts, got %d", metadataPosts)
	}
	if len(percents) != 1 || percents[0] != 100 {
		t.Fatalf("expected immediate 100 percent on cached descriptor, got %v", percents)
	}
}
