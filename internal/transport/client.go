// Package transport publishes optimized uploads to the remote endpoints: a
// multipart video upload followed by a metadata post. Failures are classified
// into the sentinel categories the registry records; retry policy lives with
// the caller, never here.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"vidpipe/internal/blobstore"
	"vidpipe/internal/logging"
	"vidpipe/internal/registry"
	"vidpipe/internal/services"
)

// DefaultTimeout bounds each HTTP request.
const DefaultTimeout = 30 * time.Second

// videoField is the multipart form field the upload endpoint expects.
const videoField = "video"

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// Client talks to the upload and metadata endpoints.
type Client struct {
	http        *http.Client
	uploadURL   string
	metadataURL string
	blobs       *blobstore.Store
	logger      *slog.Logger
}

// New constructs a Client for the given endpoints.
func New(uploadURL, metadataURL string, blobs *blobstore.Store, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Client{
		http:        &http.Client{Timeout: DefaultTimeout},
		uploadURL:   uploadURL,
		metadataURL: metadataURL,
		blobs:       blobs,
		logger:      logger.With(logging.String(logging.FieldActor, "transport")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish uploads the optimized blob for the record and posts its metadata.
// A descriptor cached from an earlier attempt skips the upload and goes
// straight to the metadata post. On success every blob for the id is removed.
// Progress reports bytes sent as a percentage of the upload body.
func (c *Client) Publish(ctx context.Context, rec registry.Record, progress func(percent int)) error {
	logger := c.logger.With(logging.String(logging.FieldUploadID, rec.ID))

	descriptor, cached, err := c.cachedDescriptor(rec.ID)
	if err != nil {
		return err
	}
	if cached {
		logger.Info("reusing uploaded media descriptor", logging.String("public_id", descriptor.PublicID))
		if progress != nil {
			progress(100)
		}
	} else {
		payload, ok, err := c.blobs.Get(blobstore.OptimizedKey(rec.ID))
		if err != nil {
			return services.Wrap(services.ErrProcessing, "transport", "load", "failed to read optimized blob", err)
		}
		if !ok {
			return services.Wrap(services.ErrMissingSource, "transport", "load", "optimized blob missing", nil)
		}
		descriptor, err = c.Upload(ctx, rec.ID, payload, progress)
		if err != nil {
			return err
		}
		c.storeDescriptor(logger, rec.ID, descriptor)
	}

	if err := c.PostMetadata(ctx, rec.Title, rec.Description, descriptor); err != nil {
		return err
	}

	if err := c.blobs.RemoveUpload(rec.ID); err != nil {
		logger.Warn("failed to clean up published blobs", logging.Error(err))
	}
	logger.Info("publish complete",
		logging.String("public_id", descriptor.PublicID),
		logging.Int64("bytes", descriptor.Bytes),
	)
	return nil
}

// Upload posts the payload as a multipart form and returns the descriptor the
// endpoint responds with.
func (c *Client) Upload(ctx context.Context, id string, payload []byte, progress func(percent int)) (MediaDescriptor, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	field, err := writer.CreateFormFile(videoField, id+".mp4")
	if err != nil {
		return MediaDescriptor{}, services.Wrap(services.ErrProcessing, "transport", "upload", "create form file", err)
	}
	if _, err := field.Write(payload); err != nil {
		return MediaDescriptor{}, services.Wrap(services.ErrProcessing, "transport", "upload", "write form payload", err)
	}
	if err := writer.Close(); err != nil {
		return MediaDescriptor{}, services.Wrap(services.ErrProcessing, "transport", "upload", "close multipart writer", err)
	}

	total := int64(body.Len())
	reader := &progressReader{reader: body, total: total, callback: progress}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, reader)
	if err != nil {
		return MediaDescriptor{}, services.Wrap(services.ErrProcessing, "transport", "upload", "build request", err)
	}
	request.ContentLength = total
	request.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(request)
	if err != nil {
		return MediaDescriptor{}, categorize("upload", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return MediaDescriptor{}, services.Wrap(services.ErrNetwork, "transport", "upload", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return MediaDescriptor{}, services.Wrap(services.NewStatusError(resp.StatusCode), "transport", "upload", "unexpected status", nil)
	}

	var descriptor MediaDescriptor
	if err := json.Unmarshal(responseBody, &descriptor); err != nil {
		return MediaDescriptor{}, services.Wrap(services.ErrProcessing, "transport", "upload", "decode descriptor", err)
	}
	if !descriptor.Valid() {
		return MediaDescriptor{}, services.Wrap(services.ErrProcessing, "transport", "upload", "incomplete descriptor", nil)
	}
	return descriptor, nil
}

// PostMetadata submits the title, description, and media descriptor for a
// completed upload.
func (c *Client) PostMetadata(ctx context.Context, title, description string, media MediaDescriptor) error {
	payload, err := json.Marshal(struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Media       MediaDescriptor `json:"media"`
	}{Title: title, Description: description, Media: media})
	if err != nil {
		return services.Wrap(services.ErrMetadataPost, "transport", "metadata", "encode payload", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.metadataURL, bytes.NewReader(payload))
	if err != nil {
		return services.Wrap(services.ErrMetadataPost, "transport", "metadata", "build request", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(request)
	if err != nil {
		return services.Wrap(services.ErrMetadataPost, "transport", "metadata", "post", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.Wrap(services.ErrMetadataPost, "transport", "metadata", fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *Client) cachedDescriptor(id string) (MediaDescriptor, bool, error) {
	payload, ok, err := c.blobs.Get(blobstore.DescriptorKey(id))
	if err != nil {
		return MediaDescriptor{}, false, services.Wrap(services.ErrProcessing, "transport", "load", "failed to read cached descriptor", err)
	}
	if !ok {
		return MediaDescriptor{}, false, nil
	}
	descriptor, valid := decodeDescriptor(payload)
	return descriptor, valid, nil
}

// storeDescriptor persists the descriptor so a metadata failure later in the
// attempt does not force a re-upload on retry. Best effort.
func (c *Client) storeDescriptor(logger *slog.Logger, id string, descriptor MediaDescriptor) {
	payload, err := json.Marshal(descriptor)
	if err != nil {
		logger.Warn("failed to encode media descriptor", logging.Error(err))
		return
	}
	if err := c.blobs.Put(blobstore.DescriptorKey(id), payload); err != nil {
		logger.Warn("failed to cache media descriptor", logging.Error(err))
	}
}

// categorize maps an http.Client error to a timeout or network sentinel.
func categorize(operation string, err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "transport", operation, "request timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transport", operation, "request timed out", err)
	}
	return services.Wrap(services.ErrNetwork, "transport", operation, "request failed", err)
}

// progressReader reports cumulative bytes read as a percentage of total.
type progressReader struct {
	reader   io.Reader
	total    int64
	sent     int64
	callback func(percent int)
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.sent += int64(n)
		if r.callback != nil && r.total > 0 {
			percent := int(r.sent * 100 / r.total)
			if percent > 100 {
				percent = 100
			}
			r.callback(percent)
		}
	}
	return n, err
}
