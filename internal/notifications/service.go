package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"vidpipe/internal/config"
)

const userAgent = "Vidpipe-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyUploadStarted(ctx context.Context, title string) error
	NotifyUploadProgress(ctx context.Context, title string, percent int, stage string) error
	NotifyUploadCompleted(ctx context.Context, title string) error
	NotifyUploadFailed(ctx context.Context, title, reason string) error
	NotifyQueueDrained(ctx context.Context, published, failed int, duration time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	perMinute := cfg.Notifications.ProgressPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		progress:    cfg.Notifications.Progress,
		completions: cfg.Notifications.Completions,
		errors:      cfg.Notifications.Errors,
		limiter:     rate.NewLimiter(rate.Limit(perMinute)/60, 1),
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	progress    bool
	completions bool
	errors      bool
	limiter     *rate.Limiter
}

func (n *ntfyService) NotifyUploadStarted(ctx context.Context, title string) error {
	if !n.progress {
		return nil
	}
	data := payload{
		title:   "Vidpipe - Upload Started",
		message: fmt.Sprintf("Started processing: %s", strings.TrimSpace(title)),
		tags:    []string{"vidpipe", "upload", "started"},
	}
	return n.send(ctx, data)
}

// NotifyUploadProgress is rate limited so long transcodes do not flood the
// topic. Dropped updates are not an error.
func (n *ntfyService) NotifyUploadProgress(ctx context.Context, title string, percent int, stage string) error {
	if !n.progress {
		return nil
	}
	if !n.limiter.Allow() {
		return nil
	}
	data := payload{
		title:   "Vidpipe - Progress",
		message: fmt.Sprintf("%s: %d%% (%s)", strings.TrimSpace(title), percent, strings.TrimSpace(stage)),
		tags:    []string{"vidpipe", "upload", "progress"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadCompleted(ctx context.Context, title string) error {
	if !n.completions {
		return nil
	}
	data := payload{
		title:    "Vidpipe - Published",
		message:  fmt.Sprintf("Published: %s", strings.TrimSpace(title)),
		tags:     []string{"vidpipe", "upload", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadFailed(ctx context.Context, title, reason string) error {
	if !n.errors {
		return nil
	}
	title = strings.TrimSpace(title)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Vidpipe - Upload Failed",
		message:  fmt.Sprintf("Failed: %s (%s)\nRetry from the queue to try again", title, reason),
		tags:     []string{"vidpipe", "upload", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, published, failed int, duration time.Duration) error {
	if !n.completions {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title, message string
	if failed == 0 {
		title = "Vidpipe - Queue Drained"
		message = fmt.Sprintf("Queue drained: %d uploads published in %s", published, duration)
	} else {
		title = "Vidpipe - Queue Drained (with errors)"
		message = fmt.Sprintf("Queue drained: %d published, %d failed in %s", published, failed, duration)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"vidpipe", "queue", "drained"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Vidpipe - Test",
		message:  "Notification system test",
		tags:     []string{"vidpipe", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyUploadStarted(context.Context, string) error               { return nil }
func (noopService) NotifyUploadProgress(context.Context, string, int, string) error { return nil }
func (noopService) NotifyUploadCompleted(context.Context, string) error             { return nil }
func (noopService) NotifyUploadFailed(context.Context, string, string) error        { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int, time.Duration) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
