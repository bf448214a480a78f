package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingSource marks jobs whose raw blob is absent from the blob store.
	ErrMissingSource = errors.New("missing source")
	// ErrProcessing marks transcode or merge failures.
	ErrProcessing = errors.New("processing error")
	// ErrNetwork marks transport-level connectivity failures.
	ErrNetwork = errors.New("network error")
	// ErrTimeout marks requests that exceeded their deadline.
	ErrTimeout = errors.New("timeout")
	// ErrMetadataPost marks a failed metadata post after a successful blob upload.
	ErrMetadataPost = errors.New("metadata post failed")
)

// StatusError reports a non-2xx response from either endpoint.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d)", e.Code)
}

// NewStatusError builds a StatusError for the given HTTP status code.
func NewStatusError(code int) *StatusError {
	return &StatusError{Code: code}
}

// StatusCode extracts the HTTP status from an error chain, if present.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code, true
	}
	return 0, false
}

// Wrap builds an error message that includes actor context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, actor, operation, message string, err error) error {
	detail := buildDetail(actor, operation, message)
	if marker == nil {
		marker = ErrProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Reason converts an error into the short, human-readable failure reason
// stored on the upload record.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingSource):
		return "MissingSource"
	case errors.Is(err, ErrMetadataPost):
		return "MetadataPostError"
	case errors.Is(err, ErrTimeout):
		return "TimeoutError"
	case errors.Is(err, ErrNetwork):
		return "NetworkError"
	}
	if code, ok := StatusCode(err); ok {
		return fmt.Sprintf("ServerError(%d)", code)
	}
	if errors.Is(err, ErrProcessing) {
		return "ProcessingError"
	}
	return err.Error()
}

func buildDetail(actor, operation, message string) string {
	parts := make([]string, 0, 3)
	if actor = strings.TrimSpace(actor); actor != "" {
		parts = append(parts, actor)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
