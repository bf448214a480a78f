package registry

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of an upload record. There is no terminal
// "succeeded" status; success removes the record from the registry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusUploading  Status = "uploading"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusUploading,
	StatusFailed,
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Options carries the optional processing configuration attached to an
// upload. Zero values mean "use the engine default".
type Options struct {
	// Bitrate is the target video bitrate ceiling in kbit/s. When zero the
	// processor applies its size-driven default ladder.
	Bitrate int `json:"bitrate,omitempty"`
	// Preset names an encoder speed/quality preset.
	Preset string `json:"preset,omitempty"`
	// Resize scales the output, expressed as WIDTHxHEIGHT (e.g. "1280x720").
	Resize string `json:"resize,omitempty"`
	// TrimStart and TrimEnd bound the output in seconds from the source start.
	TrimStart float64 `json:"trim_start,omitempty"`
	TrimEnd   float64 `json:"trim_end,omitempty"`
	// Watermark is a text overlay drawn onto the output.
	Watermark string `json:"watermark,omitempty"`
}

// Key returns a stable serialization used to key the processed-result cache.
func (o Options) Key() string {
	raw, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	return string(raw)
}

// IsZero reports whether every option is unset.
func (o Options) IsZero() bool {
	return o == Options{}
}

// Record is one enqueued upload. Title and Description are immutable after
// creation; Progress is nil until the first progress report of an attempt.
type Record struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Progress    *int      `json:"progress"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Options     Options   `json:"options"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Seq orders dispatch. Assigned on enqueue and reassigned on retry, so a
	// resubmitted failure queues behind work enqueued after it failed.
	Seq uint64 `json:"seq"`
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	cp := r
	if r.Progress != nil {
		p := *r.Progress
		cp.Progress = &p
	}
	return cp
}
