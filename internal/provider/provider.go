// Package provider defines the capability contracts for speech recognition
// and text summarization backends, plus the registry, health-validated
// instance cache, and startup preloader that manage their lifecycle.
package provider

import "context"

// Kind distinguishes the two provider families.
type Kind string

const (
	KindRecognizer Kind = "asr"
	KindSummarizer Kind = "summary"
)

// ServiceInfo describes a provider instance for listings and health output.
type ServiceInfo struct {
	Name        string         `json:"name"`
	Kind        Kind           `json:"kind"`
	Version     string         `json:"version,omitempty"`
	Model       string         `json:"model,omitempty"`
	Description string         `json:"description,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// Provider is the liveness core every backend shares.
type Provider interface {
	// Ping reports whether the backend is reachable and functioning.
	// Implementations convert internal faults to false rather than panicking.
	Ping(ctx context.Context) bool
	Info() ServiceInfo
}

// Segment is one recognized span of audio.
type Segment struct {
	Text       string   `json:"text"`
	Speaker    string   `json:"speaker,omitempty"`
	Emotion    string   `json:"emotion,omitempty"`
	Language   string   `json:"language,omitempty"`
	Start      *float64 `json:"start_time,omitempty"` // seconds
	End        *float64 `json:"end_time,omitempty"`   // seconds
	Confidence *float64 `json:"confidence,omitempty"`
}

// Recognizer is a speech-to-text backend.
type Recognizer interface {
	Provider
	Recognize(ctx context.Context, audioPath string) ([]Segment, error)
}

// Summary is the result of one summarization call. A failed call is
// represented as Success=false with Error set, not as a Go error, so a
// summary failure can ride inside an otherwise successful pipeline result.
type Summary struct {
	Success        bool   `json:"success"`
	Summary        string `json:"summary,omitempty"`
	OriginalText   string `json:"original_text,omitempty"`
	SummaryType    string `json:"summary_type,omitempty"`
	MaxLength      int    `json:"max_length,omitempty"`
	Model          string `json:"model,omitempty"`
	OriginalLength int    `json:"original_length,omitempty"`
	SummaryLength  int    `json:"summary_length,omitempty"`
	BatchIndex     *int   `json:"batch_index,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Summarizer is a text summarization backend.
type Summarizer interface {
	Provider
	Summarize(ctx context.Context, text, kind string, maxLength int) (*Summary, error)
}

// Constructor builds a fresh provider instance. Constructors are registered
// once at process init and invoked by the instance cache.
type Constructor[T Provider] func() (T, error)
