// Package pipeline sequences the per-request transcode → recognize →
// summarize stages, owns temporary artifact cleanup, and assembles a
// partial-success result when later stages are skipped or fail.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/voxbridge/internal/metrics"
	"github.com/snarg/voxbridge/internal/provider"
	"github.com/snarg/voxbridge/internal/transcode"
)

// TranscodeError marks a failed transcoding stage. Nothing useful can be
// returned without audio in the target format, so this aborts the request.
type TranscodeError struct {
	Err error
}

func (e *TranscodeError) Error() string { return "transcode: " + e.Err.Error() }
func (e *TranscodeError) Unwrap() error { return e.Err }

// Transcoder converts an uploaded file to the recognition WAV format.
type Transcoder interface {
	ToWAV(ctx context.Context, inputPath string, params transcode.WAVParams) (string, error)
}

// RecognizerSource resolves a recognizer by name; the instance cache
// satisfies this.
type RecognizerSource interface {
	GetOrCreate(ctx context.Context, name string) (provider.Recognizer, error)
}

// SummarizerSource resolves a summarizer by name.
type SummarizerSource interface {
	GetOrCreate(ctx context.Context, name string) (provider.Summarizer, error)
}

// ResultStore persists completed pipeline results. Implementations must
// tolerate partial results; a nil store disables persistence.
type ResultStore interface {
	SaveResult(ctx context.Context, res *Result) error
}

// Request is one audio processing request.
type Request struct {
	Filename    string
	ContentType string
	Size        int64
	Audio       io.Reader

	Provider string // recognizer name

	EnableSummary   bool
	SummaryType     string
	MaxLength       int
	SummaryProvider string
}

// Result is built incrementally across stages. Once a stage fails,
// downstream stages are skipped but the partially filled result is still
// returned, never discarded.
type Result struct {
	Success  bool               `json:"success"`
	Text     string             `json:"text,omitempty"`
	Segments []provider.Segment `json:"segments,omitempty"`

	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	DurationMs int    `json:"duration_ms,omitempty"`

	UploadedFilename string `json:"uploaded_filename,omitempty"`
	FileSize         int64  `json:"file_size,omitempty"`
	ContentType      string `json:"content_type,omitempty"`

	SummaryEnabled bool              `json:"summary_enabled"`
	SummaryResult  *provider.Summary `json:"summary_result,omitempty"`

	Error string `json:"error,omitempty"`
}

// Orchestrator runs the pipeline. Safe for concurrent use: per-request
// state lives in the Result, and the only shared mutable state is behind
// the provider caches.
type Orchestrator struct {
	transcoder  Transcoder
	recognizers RecognizerSource
	summarizers SummarizerSource
	store       ResultStore // may be nil

	tempDir   string
	wavParams transcode.WAVParams
	log       zerolog.Logger
}

// Options configures an Orchestrator.
type Options struct {
	Transcoder  Transcoder
	Recognizers RecognizerSource
	Summarizers SummarizerSource
	Store       ResultStore
	TempDir     string // defaults to os.TempDir()
	WAVParams   transcode.WAVParams
	Log         zerolog.Logger
}

// New creates a pipeline orchestrator.
func New(opts Options) *Orchestrator {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.WAVParams == (transcode.WAVParams{}) {
		opts.WAVParams = transcode.DefaultWAVParams()
	}
	return &Orchestrator{
		transcoder:  opts.Transcoder,
		recognizers: opts.Recognizers,
		summarizers: opts.Summarizers,
		store:       opts.Store,
		tempDir:     opts.TempDir,
		wavParams:   opts.WAVParams,
		log:         opts.Log.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs one request through the pipeline.
//
// Hard errors — upload persistence, transcoding, recognizer resolution —
// are returned as errors. Recognition and summarization faults downgrade
// the result instead. Both the persisted upload and the transcoded file
// are deleted on every exit path; cleanup logs but never fails a request.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	uploadPath, err := o.persistUpload(req)
	if err != nil {
		return nil, fmt.Errorf("persist upload: %w", err)
	}
	cl := newCleanup(o.log)
	cl.add(uploadPath)
	defer cl.run()

	wavPath, err := o.transcoder.ToWAV(ctx, uploadPath, o.wavParams)
	if err != nil {
		metrics.PipelineStagesTotal.WithLabelValues("transcode", "error").Inc()
		return nil, &TranscodeError{Err: err}
	}
	cl.add(wavPath)
	metrics.PipelineStagesTotal.WithLabelValues("transcode", "ok").Inc()

	rec, err := o.recognizers.GetOrCreate(ctx, req.Provider)
	if err != nil {
		metrics.PipelineStagesTotal.WithLabelValues("recognize", "unavailable").Inc()
		return nil, err
	}

	res := &Result{
		Provider:         req.Provider,
		Model:            rec.Info().Model,
		SampleRate:       o.wavParams.SampleRate,
		UploadedFilename: req.Filename,
		FileSize:         req.Size,
		ContentType:      req.ContentType,
	}

	segments, recErr := rec.Recognize(ctx, wavPath)

	// Both artifacts go away the moment recognition returns, success or
	// not; nothing downstream reads them.
	cl.run()

	if recErr != nil {
		metrics.PipelineStagesTotal.WithLabelValues("recognize", "error").Inc()
		o.log.Warn().Err(recErr).Str("provider", req.Provider).Msg("recognition failed")
		res.Success = false
		res.Error = fmt.Sprintf("recognition failed: %v", recErr)
		res.SummaryEnabled = false
		res.DurationMs = int(time.Since(start).Milliseconds())
		return res, nil
	}
	metrics.PipelineStagesTotal.WithLabelValues("recognize", "ok").Inc()

	res.Success = true
	res.Segments = segments
	res.Text = joinSegments(segments)

	o.summarize(ctx, req, res)

	res.DurationMs = int(time.Since(start).Milliseconds())
	o.log.Info().
		Str("provider", req.Provider).
		Int("segments", len(segments)).
		Bool("summary_enabled", res.SummaryEnabled).
		Int("duration_ms", res.DurationMs).
		Msg("pipeline complete")

	o.saveResult(ctx, res)
	return res, nil
}

// summarize fills the summary portion of res. Not an error path: every
// failure mode lands in res as a structured sub-result, because a good
// transcript is independently valuable even when summarization breaks.
func (o *Orchestrator) summarize(ctx context.Context, req Request, res *Result) {
	if !req.EnableSummary {
		res.SummaryEnabled = false
		return
	}
	if !res.Success {
		res.SummaryEnabled = false
		return
	}

	res.SummaryEnabled = true
	if strings.TrimSpace(res.Text) == "" {
		metrics.PipelineStagesTotal.WithLabelValues("summarize", "empty").Inc()
		res.SummaryResult = &provider.Summary{
			Success:     false,
			SummaryType: req.SummaryType,
			Error:       "recognized text is empty, nothing to summarize",
		}
		return
	}

	sum, err := o.summarizers.GetOrCreate(ctx, req.SummaryProvider)
	if err != nil {
		metrics.PipelineStagesTotal.WithLabelValues("summarize", "unavailable").Inc()
		o.log.Warn().Err(err).Str("provider", req.SummaryProvider).Msg("summarizer unavailable")
		res.SummaryResult = &provider.Summary{
			Success:     false,
			SummaryType: req.SummaryType,
			Error:       err.Error(),
		}
		return
	}

	summary, err := sum.Summarize(ctx, res.Text, req.SummaryType, req.MaxLength)
	if err != nil {
		metrics.PipelineStagesTotal.WithLabelValues("summarize", "error").Inc()
		o.log.Warn().Err(err).Str("provider", req.SummaryProvider).Msg("summarization failed")
		res.SummaryResult = &provider.Summary{
			Success:     false,
			SummaryType: req.SummaryType,
			Error:       fmt.Sprintf("summarization failed: %v", err),
		}
		return
	}
	metrics.PipelineStagesTotal.WithLabelValues("summarize", "ok").Inc()
	res.SummaryResult = summary
}

// persistUpload stores the upload under a uniquely named path so
// concurrent requests never observe each other's artifacts.
func (o *Orchestrator) persistUpload(req Request) (string, error) {
	ext := filepath.Ext(req.Filename)
	if ext == "" {
		ext = ".tmp"
	}
	path := filepath.Join(o.tempDir, "voxbridge-upload-"+uuid.NewString()+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, req.Audio); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (o *Orchestrator) saveResult(ctx context.Context, res *Result) {
	if o.store == nil {
		return
	}
	if err := o.store.SaveResult(ctx, res); err != nil {
		// Persistence never masks the primary result.
		o.log.Error().Err(err).Msg("failed to persist pipeline result")
	}
}

// joinSegments flattens segment texts into one transcript. Segments with
// empty text are dropped so the transcript carries no stray separators.
func joinSegments(segments []provider.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s.Text != "" {
			parts = append(parts, s.Text)
		}
	}
	return strings.Join(parts, " ")
}
