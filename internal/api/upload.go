package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/voxbridge/internal/config"
	"github.com/snarg/voxbridge/internal/pipeline"
	"github.com/snarg/voxbridge/internal/provider"
)

// Processor runs one upload through the recognition pipeline.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// allowedContentTypes covers uploads whose Content-Type is not audio/*.
var allowedContentTypes = map[string]bool{
	"audio/mpeg": true, "audio/mp3": true, "audio/wav": true, "audio/x-wav": true,
	"audio/aac": true, "audio/flac": true, "audio/ogg": true, "audio/webm": true,
	"audio/mp4": true, "audio/x-m4a": true, "application/octet-stream": true,
}

// UploadHandler handles audio uploads for transcription.
type UploadHandler struct {
	pipeline          Processor
	maxUploadBytes    int64
	defaultRecognizer string
	defaultSummarizer string
	log               zerolog.Logger
}

func NewUploadHandler(p Processor, cfg *config.Config, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		pipeline:          p,
		maxUploadBytes:    cfg.MaxUploadMB << 20,
		defaultRecognizer: cfg.DefaultRecognizer,
		defaultSummarizer: cfg.DefaultSummarizer,
		log:               log.With().Str("handler", "upload").Logger(),
	}
}

// Upload handles POST /api/v1/upload-audio.
// Transcribes the uploaded file and, when enable_summary is set,
// summarizes the recognized text. Recognition and summary faults come
// back in the result body; only infrastructure faults produce an error
// status.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxUploadBytes {
		WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "file too large",
			fmt.Sprintf("maximum upload size is %d MB", h.maxUploadBytes>>20))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") && !allowedContentTypes[contentType] {
		WriteErrorDetail(w, http.StatusBadRequest, "unsupported file type", contentType)
		return
	}
	if header.Size > h.maxUploadBytes {
		WriteErrorDetail(w, http.StatusRequestEntityTooLarge, "file too large",
			fmt.Sprintf("maximum upload size is %d MB", h.maxUploadBytes>>20))
		return
	}

	req := pipeline.Request{
		Filename:        header.Filename,
		ContentType:     contentType,
		Size:            header.Size,
		Audio:           file,
		Provider:        formOrQuery(r, "model"),
		EnableSummary:   parseBoolParam(formOrQuery(r, "enable_summary")),
		SummaryType:     formOrQuery(r, "summary_type"),
		SummaryProvider: formOrQuery(r, "summary_service"),
	}
	if req.Provider == "" {
		req.Provider = h.defaultRecognizer
	}
	if req.SummaryProvider == "" {
		req.SummaryProvider = h.defaultSummarizer
	}
	if v := formOrQuery(r, "max_length"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.MaxLength = n
		}
	}

	result, err := h.pipeline.Process(r.Context(), req)
	if err != nil {
		h.writeProcessError(w, r, req, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

func (h *UploadHandler) writeProcessError(w http.ResponseWriter, r *http.Request, req pipeline.Request, err error) {
	var unregistered *provider.UnregisteredError
	var unavailable *provider.UnavailableError
	var transcodeErr *pipeline.TranscodeError

	switch {
	case errors.As(err, &unregistered):
		WriteErrorDetail(w, http.StatusServiceUnavailable, "recognition service unavailable", unregistered.Error())
	case errors.As(err, &unavailable):
		WriteErrorDetail(w, http.StatusServiceUnavailable, "recognition service unavailable", unavailable.Error())
	case errors.As(err, &transcodeErr):
		hlog.FromRequest(r).Error().Err(err).Str("filename", req.Filename).Msg("transcode failed")
		WriteError(w, http.StatusInternalServerError, "audio transcoding failed")
	default:
		hlog.FromRequest(r).Error().Err(err).Str("filename", req.Filename).Msg("upload processing failed")
		WriteError(w, http.StatusInternalServerError, "audio processing failed")
	}
}

// formOrQuery reads a parameter from the multipart form or the query
// string, whichever is set.
func formOrQuery(r *http.Request, name string) string {
	if v := r.FormValue(name); v != "" {
		return v
	}
	return r.URL.Query().Get(name)
}

func parseBoolParam(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
