package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/snarg/voxbridge/internal/llm"
	"github.com/snarg/voxbridge/internal/provider"
)

// SummarizerSource resolves a summarizer by name.
type SummarizerSource interface {
	GetOrCreate(ctx context.Context, name string) (provider.Summarizer, error)
}

// batchSummarizer is implemented by backends with a native batch path.
type batchSummarizer interface {
	SummarizeBatch(ctx context.Context, texts []string, kind string) []*provider.Summary
}

type SummaryRequest struct {
	Text        string `json:"text"`
	SummaryType string `json:"summary_type"`
	MaxLength   int    `json:"max_length"`
	ServiceName string `json:"service_name"`
}

type BatchSummaryRequest struct {
	Texts       []string `json:"texts"`
	SummaryType string   `json:"summary_type"`
	ServiceName string   `json:"service_name"`
}

type BatchSummaryResponse struct {
	Success      bool                `json:"success"`
	Results      []*provider.Summary `json:"results"`
	TotalCount   int                 `json:"total_count"`
	SuccessCount int                 `json:"success_count"`
}

type SummarizeHandler struct {
	summarizers SummarizerSource
	defaultName string
	log         zerolog.Logger
}

func NewSummarizeHandler(s SummarizerSource, defaultName string, log zerolog.Logger) *SummarizeHandler {
	return &SummarizeHandler{
		summarizers: s,
		defaultName: defaultName,
		log:         log.With().Str("handler", "summarize").Logger(),
	}
}

// Summarize handles POST /api/v1/summarize.
func (h *SummarizeHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.SummaryType == "" {
		req.SummaryType = "general"
	}

	svc, ok := h.resolve(w, r, req.ServiceName)
	if !ok {
		return
	}

	result, err := svc.Summarize(r.Context(), req.Text, req.SummaryType, req.MaxLength)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("summarize failed")
		WriteError(w, http.StatusInternalServerError, "summarization failed")
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// SummarizeBatch handles POST /api/v1/summarize/batch.
func (h *SummarizeHandler) SummarizeBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchSummaryRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(req.Texts) == 0 {
		WriteError(w, http.StatusBadRequest, "texts is required")
		return
	}
	if len(req.Texts) > llm.MaxBatchSize {
		WriteErrorDetail(w, http.StatusBadRequest, "too many texts",
			fmt.Sprintf("at most %d texts per batch", llm.MaxBatchSize))
		return
	}
	if req.SummaryType == "" {
		req.SummaryType = "general"
	}

	svc, ok := h.resolve(w, r, req.ServiceName)
	if !ok {
		return
	}

	var results []*provider.Summary
	if batch, implemented := svc.(batchSummarizer); implemented {
		results = batch.SummarizeBatch(r.Context(), req.Texts, req.SummaryType)
	} else {
		for i, text := range req.Texts {
			res, err := svc.Summarize(r.Context(), text, req.SummaryType, 0)
			if err != nil {
				res = &provider.Summary{Success: false, SummaryType: req.SummaryType, Error: err.Error()}
			}
			idx := i
			res.BatchIndex = &idx
			results = append(results, res)
		}
	}

	succeeded := 0
	for _, res := range results {
		if res.Success {
			succeeded++
		}
	}
	WriteJSON(w, http.StatusOK, BatchSummaryResponse{
		Success:      true,
		Results:      results,
		TotalCount:   len(results),
		SuccessCount: succeeded,
	})
}

// resolve looks up the named summarizer, writing a 503 on failure.
func (h *SummarizeHandler) resolve(w http.ResponseWriter, r *http.Request, name string) (provider.Summarizer, bool) {
	if name == "" {
		name = h.defaultName
	}
	svc, err := h.summarizers.GetOrCreate(r.Context(), name)
	if err != nil {
		var unregistered *provider.UnregisteredError
		var unavailable *provider.UnavailableError
		if errors.As(err, &unregistered) || errors.As(err, &unavailable) {
			WriteErrorDetail(w, http.StatusServiceUnavailable, "summary service unavailable", err.Error())
		} else {
			hlog.FromRequest(r).Error().Err(err).Str("service", name).Msg("summarizer resolution failed")
			WriteError(w, http.StatusInternalServerError, "summary service resolution failed")
		}
		return nil, false
	}
	return svc, true
}
