package api

import (
	"net/http"

	"github.com/snarg/voxbridge/internal/provider"
)

// StartupInfo summarizes the provider preload that ran at process start.
type StartupInfo struct {
	Total      int      `json:"total_services_at_startup"`
	Successful int      `json:"successful_services_at_startup"`
	Failed     int      `json:"failed_services_at_startup"`
	Errors     []string `json:"startup_errors"`
}

type AllServicesResponse struct {
	ASRServices   []string     `json:"asr_services"`
	LLMServices   []string     `json:"llm_services"`
	TotalServices int          `json:"total_services"`
	StartupInfo   *StartupInfo `json:"startup_info,omitempty"`
}

type ServiceListResponse struct {
	Success            bool     `json:"success"`
	RegisteredServices []string `json:"registered_services"`
	AvailableServices  []string `json:"available_services"`
	DefaultService     string   `json:"default_service"`
}

// ServicesHandler serves provider listings. startup is read lazily
// because preloading runs in the background; it returns nil until the
// preload pass finishes.
type ServicesHandler struct {
	recognizers *provider.Cache[provider.Recognizer]
	summarizers *provider.Cache[provider.Summarizer]
	startup     func() *provider.PreloadReport

	defaultRecognizer string
	defaultSummarizer string
}

func NewServicesHandler(rec *provider.Cache[provider.Recognizer], sum *provider.Cache[provider.Summarizer], startup func() *provider.PreloadReport, defaultRecognizer, defaultSummarizer string) *ServicesHandler {
	return &ServicesHandler{
		recognizers:       rec,
		summarizers:       sum,
		startup:           startup,
		defaultRecognizer: defaultRecognizer,
		defaultSummarizer: defaultSummarizer,
	}
}

// All handles GET /api/v1/services.
func (h *ServicesHandler) All(w http.ResponseWriter, r *http.Request) {
	asr := h.recognizers.ListAvailable(r.Context())
	llm := h.summarizers.ListAvailable(r.Context())

	resp := AllServicesResponse{
		ASRServices:   asr,
		LLMServices:   llm,
		TotalServices: len(asr) + len(llm),
	}
	if h.startup != nil {
		if rep := h.startup(); rep != nil {
			resp.StartupInfo = &StartupInfo{
				Total:      rep.Total,
				Successful: rep.Successful,
				Failed:     rep.Failed,
				Errors:     rep.Errors,
			}
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Recognizers handles GET /api/v1/asr-services.
func (h *ServicesHandler) Recognizers(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ServiceListResponse{
		Success:            true,
		RegisteredServices: h.recognizers.Names(),
		AvailableServices:  h.recognizers.ListAvailable(r.Context()),
		DefaultService:     h.defaultRecognizer,
	})
}

// Summarizers handles GET /api/v1/summary-services.
func (h *ServicesHandler) Summarizers(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, ServiceListResponse{
		Success:            true,
		RegisteredServices: h.summarizers.Names(),
		AvailableServices:  h.summarizers.ListAvailable(r.Context()),
		DefaultService:     h.defaultSummarizer,
	})
}
