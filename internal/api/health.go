package api

import (
	"context"
	"net/http"
	"time"

	"github.com/snarg/voxbridge/internal/provider"
	"github.com/snarg/voxbridge/internal/store"
)

// ServiceHealth is the health of one provider.
type ServiceHealth struct {
	Available bool                  `json:"available"`
	Info      *provider.ServiceInfo `json:"service_info,omitempty"`
	Error     string                `json:"error,omitempty"`
}

type HealthResponse struct {
	Status        string                                     `json:"status"`
	Version       string                                     `json:"version"`
	UptimeSeconds int64                                      `json:"uptime_seconds"`
	OverallHealth bool                                       `json:"overall_health"`
	Checks        map[string]string                          `json:"checks"`
	Services      map[provider.Kind]map[string]ServiceHealth `json:"services"`
}

type HealthHandler struct {
	recognizers *provider.Cache[provider.Recognizer]
	summarizers *provider.Cache[provider.Summarizer]
	store       *store.Store // may be nil
	version     string
	startTime   time.Time
}

func NewHealthHandler(rec *provider.Cache[provider.Recognizer], sum *provider.Cache[provider.Summarizer], st *store.Store, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		recognizers: rec,
		summarizers: sum,
		store:       st,
		version:     version,
		startTime:   startTime,
	}
}

// ServeHTTP handles GET /api/v1/health. Every registered provider is
// probed on each call, so the response reflects current reachability
// rather than the startup snapshot. Overall health means every provider
// group has at least one available member; the data store only degrades
// the status since results survive without it.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	services := map[provider.Kind]map[string]ServiceHealth{
		provider.KindRecognizer: groupHealth(r.Context(), h.recognizers),
		provider.KindSummarizer: groupHealth(r.Context(), h.summarizers),
	}

	overall := true
	for _, group := range services {
		if !anyAvailable(group) {
			overall = false
		}
	}
	if !overall {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	// Database check
	if h.store != nil {
		if err := h.store.HealthCheck(r.Context()); err != nil {
			checks["database"] = "error"
			if status == "healthy" {
				status = "degraded"
			}
		} else {
			checks["database"] = "ok"
		}
	} else {
		checks["database"] = "not_configured"
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		OverallHealth: overall,
		Checks:        checks,
		Services:      services,
	})
}

func groupHealth[T provider.Provider](ctx context.Context, cache *provider.Cache[T]) map[string]ServiceHealth {
	out := make(map[string]ServiceHealth)
	for _, name := range cache.Names() {
		inst, err := cache.GetOrCreate(ctx, name)
		if err != nil {
			out[name] = ServiceHealth{Available: false, Error: err.Error()}
			continue
		}
		info := inst.Info()
		out[name] = ServiceHealth{Available: true, Info: &info}
	}
	return out
}

func anyAvailable(group map[string]ServiceHealth) bool {
	for _, sh := range group {
		if sh.Available {
			return true
		}
	}
	return false
}
