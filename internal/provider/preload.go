package provider

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ProviderStatus is the per-provider outcome of a preload attempt.
type ProviderStatus struct {
	Success bool         `json:"success"`
	Info    *ServiceInfo `json:"service_info,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// PreloadReport aggregates the outcome of preloading every registered
// provider at startup.
type PreloadReport struct {
	Total       int                       `json:"total_services"`
	Successful  int                       `json:"successful_services"`
	Failed      int                       `json:"failed_services"`
	Recognizers map[string]ProviderStatus `json:"asr_services"`
	Summarizers map[string]ProviderStatus `json:"llm_services"`
	Errors      []string                  `json:"startup_errors"`
}

// Preloader eagerly constructs and health-checks every registered provider
// so first real requests do not pay cold-start latency. Recognizers and
// summarizers load in two independent concurrent branches; within each
// branch providers initialize sequentially, and one provider's failure
// never aborts the rest. PreloadAll never returns an error: failures are
// captured in the report and the process keeps starting, since a backend
// may only become reachable later.
type Preloader struct {
	Recognizers *Cache[Recognizer]
	Summarizers *Cache[Summarizer]
	Log         zerolog.Logger
}

// PreloadAll initializes every registered provider and reports the result.
func (p *Preloader) PreloadAll(ctx context.Context) *PreloadReport {
	p.Log.Info().Msg("preloading registered providers")

	var recResults, sumResults map[string]ProviderStatus

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recResults = preloadBranch(gctx, p.Recognizers, p.Log)
		return nil
	})
	g.Go(func() error {
		sumResults = preloadBranch(gctx, p.Summarizers, p.Log)
		return nil
	})
	_ = g.Wait() // branches capture their own failures

	report := &PreloadReport{
		Recognizers: recResults,
		Summarizers: sumResults,
	}
	for name, st := range recResults {
		report.Total++
		if st.Success {
			report.Successful++
		} else {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("asr provider %s: %s", name, st.Error))
		}
	}
	for name, st := range sumResults {
		report.Total++
		if st.Success {
			report.Successful++
		} else {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("summary provider %s: %s", name, st.Error))
		}
	}

	p.Log.Info().
		Int("total", report.Total).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Msg("provider preload complete")
	return report
}

func preloadBranch[T Provider](ctx context.Context, cache *Cache[T], log zerolog.Logger) map[string]ProviderStatus {
	results := make(map[string]ProviderStatus)
	for _, name := range cache.Names() {
		inst, err := cache.GetOrCreate(ctx, name)
		if err != nil {
			log.Warn().Err(err).
				Str("kind", string(cache.Kind())).
				Str("provider", name).
				Msg("provider preload failed")
			results[name] = ProviderStatus{Success: false, Error: err.Error()}
			continue
		}
		info := inst.Info()
		results[name] = ProviderStatus{Success: true, Info: &info}
		log.Info().
			Str("kind", string(cache.Kind())).
			Str("provider", name).
			Msg("provider preloaded")
	}
	return results
}
