package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/voxbridge/internal/config"
	"github.com/snarg/voxbridge/internal/metrics"
	"github.com/snarg/voxbridge/internal/provider"
	"github.com/snarg/voxbridge/internal/store"
)

// Deps collects everything the HTTP surface needs. Store may be nil.
// Startup is polled per request; it may be nil, or return nil while the
// background preload pass is still running.
type Deps struct {
	Pipeline    Processor
	Recognizers *provider.Cache[provider.Recognizer]
	Summarizers *provider.Cache[provider.Summarizer]
	Store       *store.Store
	Startup     func() *provider.PreloadReport
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware. Logger installs the request logger that RequestID
	// binds the correlation id into; Recoverer sits inside both so panic
	// detail lands in that logger.
	r.Use(Logger(log))
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Health and metrics — no auth
	health := NewHealthHandler(deps.Recognizers, deps.Summarizers, deps.Store, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		r.Route("/api/v1", func(r chi.Router) {
			upload := NewUploadHandler(deps.Pipeline, cfg, log)
			r.Post("/upload-audio", upload.Upload)

			summarize := NewSummarizeHandler(deps.Summarizers, cfg.DefaultSummarizer, log)
			r.Post("/summarize", summarize.Summarize)
			r.Post("/summarize/batch", summarize.SummarizeBatch)

			services := NewServicesHandler(deps.Recognizers, deps.Summarizers, deps.Startup, cfg.DefaultRecognizer, cfg.DefaultSummarizer)
			r.Get("/services", services.All)
			r.Get("/asr-services", services.Recognizers)
			r.Get("/summary-services", services.Summarizers)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
