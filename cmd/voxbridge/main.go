package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/voxbridge/internal/api"
	"github.com/snarg/voxbridge/internal/asr"
	"github.com/snarg/voxbridge/internal/config"
	"github.com/snarg/voxbridge/internal/llm"
	"github.com/snarg/voxbridge/internal/pipeline"
	"github.com/snarg/voxbridge/internal/provider"
	"github.com/snarg/voxbridge/internal/store"
	"github.com/snarg/voxbridge/internal/transcode"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	flag.StringVar(&overrides.OutputDir, "output-dir", "", "directory for transcoded audio")
	flag.StringVar(&overrides.DatabaseURL, "db", "", "postgres connection string")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("voxbridge starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Result store (optional)
	var st *store.Store
	if cfg.DatabaseURL != "" {
		storeLog := log.With().Str("component", "store").Logger()
		st, err = store.Connect(ctx, cfg.DatabaseURL, storeLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer st.Close()
	} else {
		log.Info().Msg("no DATABASE_URL configured, results will not be persisted")
	}

	// Provider registries
	recognizers := provider.NewRegistry[provider.Recognizer](provider.KindRecognizer, log)
	summarizers := provider.NewRegistry[provider.Summarizer](provider.KindSummarizer, log)

	asrLog := log.With().Str("component", "asr").Logger()
	recognizers.Register(asr.ProviderName, func() (provider.Recognizer, error) {
		return asr.New(asr.Config{
			Host:      cfg.FunASRHost,
			Port:      cfg.FunASRPort,
			UseSSL:    cfg.FunASRUseSSL,
			Mode:      cfg.FunASRMode,
			ChunkSize: cfg.FunASRChunkSize,
		}, asrLog), nil
	})

	llmLog := log.With().Str("component", "llm").Logger()
	summarizers.Register(llm.ProviderName, func() (provider.Summarizer, error) {
		return llm.New(llm.Config{
			APIKey:       cfg.ErnieAPIKey,
			BaseURL:      cfg.ErnieBaseURL,
			Model:        cfg.ErnieModel,
			Temperature:  cfg.ErnieTemperature,
			TopP:         cfg.ErnieTopP,
			PenaltyScore: cfg.ErniePenaltyScore,
			MaxTokens:    cfg.ErnieMaxTokens,
			Timeout:      cfg.ErnieTimeout,
		}, llmLog)
	})

	recognizers.Freeze()
	summarizers.Freeze()

	recognizerCache := provider.NewCache(recognizers, log)
	summarizerCache := provider.NewCache(summarizers, log)

	// Preload: warm and probe every provider in the background so the
	// listener opens immediately even when every backend is down and the
	// probes burn their full retry budgets. Failures are reported, not
	// fatal; a backend can come up after we do.
	preloader := &provider.Preloader{
		Recognizers: recognizerCache,
		Summarizers: summarizerCache,
		Log:         log.With().Str("component", "preload").Logger(),
	}
	var startupReport atomic.Pointer[provider.PreloadReport]
	go func() {
		startupReport.Store(preloader.PreloadAll(ctx))
	}()

	// Transcoder
	transcoder, err := transcode.New(cfg.OutputDir, log.With().Str("component", "transcode").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize transcoder")
	}
	if err := transcoder.Check(); err != nil {
		log.Warn().Err(err).Msg("ffmpeg not found, uploads will fail until it is installed")
	}

	// Pipeline
	orchestrator := pipeline.New(pipeline.Options{
		Transcoder:  transcoder,
		Recognizers: recognizerCache,
		Summarizers: summarizerCache,
		Store:       st,
		TempDir:     cfg.TempDir,
		WAVParams:   transcode.WAVParams{SampleRate: cfg.SampleRate},
		Log:         log,
	})

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		Pipeline:    orchestrator,
		Recognizers: recognizerCache,
		Summarizers: summarizerCache,
		Store:       st,
		Startup:     startupReport.Load,
	}, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("voxbridge stopped")
}
