package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Optional result persistence; empty disables the store.
	DatabaseURL string `env:"DATABASE_URL"`

	TempDir     string `env:"TEMP_DIR"`
	OutputDir   string `env:"OUTPUT_DIR" envDefault:"./output"`
	MaxUploadMB int64  `env:"MAX_UPLOAD_MB" envDefault:"500"`
	SampleRate  int    `env:"SAMPLE_RATE" envDefault:"16000"`

	DefaultRecognizer string `env:"DEFAULT_ASR_SERVICE" envDefault:"funasr"`
	DefaultSummarizer string `env:"DEFAULT_LLM_SERVICE" envDefault:"ernie"`

	FunASRHost      string `env:"FUNASR_HOST" envDefault:"127.0.0.1"`
	FunASRPort      int    `env:"FUNASR_PORT" envDefault:"10095"`
	FunASRUseSSL    bool   `env:"FUNASR_USE_SSL" envDefault:"true"`
	FunASRMode      string `env:"FUNASR_MODE" envDefault:"offline"`
	FunASRChunkSize string `env:"FUNASR_CHUNK_SIZE" envDefault:"5,10,5"`

	ErnieAPIKey       string        `env:"ERNIE_API_KEY"`
	ErnieBaseURL      string        `env:"ERNIE_BASE_URL" envDefault:"https://qianfan.baidubce.com/v2"`
	ErnieModel        string        `env:"ERNIE_MODEL" envDefault:"ernie-speed-8k"`
	ErnieTemperature  float64       `env:"ERNIE_TEMPERATURE" envDefault:"0.3"`
	ErnieTopP         float64       `env:"ERNIE_TOP_P" envDefault:"0.7"`
	ErniePenaltyScore float64       `env:"ERNIE_PENALTY_SCORE" envDefault:"1.0"`
	ErnieMaxTokens    int           `env:"ERNIE_MAX_TOKENS" envDefault:"1000"`
	ErnieTimeout      time.Duration `env:"ERNIE_TIMEOUT" envDefault:"30s"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	OutputDir   string
	DatabaseURL string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.OutputDir != "" {
		cfg.OutputDir = overrides.OutputDir
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}

	return cfg, nil
}
