// Package transcode converts uploaded audio to the WAV format the
// recognition backends expect, by shelling out to ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrToolMissing reports that ffmpeg is not installed or not in PATH.
// Distinct from a per-input conversion failure.
var ErrToolMissing = errors.New("ffmpeg not found in PATH")

// conversionTimeout bounds a single ffmpeg run.
const conversionTimeout = 5 * time.Minute

// WAVParams are the target output parameters for a conversion.
type WAVParams struct {
	SampleRate int // Hz
	Channels   int
	BitDepth   int    // 16, 24 or 32
	Codec      string // derived from BitDepth when empty
}

// DefaultWAVParams is the 16 kHz mono 16-bit PCM target the recognition
// backends are tuned for.
func DefaultWAVParams() WAVParams {
	return WAVParams{SampleRate: 16000, Channels: 1, BitDepth: 16, Codec: "pcm_s16le"}
}

func (p WAVParams) normalized() WAVParams {
	d := DefaultWAVParams()
	if p.SampleRate == 0 {
		p.SampleRate = d.SampleRate
	}
	if p.Channels == 0 {
		p.Channels = d.Channels
	}
	if p.BitDepth == 0 {
		p.BitDepth = d.BitDepth
	}
	if p.Codec == "" {
		switch p.BitDepth {
		case 24:
			p.Codec = "pcm_s24le"
		case 32:
			p.Codec = "pcm_s32le"
		default:
			p.Codec = "pcm_s16le"
		}
	}
	return p
}

// supportedExtensions are the input formats BatchToWAV picks up.
var supportedExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".aac": true, ".flac": true, ".ogg": true,
	".wma": true, ".amr": true, ".3gp": true, ".opus": true, ".webm": true,
	".mp4": true, ".wav": true,
}

// Transcoder runs ffmpeg conversions into a scoped output directory.
// Re-running the same input with the same params overwrites the same
// output path, so conversions are idempotent.
type Transcoder struct {
	outputDir string
	binary    string // overridable in tests
	log       zerolog.Logger
}

// New creates a transcoder writing into outputDir (created if absent).
func New(outputDir string, log zerolog.Logger) (*Transcoder, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Transcoder{
		outputDir: outputDir,
		binary:    "ffmpeg",
		log:       log.With().Str("component", "transcode").Logger(),
	}, nil
}

// Check reports whether ffmpeg is callable. Call once at startup to log
// the condition early; ToWAV re-checks per call so a tool installed after
// boot is picked up.
func (t *Transcoder) Check() error {
	if _, err := exec.LookPath(t.binary); err != nil {
		return ErrToolMissing
	}
	return nil
}

// ToWAV converts inputPath to a WAV file in the output directory and
// returns the output path. The conversion is bounded at 5 minutes.
func (t *Transcoder) ToWAV(ctx context.Context, inputPath string, params WAVParams) (string, error) {
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("input file: %w", err)
	}
	if err := t.Check(); err != nil {
		return "", err
	}

	params = params.normalized()
	outPath := t.outputPath(inputPath)

	ctx, cancel := context.WithTimeout(ctx, conversionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binary, buildArgs(inputPath, outPath, params)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.log.Debug().
		Str("input", inputPath).
		Str("output", outPath).
		Int("sample_rate", params.SampleRate).
		Int("channels", params.Channels).
		Int("bit_depth", params.BitDepth).
		Msg("transcoding")

	if err := cmd.Run(); err != nil {
		// Partial output is worse than none.
		os.Remove(outPath)
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("transcode timed out after %s", conversionTimeout)
		}
		return "", fmt.Errorf("ffmpeg: %w: %s", err, tailOf(stderr.String()))
	}
	return outPath, nil
}

// BatchToWAV converts every supported audio file directly under dir.
// Per-file failures are logged and skipped; the successfully converted
// output paths are returned.
func (t *Transcoder) BatchToWAV(ctx context.Context, dir string, params WAVParams) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var converted []string
	for _, entry := range entries {
		if entry.IsDir() || !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		out, err := t.ToWAV(ctx, filepath.Join(dir, entry.Name()), params)
		if err != nil {
			t.log.Error().Err(err).Str("file", entry.Name()).Msg("batch transcode failed for file")
			continue
		}
		converted = append(converted, out)
	}
	t.log.Info().Int("converted", len(converted)).Msg("batch transcode complete")
	return converted, nil
}

func (t *Transcoder) outputPath(inputPath string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(t.outputDir, stem+".wav")
}

func buildArgs(inputPath, outPath string, p WAVParams) []string {
	return []string{
		"-i", inputPath,
		"-ar", strconv.Itoa(p.SampleRate),
		"-ac", strconv.Itoa(p.Channels),
		"-c:a", p.Codec,
		"-y",
		outPath,
	}
}

// tailOf returns the last chunk of ffmpeg's stderr, which carries the
// actual failure reason; the preamble is version noise.
func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 512 {
		s = s[len(s)-512:]
	}
	return s
}
