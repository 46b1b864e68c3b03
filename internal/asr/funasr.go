// Package asr implements the FunASR websocket recognition provider.
package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/snarg/voxbridge/internal/provider"
)

const (
	// ProviderName is the registry key for this recognizer.
	ProviderName = "funasr"

	serviceVersion = "1.0"

	pingTimeout      = 10 * time.Second
	recognizeTimeout = 5 * time.Minute

	// audioChunkBytes is the binary frame size for streaming audio to the
	// server; FunASR reassembles regardless of framing.
	audioChunkBytes = 32 * 1024

	sampleRate = 16000
)

// Config locates and parameterizes the FunASR server.
type Config struct {
	Host      string
	Port      int
	UseSSL    bool
	Mode      string // "offline", "online" or "2pass"
	ChunkSize string // e.g. "5,10,5"
}

// Client is a websocket client for a FunASR-style recognition server.
// It implements provider.Recognizer.
type Client struct {
	cfg Config
	log zerolog.Logger
}

// New creates a FunASR client. Zero-value config fields get server defaults.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 10095
	}
	if cfg.Mode == "" {
		cfg.Mode = "offline"
	}
	if cfg.ChunkSize == "" {
		cfg.ChunkSize = "5,10,5"
	}
	return &Client{
		cfg: cfg,
		log: log.With().Str("provider", ProviderName).Logger(),
	}
}

// Info implements provider.Provider.
func (c *Client) Info() provider.ServiceInfo {
	return provider.ServiceInfo{
		Name:        ProviderName,
		Kind:        provider.KindRecognizer,
		Version:     serviceVersion,
		Description: "FunASR websocket speech recognition",
		Detail: map[string]any{
			"host":       c.cfg.Host,
			"port":       c.cfg.Port,
			"use_ssl":    c.cfg.UseSSL,
			"mode":       c.cfg.Mode,
			"chunk_size": c.cfg.ChunkSize,
		},
	}
}

// Ping implements provider.Provider: a short synthetic-silence round trip
// within a fixed budget. Any fault maps to false.
func (c *Client) Ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.run(ctx, silencePCM(100*time.Millisecond), "ping.wav"); err != nil {
		c.log.Debug().Err(err).Msg("funasr ping failed")
		return false
	}
	return true
}

// Recognize implements provider.Recognizer.
func (c *Client) Recognize(ctx context.Context, audioPath string) ([]provider.Segment, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	segments, err := c.run(ctx, stripWAVHeader(data), filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("funasr: %w", err)
	}
	return segments, nil
}

// handshake is the first message of a recognition session.
type handshake struct {
	Mode          string `json:"mode"`
	ChunkSize     []int  `json:"chunk_size"`
	ChunkInterval int    `json:"chunk_interval"`
	WavName       string `json:"wav_name"`
	WavFormat     string `json:"wav_format"`
	IsSpeaking    bool   `json:"is_speaking"`
	AudioFs       int    `json:"audio_fs"`
	Itn           bool   `json:"itn"`
}

// result is a recognition message from the server.
type result struct {
	Mode       string      `json:"mode"`
	WavName    string      `json:"wav_name"`
	Text       string      `json:"text"`
	IsFinal    bool        `json:"is_final"`
	StampSents []stampSent `json:"stamp_sents"`
}

type stampSent struct {
	TextSeg string `json:"text_seg"`
	Start   int    `json:"start"` // ms
	End     int    `json:"end"`   // ms
	Punc    string `json:"punc"`
	Spk     *int   `json:"spk"`
}

// run performs one full recognition exchange: handshake, audio stream,
// end-of-speech marker, then reads until the final result.
func (c *Client) run(ctx context.Context, pcm []byte, wavName string) ([]provider.Segment, error) {
	conn, _, err := websocket.Dial(ctx, c.url(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url(), err)
	}
	defer conn.Close(websocket.StatusInternalError, "session aborted")
	conn.SetReadLimit(16 << 20)

	hs := handshake{
		Mode:          c.cfg.Mode,
		ChunkSize:     parseChunkSize(c.cfg.ChunkSize),
		ChunkInterval: 10,
		WavName:       wavName,
		WavFormat:     "pcm",
		IsSpeaking:    true,
		AudioFs:       sampleRate,
		Itn:           true,
	}
	payload, err := json.Marshal(hs)
	if err != nil {
		return nil, fmt.Errorf("marshal handshake: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}

	for off := 0; off < len(pcm); off += audioChunkBytes {
		end := off + audioChunkBytes
		if end > len(pcm) {
			end = len(pcm)
		}
		if err := conn.Write(ctx, websocket.MessageBinary, pcm[off:end]); err != nil {
			return nil, fmt.Errorf("send audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"is_speaking": false}`)); err != nil {
		return nil, fmt.Errorf("send end-of-speech: %w", err)
	}

	var segments []provider.Segment
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read result: %w", err)
		}
		var res result
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		segments = append(segments, toSegments(res)...)

		// Offline mode returns one final message; streaming modes mark
		// the last message explicitly.
		if res.IsFinal || res.Mode == "offline" || c.cfg.Mode == "offline" {
			break
		}
	}

	conn.Close(websocket.StatusNormalClosure, "")
	return segments, nil
}

func (c *Client) url() string {
	scheme := "ws"
	if c.cfg.UseSSL {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)}
	return u.String()
}

// toSegments converts a server message into provider segments, preferring
// sentence-level timestamps when present.
func toSegments(res result) []provider.Segment {
	if len(res.StampSents) > 0 {
		segs := make([]provider.Segment, 0, len(res.StampSents))
		for _, s := range res.StampSents {
			start := float64(s.Start) / 1000.0
			end := float64(s.End) / 1000.0
			seg := provider.Segment{
				Text:     s.TextSeg + s.Punc,
				Language: "zh",
				Start:    &start,
				End:      &end,
			}
			if s.Spk != nil {
				seg.Speaker = strconv.Itoa(*s.Spk)
			}
			segs = append(segs, seg)
		}
		return segs
	}
	if res.Text == "" {
		return nil
	}
	return []provider.Segment{{Text: res.Text, Language: "zh"}}
}

// parseChunkSize converts "5,10,5" into the int slice the server expects.
// Malformed input falls back to the server default.
func parseChunkSize(s string) []int {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return []int{5, 10, 5}
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return []int{5, 10, 5}
	}
	return out
}

// silencePCM returns d worth of 16-bit mono silence at the fixed sample rate.
func silencePCM(d time.Duration) []byte {
	frames := int(float64(sampleRate) * d.Seconds())
	return make([]byte, frames*2)
}

// stripWAVHeader returns the PCM payload of a RIFF/WAVE file, locating the
// data chunk. Non-WAV input is returned unchanged.
func stripWAVHeader(b []byte) []byte {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return b
	}
	// Walk the chunk list for "data".
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(uint32(b[off+4]) | uint32(b[off+5])<<8 | uint32(b[off+6])<<16 | uint32(b[off+7])<<24)
		off += 8
		if id == "data" {
			if off+size > len(b) {
				size = len(b) - off
			}
			return b[off : off+size]
		}
		off += size
		if size%2 == 1 {
			off++ // chunks are word-aligned
		}
	}
	return b
}
