package asr

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

// fakeServer speaks just enough of the FunASR websocket protocol for one
// offline exchange: read the handshake, drain audio until the end-of-speech
// marker, reply with a canned result.
func fakeServer(t *testing.T, reply result, gotHandshake *handshake) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusInternalError, "test over")
		ctx := r.Context()

		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Errorf("read handshake: %v", err)
			return
		}
		if gotHandshake != nil {
			if err := json.Unmarshal(data, gotHandshake); err != nil {
				t.Errorf("decode handshake: %v", err)
				return
			}
		}

		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				t.Errorf("read audio: %v", err)
				return
			}
			if typ == websocket.MessageText {
				var msg struct {
					IsSpeaking *bool `json:"is_speaking"`
				}
				if json.Unmarshal(data, &msg) == nil && msg.IsSpeaking != nil && !*msg.IsSpeaking {
					break
				}
			}
		}

		payload, _ := json.Marshal(reply)
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			t.Errorf("write result: %v", err)
		}
	}))
}

func clientFor(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return New(Config{Host: host, Port: port, UseSSL: false}, zerolog.Nop())
}

func TestClient_Defaults(t *testing.T) {
	c := New(Config{}, zerolog.Nop())
	if c.cfg.Host != "127.0.0.1" || c.cfg.Port != 10095 {
		t.Errorf("defaults = %s:%d, want 127.0.0.1:10095", c.cfg.Host, c.cfg.Port)
	}
	if c.cfg.Mode != "offline" || c.cfg.ChunkSize != "5,10,5" {
		t.Errorf("defaults = %s/%s, want offline/5,10,5", c.cfg.Mode, c.cfg.ChunkSize)
	}
}

func TestClient_URL(t *testing.T) {
	plain := New(Config{Host: "example.com", Port: 9000}, zerolog.Nop())
	if got := plain.url(); got != "ws://example.com:9000" {
		t.Errorf("url = %q, want ws://example.com:9000", got)
	}
	tls := New(Config{Host: "example.com", Port: 9000, UseSSL: true}, zerolog.Nop())
	if got := tls.url(); got != "wss://example.com:9000" {
		t.Errorf("url = %q, want wss://example.com:9000", got)
	}
}

func TestClient_RecognizeHandshakeAndResult(t *testing.T) {
	var hs handshake
	srv := fakeServer(t, result{Mode: "offline", Text: "你好世界", IsFinal: true}, &hs)
	defer srv.Close()

	c := clientFor(t, srv)
	audio := filepath.Join(t.TempDir(), "hello.wav")
	if err := os.WriteFile(audio, silencePCM(50*time.Millisecond), 0o644); err != nil {
		t.Fatal(err)
	}

	segments, err := c.Recognize(context.Background(), audio)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 || segments[0].Text != "你好世界" {
		t.Errorf("segments = %+v, want single 你好世界", segments)
	}

	if hs.Mode != "offline" {
		t.Errorf("handshake mode = %q, want offline", hs.Mode)
	}
	if hs.WavName != "hello.wav" {
		t.Errorf("handshake wav_name = %q, want hello.wav", hs.WavName)
	}
	if hs.WavFormat != "pcm" || hs.AudioFs != 16000 || !hs.IsSpeaking || !hs.Itn {
		t.Errorf("handshake = %+v, want pcm/16000/is_speaking/itn", hs)
	}
	if len(hs.ChunkSize) != 3 || hs.ChunkSize[0] != 5 || hs.ChunkSize[1] != 10 || hs.ChunkSize[2] != 5 {
		t.Errorf("handshake chunk_size = %v, want [5 10 5]", hs.ChunkSize)
	}
	if hs.ChunkInterval != 10 {
		t.Errorf("handshake chunk_interval = %d, want 10", hs.ChunkInterval)
	}
}

func TestClient_PingHealthy(t *testing.T) {
	srv := fakeServer(t, result{Mode: "offline", Text: "", IsFinal: true}, nil)
	defer srv.Close()

	if !clientFor(t, srv).Ping(context.Background()) {
		t.Error("Ping = false against a responding server")
	}
}

func TestClient_PingUnreachable(t *testing.T) {
	srv := fakeServer(t, result{}, nil)
	c := clientFor(t, srv)
	srv.Close()

	if c.Ping(context.Background()) {
		t.Error("Ping = true against a closed server")
	}
}

func TestToSegments_StampSents(t *testing.T) {
	spk := 2
	res := result{
		Text: "全文",
		StampSents: []stampSent{
			{TextSeg: "你好", Start: 0, End: 1200, Punc: "，", Spk: &spk},
			{TextSeg: "世界", Start: 1200, End: 2400, Punc: "。"},
		},
	}
	segs := toSegments(res)
	if len(segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(segs))
	}
	if segs[0].Text != "你好，" {
		t.Errorf("Text = %q, want 你好，", segs[0].Text)
	}
	if segs[0].Speaker != "2" {
		t.Errorf("Speaker = %q, want 2", segs[0].Speaker)
	}
	if segs[1].Speaker != "" {
		t.Errorf("Speaker = %q, want empty without spk", segs[1].Speaker)
	}
	if *segs[1].Start != 1.2 || *segs[1].End != 2.4 {
		t.Errorf("times = %v..%v, want 1.2..2.4 seconds", *segs[1].Start, *segs[1].End)
	}
}

func TestToSegments_TextFallback(t *testing.T) {
	segs := toSegments(result{Text: "只有文本"})
	if len(segs) != 1 || segs[0].Text != "只有文本" {
		t.Errorf("segments = %+v, want single text segment", segs)
	}
	if segs := toSegments(result{}); segs != nil {
		t.Errorf("segments = %+v, want nil for an empty result", segs)
	}
}

func TestParseChunkSize(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"5,10,5", []int{5, 10, 5}},
		{" 4, 8, 4 ", []int{4, 8, 4}},
		{"garbage", []int{5, 10, 5}},
		{"", []int{5, 10, 5}},
	}
	for _, tt := range tests {
		got := parseChunkSize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("parseChunkSize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("parseChunkSize(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestStripWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6}

	var wav []byte
	wav = append(wav, "RIFF"...)
	wav = binary.LittleEndian.AppendUint32(wav, uint32(4+8+16+8+len(pcm)))
	wav = append(wav, "WAVE"...)
	wav = append(wav, "fmt "...)
	wav = binary.LittleEndian.AppendUint32(wav, 16)
	wav = append(wav, make([]byte, 16)...)
	wav = append(wav, "data"...)
	wav = binary.LittleEndian.AppendUint32(wav, uint32(len(pcm)))
	wav = append(wav, pcm...)

	got := stripWAVHeader(wav)
	if len(got) != len(pcm) {
		t.Fatalf("payload length = %d, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("payload = %v, want %v", got, pcm)
		}
	}
}

func TestStripWAVHeader_PassthroughNonWAV(t *testing.T) {
	raw := []byte{9, 9, 9, 9, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := stripWAVHeader(raw)
	if len(got) != len(raw) {
		t.Errorf("non-WAV input length changed: %d -> %d", len(raw), len(got))
	}
}

func TestSilencePCM(t *testing.T) {
	b := silencePCM(100 * time.Millisecond)
	want := 16000 / 10 * 2 // frames * 2 bytes
	if len(b) != want {
		t.Errorf("len = %d, want %d", len(b), want)
	}
	for _, v := range b {
		if v != 0 {
			t.Fatal("silence is not zeroed")
		}
	}
}
