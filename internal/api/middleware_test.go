package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID_Generated(t *testing.T) {
	h := RequestID(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestRequestID_Preserved(t *testing.T) {
	h := RequestID(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id-1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Request-ID"); got != "client-id-1" {
		t.Errorf("X-Request-ID = %q, want the client value preserved", got)
	}
}

func TestRequestID_BoundIntoRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	h := Logger(log)(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hlog.FromRequest(r).Info().Msg("handling")
		w.WriteHeader(http.StatusOK)
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "corr-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	logs := buf.String()
	if !strings.Contains(logs, `"message":"handling"`) {
		t.Fatalf("handler log line missing: %s", logs)
	}
	// both the handler line and the access line must carry the id
	if n := strings.Count(logs, `"request_id":"corr-42"`); n < 2 {
		t.Errorf("request_id on %d log lines, want 2: %s", n, logs)
	}
}

func TestBearerAuth_NoTokenConfigured(t *testing.T) {
	h := BearerAuth("")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth is disabled", rr.Code)
	}
}

func TestBearerAuth_Rejects(t *testing.T) {
	h := BearerAuth("secret")(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer wrong"},
		{"wrong scheme", "Basic secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rr.Code)
			}
		})
	}
}

func TestBearerAuth_Accepts(t *testing.T) {
	h := BearerAuth("secret")(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if body := rr.Body.String(); body != `{"error":"internal server error"}` {
		t.Errorf("body = %q, panic detail must not leak", body)
	}
}

func TestRecoverer_LogsPanicWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	// Same ordering as the server: Logger outermost, then RequestID,
	// then Recoverer.
	h := Logger(log)(RequestID(Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	id := rr.Header().Get("X-Request-ID")
	if id == "" {
		t.Fatal("X-Request-ID not set")
	}
	logs := buf.String()
	if !strings.Contains(logs, "handler exploded") {
		t.Errorf("panic detail missing from logs: %s", logs)
	}
	if !strings.Contains(logs, `"request_id":"`+id+`"`) {
		t.Errorf("panic log line missing request_id %q: %s", id, logs)
	}
	if !strings.Contains(rr.Body.String(), `"request_id":"`+id+`"`) {
		t.Errorf("body = %q, want request_id %q echoed", rr.Body.String(), id)
	}
	if strings.Contains(rr.Body.String(), "exploded") {
		t.Errorf("body = %q, panic detail must not leak", rr.Body.String())
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 for preflight", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Access-Control-Allow-Origin not set")
	}
}
