package middleware_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mesaqr/api/internal/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestRequestLogger(t *testing.T) {
	buf := captureLog(t)

	handler := middleware.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	}))
	req := httptest.NewRequest("POST", "/tables/4/call", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	want := map[string]interface{}{
		"level":  "info",
		"method": "POST",
		"path":   "/tables/4/call",
		"status": float64(http.StatusCreated),
		"bytes":  float64(5),
		"remote": "192.0.2.1:5000",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s: got %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["duration"]; !ok {
		t.Error("missing duration")
	}
}

func TestRequestLogger_ServerErrorLevel(t *testing.T) {
	buf := captureLog(t)

	handler := middleware.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/board", nil))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["level"] != "error" {
		t.Errorf("level: got %v, want error", line["level"])
	}
}

func TestRequestLogger_ImplicitOK(t *testing.T) {
	buf := captureLog(t)

	handler := middleware.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["status"] != float64(http.StatusOK) {
		t.Errorf("status: got %v, want 200", line["status"])
	}
}
