package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

type stubPinger struct {
	err         error
	assistantID string
}

func (s *stubPinger) Ping(ctx context.Context) error { return s.err }
func (s *stubPinger) AssistantID() string            { return s.assistantID }
func (s *stubPinger) Models() (string, string)       { return "gpt-4-1106-preview", "gpt-4o" }

func doHealth(t *testing.T, backend BackendPinger) healthResponse {
	t.Helper()
	handler := NewHealthHandler(slog.Default(), backend, []string{"supadata", "captions"}, true)
	e := echo.New()
	handler.Register(e)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealthReportsBackend(t *testing.T) {
	t.Parallel()

	resp := doHealth(t, &stubPinger{assistantID: "asst_abc"})
	if resp.Status != "ok" {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	if !resp.Backend.Reachable {
		t.Fatal("backend should be reachable")
	}
	if resp.Backend.AssistantID != "asst_abc" {
		t.Fatalf("unexpected assistant id %q", resp.Backend.AssistantID)
	}
	if resp.Backend.ChatModel != "gpt-4-1106-preview" || resp.Backend.VisionModel != "gpt-4o" {
		t.Fatalf("unexpected models %q %q", resp.Backend.ChatModel, resp.Backend.VisionModel)
	}
	if len(resp.Feature.TranscriptionBackends) != 2 || !resp.Feature.CacheEnabled {
		t.Fatalf("unexpected features %+v", resp.Feature)
	}
}

func TestHealthDegradedWhenBackendDown(t *testing.T) {
	t.Parallel()

	resp := doHealth(t, &stubPinger{err: errors.New("connection refused")})
	if resp.Status != "degraded" {
		t.Fatalf("unexpected status %q", resp.Status)
	}
	if resp.Backend.Reachable {
		t.Fatal("backend should be unreachable")
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	handler := NewHealthHandler(slog.Default(), &stubPinger{}, nil, false)
	e := echo.New()
	handler.Register(e)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body %v", body)
	}
}
