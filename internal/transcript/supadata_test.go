package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSupadataInlineCompletion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"content": "hello world",
			"title":   "Demo",
			"author":  "Alice",
		})
	}))
	t.Cleanup(srv.Close)

	p := NewSupadataProvider(slog.Default(), srv.URL, "key", time.Millisecond, time.Second)
	got, err := p.Transcribe(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "hello world" || got.Title != "Demo" || got.Author != "Alice" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
}

func TestSupadataAsyncJobPolling(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/transcript" {
			_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "job_1"})
			return
		}
		if polls.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "completed", "content": "transcribed"})
	}))
	t.Cleanup(srv.Close)

	p := NewSupadataProvider(slog.Default(), srv.URL, "key", time.Millisecond, time.Second)
	got, err := p.Transcribe(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "transcribed" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
}

func TestSupadataJobTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/transcript" {
			_ = json.NewEncoder(w).Encode(map[string]string{"jobId": "job_1"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
	}))
	t.Cleanup(srv.Close)

	p := NewSupadataProvider(slog.Default(), srv.URL, "key", time.Millisecond, 15*time.Millisecond)
	_, err := p.Transcribe(context.Background(), "https://youtu.be/abc")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSupadataStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"server failure", http.StatusBadGateway, ErrUpstreamUnavailable},
		{"rejected source", http.StatusBadRequest, ErrUnsupportedSource},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			t.Cleanup(srv.Close)

			p := NewSupadataProvider(slog.Default(), srv.URL, "key", time.Millisecond, time.Second)
			_, err := p.Transcribe(context.Background(), "https://youtu.be/abc")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
