package transcript

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

type stubProvider struct {
	name   string
	result Transcript
	err    error
	calls  int
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Transcribe(ctx context.Context, mediaURL string) (Transcript, error) {
	s.calls++
	return s.result, s.err
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want SourceClass
	}{
		{"https://www.youtube.com/watch?v=abc", SourceLongForm},
		{"https://youtu.be/abc", SourceLongForm},
		{"https://m.youtube.com/watch?v=abc", SourceLongForm},
		{"https://www.tiktok.com/@user/video/123", SourceShortForm},
		{"https://vm.tiktok.com/xyz", SourceShortForm},
		{"https://podcasts.example.com/ep1.mp3", SourceGeneric},
	}
	for _, tt := range tests {
		if got := Classify(tt.url); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.url, got, tt.want)
		}
	}
}

func TestTranscribeRejectsMalformedReferences(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(slog.Default())
	registry.Register(SourceGeneric, &stubProvider{name: "generic"})

	for _, bad := range []string{"", "   ", "not a url", "ftp://host/file", "https://"} {
		if _, err := registry.Transcribe(context.Background(), bad); !errors.Is(err, ErrUnsupportedSource) {
			t.Errorf("Transcribe(%q): expected ErrUnsupportedSource, got %v", bad, err)
		}
	}
}

func TestTranscribeUnknownPlatformWithoutGeneric(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(slog.Default())
	registry.Register(SourceLongForm, &stubProvider{name: "longform"})

	_, err := registry.Transcribe(context.Background(), "https://podcasts.example.com/ep1.mp3")
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("expected ErrUnsupportedSource, got %v", err)
	}
}

func TestTranscribeFallsThroughToGeneric(t *testing.T) {
	t.Parallel()

	generic := &stubProvider{name: "generic", result: Transcript{Text: "direct"}}
	registry := NewRegistry(slog.Default())
	registry.Register(SourceGeneric, generic)

	got, err := registry.Transcribe(context.Background(), "https://podcasts.example.com/ep1.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "direct" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
}

func TestTranscribeFallbackSingleHop(t *testing.T) {
	t.Parallel()

	primary := &stubProvider{name: "primary", err: ErrUpstreamUnavailable}
	fallback := &stubProvider{name: "fallback", result: Transcript{Text: "saved", Title: "T"}}
	registry := NewRegistry(slog.Default())
	registry.Register(SourceLongForm, primary)
	registry.SetFallback(fallback)

	got, err := registry.Transcribe(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "saved" {
		t.Fatalf("unexpected transcript: %+v", got)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected 1+1 calls, got %d+%d", primary.calls, fallback.calls)
	}
}

func TestTranscribeNoFallbackOnSourceError(t *testing.T) {
	t.Parallel()

	// Source-validity failures are not retried.
	primary := &stubProvider{name: "primary", err: ErrUnsupportedSource}
	fallback := &stubProvider{name: "fallback", result: Transcript{Text: "never"}}
	registry := NewRegistry(slog.Default())
	registry.Register(SourceLongForm, primary)
	registry.SetFallback(fallback)

	_, err := registry.Transcribe(context.Background(), "https://youtu.be/abc")
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("expected ErrUnsupportedSource, got %v", err)
	}
	if fallback.calls != 0 {
		t.Fatalf("fallback invoked on source error")
	}
}

func TestTranscribeFallbackFailurePropagates(t *testing.T) {
	t.Parallel()

	// One hop only: the fallback's failure is final.
	primary := &stubProvider{name: "primary", err: ErrTimeout}
	fallback := &stubProvider{name: "fallback", err: ErrUpstreamUnavailable}
	registry := NewRegistry(slog.Default())
	registry.Register(SourceShortForm, primary)
	registry.SetFallback(fallback)

	_, err := registry.Transcribe(context.Background(), "https://www.tiktok.com/@u/video/1")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected fallback error, got %v", err)
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Fatalf("expected single hop, got %d+%d calls", primary.calls, fallback.calls)
	}
}
