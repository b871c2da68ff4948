package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCaptionProviderScrapesTrack(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		page := fmt.Sprintf(`<html><head><title>Demo Video - YouTube</title></head>
<body>"author":"Alice Channel","captionTracks": [{"baseUrl":"%s/captions","languageCode":"en"}]</body></html>`, srv.URL)
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/captions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<transcript><text start="0.0" dur="1.2">hello</text><text start="1.2" dur="0.8">world</text></transcript>`))
	})

	p := NewCaptionProvider(slog.Default())
	got, err := p.Transcribe(context.Background(), srv.URL+"/watch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "hello world" {
		t.Fatalf("unexpected text: %q", got.Text)
	}
	if got.Title != "Demo Video" {
		t.Fatalf("unexpected title: %q", got.Title)
	}
	if got.Author != "Alice Channel" {
		t.Fatalf("unexpected author: %q", got.Author)
	}
}

func TestCaptionProviderPrefersEnglishTrack(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		page := fmt.Sprintf(`"captionTracks": [{"baseUrl":"%s/ar","languageCode":"ar"},{"baseUrl":"%s/en","languageCode":"en-US"}]`, srv.URL, srv.URL)
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/en", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<text>english track</text>`))
	})
	mux.HandleFunc("/ar", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<text>arabic track</text>`))
	})

	p := NewCaptionProvider(slog.Default())
	got, err := p.Transcribe(context.Background(), srv.URL+"/watch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "english track" {
		t.Fatalf("expected english track, got %q", got.Text)
	}
}

func TestCaptionProviderNoTrack(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>no captions here</html>`))
	}))
	t.Cleanup(srv.Close)

	p := NewCaptionProvider(slog.Default())
	_, err := p.Transcribe(context.Background(), srv.URL)
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("expected ErrUnsupportedSource, got %v", err)
	}
}
