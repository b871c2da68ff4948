package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	captionTrackRe = regexp.MustCompile(`"captionTracks":\s*(\[[^\]]*\])`)
	pageTitleRe    = regexp.MustCompile(`<title>(.*?)</title>`)
	authorRe       = regexp.MustCompile(`"author":"((?:[^"\\]|\\.)*)"`)
	xmlTagRe       = regexp.MustCompile(`<[^>]+>`)
)

// CaptionProvider scrapes the caption track published alongside a long-form
// video page. No API key needed, so it doubles as the fallback when the
// speech-to-text backend is down.
type CaptionProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
}

// NewCaptionProvider creates a caption-scraping provider.
func NewCaptionProvider(log *slog.Logger) *CaptionProvider {
	if log == nil {
		log = slog.Default()
	}
	return &CaptionProvider{
		logger:     log.With(slog.String("provider", "captions")),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *CaptionProvider) Name() string { return "captions" }

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
}

// Transcribe fetches the watch page, locates a caption track, downloads it,
// and strips the timing markup.
func (p *CaptionProvider) Transcribe(ctx context.Context, mediaURL string) (Transcript, error) {
	page, err := p.fetch(ctx, mediaURL)
	if err != nil {
		return Transcript{}, err
	}

	match := captionTrackRe.FindSubmatch(page)
	if match == nil {
		return Transcript{}, fmt.Errorf("%w: no caption track", ErrUnsupportedSource)
	}
	var tracks []captionTrack
	if err := json.Unmarshal(match[1], &tracks); err != nil || len(tracks) == 0 {
		return Transcript{}, fmt.Errorf("%w: unreadable caption track", ErrUnsupportedSource)
	}
	track := pickTrack(tracks)

	captions, err := p.fetch(ctx, track.BaseURL)
	if err != nil {
		return Transcript{}, err
	}

	text := strings.TrimSpace(html.UnescapeString(xmlTagRe.ReplaceAllString(string(captions), " ")))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return Transcript{}, fmt.Errorf("%w: empty captions", ErrUnsupportedSource)
	}

	return Transcript{
		Text:   text,
		Title:  extractTitle(page),
		Author: extractAuthor(page),
	}, nil
}

// pickTrack prefers an English track, else the first one.
func pickTrack(tracks []captionTrack) captionTrack {
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t
		}
	}
	return tracks[0]
}

func extractTitle(page []byte) string {
	match := pageTitleRe.FindSubmatch(page)
	if match == nil {
		return ""
	}
	title := html.UnescapeString(string(match[1]))
	return strings.TrimSpace(strings.TrimSuffix(title, "- YouTube"))
}

func extractAuthor(page []byte) string {
	match := authorRe.FindSubmatch(page)
	if match == nil {
		return ""
	}
	var author string
	if err := json.Unmarshal([]byte(`"`+string(match[1])+`"`), &author); err != nil {
		return ""
	}
	return author
}

func (p *CaptionProvider) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; wisdompen/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d", ErrUnsupportedSource, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
