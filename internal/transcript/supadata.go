package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wisdompenai/wisdompen/internal/poll"
)

const defaultSupadataURL = "https://api.supadata.ai"

// SupadataProvider calls the Supadata transcription API. Short sources
// complete inline; longer ones return a job that is polled to completion.
type SupadataProvider struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	ceiling      time.Duration
	logger       *slog.Logger
	httpClient   *http.Client
}

// NewSupadataProvider creates a Supadata-backed provider.
func NewSupadataProvider(log *slog.Logger, baseURL, apiKey string, pollInterval, ceiling time.Duration) *SupadataProvider {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultSupadataURL
	}
	return &SupadataProvider{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		ceiling:      ceiling,
		logger:       log.With(slog.String("provider", "supadata")),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *SupadataProvider) Name() string { return "supadata" }

type supadataResult struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Content string `json:"content"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	Error   string `json:"error"`
}

// Transcribe requests a transcript; when the API answers with a job handle
// instead of content, the job is polled until completion or the ceiling.
func (p *SupadataProvider) Transcribe(ctx context.Context, mediaURL string) (Transcript, error) {
	query := url.Values{"url": {mediaURL}, "text": {"true"}}
	result, err := p.get(ctx, "/v1/transcript?"+query.Encode())
	if err != nil {
		return Transcript{}, err
	}
	if result.JobID == "" {
		return p.finish(result)
	}

	p.logger.Info("transcription job started", slog.String("job_id", result.JobID))
	started := time.Now()

	var final supadataResult
	err = poll.Until(ctx, p.pollInterval, p.ceiling, func(ctx context.Context) (bool, error) {
		current, err := p.get(ctx, "/v1/transcript/"+result.JobID)
		if err != nil {
			return false, err
		}
		switch current.Status {
		case "completed":
			final = current
			return true, nil
		case "failed":
			return false, fmt.Errorf("%w: job failed: %s", ErrUpstreamUnavailable, current.Error)
		}
		return false, nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrCeilingExceeded) {
			p.logger.Warn("transcription job timed out",
				slog.String("job_id", result.JobID),
				slog.Duration("elapsed", time.Since(started)),
			)
			return Transcript{}, ErrTimeout
		}
		return Transcript{}, err
	}
	return p.finish(final)
}

func (p *SupadataProvider) finish(result supadataResult) (Transcript, error) {
	if strings.TrimSpace(result.Content) == "" {
		return Transcript{}, fmt.Errorf("%w: empty transcript", ErrUpstreamUnavailable)
	}
	return Transcript{Text: result.Content, Title: result.Title, Author: result.Author}, nil
}

func (p *SupadataProvider) get(ctx context.Context, path string) (supadataResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return supadataResult{}, err
	}
	req.Header.Set("x-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return supadataResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return supadataResult{}, err
	}
	switch {
	case resp.StatusCode >= 500:
		return supadataResult{}, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		p.logger.Warn("supadata rejected source", slog.Int("status", resp.StatusCode))
		return supadataResult{}, fmt.Errorf("%w: status %d", ErrUnsupportedSource, resp.StatusCode)
	}

	var parsed supadataResult
	if err := json.Unmarshal(body, &parsed); err != nil {
		return supadataResult{}, fmt.Errorf("parse supadata response: %w", err)
	}
	return parsed, nil
}
