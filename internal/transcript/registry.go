package transcript

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
)

// SourceClass is the platform classification of a media URL.
type SourceClass string

const (
	SourceLongForm  SourceClass = "long_form"
	SourceShortForm SourceClass = "short_form"
	SourceGeneric   SourceClass = "generic"
)

// Registry maps source classes to transcription backends and applies the
// single-hop fallback policy.
type Registry struct {
	providers map[SourceClass]Provider
	fallback  Provider
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		providers: make(map[SourceClass]Provider),
		logger:    log.With(slog.String("service", "transcript")),
	}
}

// Register binds a provider to a source class.
func (r *Registry) Register(class SourceClass, p Provider) {
	r.providers[class] = p
}

// SetFallback sets the secondary provider retried once after a transient
// primary failure.
func (r *Registry) SetFallback(p Provider) {
	r.fallback = p
}

// Backends lists registered backend names for introspection.
func (r *Registry) Backends() []string {
	names := make([]string, 0, len(r.providers)+1)
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	if r.fallback != nil {
		names = append(names, r.fallback.Name()+" (fallback)")
	}
	return names
}

// Classify pattern-matches the host against known platforms.
func Classify(mediaURL string) SourceClass {
	parsed, err := url.Parse(mediaURL)
	if err != nil {
		return SourceGeneric
	}
	host := strings.ToLower(strings.TrimPrefix(parsed.Hostname(), "www."))
	switch {
	case host == "youtube.com" || host == "youtu.be" || host == "m.youtube.com":
		return SourceLongForm
	case host == "tiktok.com" || strings.HasSuffix(host, ".tiktok.com"):
		return SourceShortForm
	}
	return SourceGeneric
}

// Transcribe validates the reference, dispatches to the backend for its
// platform, and retries at most once with the fallback after a transient
// failure. Unrecognized platforms use the generic backend when registered.
func (r *Registry) Transcribe(ctx context.Context, mediaURL string) (Transcript, error) {
	if err := validateReference(mediaURL); err != nil {
		return Transcript{}, err
	}

	class := Classify(mediaURL)
	primary, ok := r.providers[class]
	if !ok {
		primary, ok = r.providers[SourceGeneric]
		if !ok {
			return Transcript{}, ErrUnsupportedSource
		}
	}

	result, err := primary.Transcribe(ctx, mediaURL)
	if err == nil {
		return result, nil
	}
	if r.fallback == nil || r.fallback.Name() == primary.Name() || !Transient(err) {
		return Transcript{}, err
	}

	r.logger.Warn("primary transcription failed, trying fallback",
		slog.String("primary", primary.Name()),
		slog.String("fallback", r.fallback.Name()),
		slog.Any("error", err),
	)
	return r.fallback.Transcribe(ctx, mediaURL)
}

func validateReference(mediaURL string) error {
	trimmed := strings.TrimSpace(mediaURL)
	if trimmed == "" {
		return ErrUnsupportedSource
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ErrUnsupportedSource
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrUnsupportedSource
	}
	if parsed.Host == "" {
		return ErrUnsupportedSource
	}
	return nil
}
