// Package transcript turns media URLs into text transcripts using
// interchangeable backends selected by source platform.
package transcript

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedSource indicates the media reference is malformed or no
	// backend handles its platform.
	ErrUnsupportedSource = errors.New("unsupported media source")
	// ErrUpstreamUnavailable indicates a backend could not be reached or
	// failed server-side.
	ErrUpstreamUnavailable = errors.New("transcription backend unavailable")
	// ErrTimeout indicates an asynchronous transcription job did not finish
	// within the ceiling.
	ErrTimeout = errors.New("transcription timed out")
)

// Transcript is the text of a media source plus minimal metadata.
type Transcript struct {
	Text   string `json:"text"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// Provider produces a transcript for a media URL.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, mediaURL string) (Transcript, error)
}

// Transient reports whether the failure is backend-specific rather than a
// source-validity error, and therefore worth one fallback hop.
func Transient(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrTimeout)
}
