// Package relay orchestrates one chat turn: validation, optional
// transcription, submission to the assistant backend, and streamed delivery.
package relay

import (
	"errors"
	"strings"
)

// ErrEmptyTurn indicates a turn with no text, attachment, media URL, or
// pre-supplied transcript.
var ErrEmptyTurn = errors.New("empty turn")

// AttachmentKind classifies an attachment at ingress.
type AttachmentKind string

const (
	// KindImage routes through the synchronous vision path.
	KindImage AttachmentKind = "image"
	// KindFile is uploaded to the backend and referenced from the message.
	KindFile AttachmentKind = "file"
)

// Attachment is one uploaded file of an inbound turn.
type Attachment struct {
	Name string
	Mime string
	Data []byte
}

// Kind classifies the attachment by declared media type.
func (a Attachment) Kind() AttachmentKind {
	if strings.HasPrefix(strings.ToLower(a.Mime), "image/") {
		return KindImage
	}
	return KindFile
}

// Turn is one inbound request.
type Turn struct {
	SessionID   string
	Message     string
	Attachments []Attachment
	MediaURL    string

	// Pre-supplied transcription, skipping the transcription step.
	Transcript string
	Title      string
	Author     string
}

// Empty reports whether the turn carries no content at all.
func (t Turn) Empty() bool {
	return strings.TrimSpace(t.Message) == "" &&
		len(t.Attachments) == 0 &&
		strings.TrimSpace(t.MediaURL) == "" &&
		strings.TrimSpace(t.Transcript) == ""
}

// primaryAttachment picks the single attachment processed for this turn:
// the first image if any (vision wins), else the first attachment. Extras
// are ignored.
func (t Turn) primaryAttachment() (Attachment, bool) {
	for _, a := range t.Attachments {
		if a.Kind() == KindImage {
			return a, true
		}
	}
	if len(t.Attachments) > 0 {
		return t.Attachments[0], true
	}
	return Attachment{}, false
}
