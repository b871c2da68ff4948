// Package assistant wraps the asynchronous thread/run protocol of the
// conversational backend plus its synchronous vision endpoint.
package assistant

import "time"

// RunStatus is the lifecycle state of one asynchronous processing job.
type RunStatus string

const (
	RunQueued     RunStatus = "queued"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
	RunExpired    RunStatus = "expired"
)

// Terminal reports whether the status ends the run's lifecycle.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// Thread is an opaque handle to remote conversation state. It is immutable
// once created; "updating" a conversation means appending messages remotely.
type Thread struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Run is one in-flight remote processing job.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Status    RunStatus `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// Message is one message stored on a thread.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	RunID     string    `json:"run_id,omitempty"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Content is the payload of one submitted turn: plain text, optionally with
// one inline image (vision) or one uploaded file reference.
type Content struct {
	Text string
	// Image holds raw image bytes for the synchronous vision path.
	Image []byte
	// ImageMime is the declared media type of Image.
	ImageMime string
	// FileName and File hold a generic attachment uploaded to the backend
	// and referenced from the appended message.
	FileName string
	File     []byte
}

// HasImage reports whether the content routes through the vision path.
func (c Content) HasImage() bool { return len(c.Image) > 0 }

// Reply is the completed assistant answer for one submitted turn.
type Reply struct {
	Text  string
	RunID string
}

// Grounding is the transcription context prepended to a submitted query so
// the model sees the media content before the question.
type Grounding struct {
	Title      string
	Author     string
	SourceURL  string
	Transcript string
}
