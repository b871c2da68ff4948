package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/wisdompenai/wisdompen/internal/assistant"
	"github.com/wisdompenai/wisdompen/internal/session"
	"github.com/wisdompenai/wisdompen/internal/stream"
	"github.com/wisdompenai/wisdompen/internal/transcript"
)

// Submitter sends one turn against a thread and returns the completed reply.
type Submitter interface {
	Submit(ctx context.Context, thread assistant.Thread, content assistant.Content) (assistant.Reply, error)
}

// Transcriber produces a transcript for a media URL.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (transcript.Transcript, error)
}

// ThreadSource resolves a session to its conversation thread and serializes
// turns per session.
type ThreadSource interface {
	GetOrCreate(ctx context.Context, sessionID string) (assistant.Thread, error)
	Lock(sessionID string) func()
}

// Orchestrator drives one inbound turn through validation, optional
// transcription, submission, and streaming. It is the sole translator from
// typed failures to the single user-facing error chunk.
type Orchestrator struct {
	sessions    ThreadSource
	client      Submitter
	transcriber Transcriber
	emitter     *stream.Emitter
	cache       *Cache
	logger      *slog.Logger
}

// NewOrchestrator wires the turn pipeline. transcriber and cache may be nil.
func NewOrchestrator(log *slog.Logger, sessions ThreadSource, client Submitter, transcriber Transcriber, emitter *stream.Emitter, cache *Cache) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		sessions:    sessions,
		client:      client,
		transcriber: transcriber,
		emitter:     emitter,
		cache:       cache,
		logger:      log.With(slog.String("service", "relay")),
	}
}

// HandleTurn processes one turn and streams the outcome to sink. The sink is
// always terminated with the end marker, error paths included.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn, sink stream.Sink) error {
	started := time.Now()

	if turn.Empty() {
		o.logger.Info("turn rejected", slog.String("reason", "empty"))
		_ = o.emitter.EmitError(ctx, sink, userMessage(ErrEmptyTurn))
		return ErrEmptyTurn
	}

	sessionID := strings.TrimSpace(turn.SessionID)
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}

	// One turn at a time per session, in arrival order.
	unlock := o.sessions.Lock(sessionID)
	defer unlock()

	log := o.logger.With(slog.String("session_id", sessionID))

	var cacheKey string
	if o.cache != nil {
		cacheKey = o.cache.Key(turn)
		if reply, ok := o.cache.Get(cacheKey); ok {
			log.Info("reply served from cache", slog.Duration("elapsed", time.Since(started)))
			return o.emitter.Emit(ctx, sink, reply)
		}
	}

	grounding, err := o.resolveGrounding(ctx, turn, log)
	if err != nil {
		// Transcription failures short-circuit: the backend is never called.
		_ = o.emitter.EmitError(ctx, sink, userMessage(err))
		return err
	}

	content := o.buildContent(turn, grounding)

	thread, err := o.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		log.Error("thread resolution failed", slog.Any("error", err))
		_ = o.emitter.EmitError(ctx, sink, userMessage(err))
		return err
	}

	reply, err := o.client.Submit(ctx, thread, content)
	if err != nil {
		var runErr *assistant.RunFailedError
		switch {
		case errors.As(err, &runErr):
			log.Error("run failed",
				slog.String("thread_id", thread.ID),
				slog.String("run_id", runErr.RunID),
				slog.String("status", string(runErr.Status)),
				slog.Duration("elapsed", time.Since(started)),
			)
		default:
			log.Error("submit failed",
				slog.String("thread_id", thread.ID),
				slog.Duration("elapsed", time.Since(started)),
				slog.Any("error", err),
			)
		}
		_ = o.emitter.EmitError(ctx, sink, userMessage(err))
		return err
	}

	if o.cache != nil {
		o.cache.Put(cacheKey, reply.Text)
	}

	log.Info("turn completed",
		slog.String("thread_id", thread.ID),
		slog.String("run_id", reply.RunID),
		slog.Duration("elapsed", time.Since(started)),
	)
	return o.emitter.Emit(ctx, sink, reply.Text)
}

// resolveGrounding returns the transcription context for the turn: the
// pre-supplied transcript when present, a fresh transcription when a media
// URL was given, else nothing.
func (o *Orchestrator) resolveGrounding(ctx context.Context, turn Turn, log *slog.Logger) (assistant.Grounding, error) {
	if strings.TrimSpace(turn.Transcript) != "" {
		return assistant.Grounding{
			Title:      turn.Title,
			Author:     turn.Author,
			SourceURL:  turn.MediaURL,
			Transcript: turn.Transcript,
		}, nil
	}
	if strings.TrimSpace(turn.MediaURL) == "" {
		return assistant.Grounding{}, nil
	}
	if o.transcriber == nil {
		return assistant.Grounding{}, transcript.ErrUnsupportedSource
	}

	started := time.Now()
	result, err := o.transcriber.Transcribe(ctx, turn.MediaURL)
	if err != nil {
		log.Error("transcription failed",
			slog.String("media_url", turn.MediaURL),
			slog.Duration("elapsed", time.Since(started)),
			slog.Any("error", err),
		)
		return assistant.Grounding{}, err
	}
	log.Info("media transcribed",
		slog.String("media_url", turn.MediaURL),
		slog.Duration("elapsed", time.Since(started)),
	)
	return assistant.Grounding{
		Title:      result.Title,
		Author:     result.Author,
		SourceURL:  turn.MediaURL,
		Transcript: result.Text,
	}, nil
}

func (o *Orchestrator) buildContent(turn Turn, grounding assistant.Grounding) assistant.Content {
	text := turn.Message
	if strings.TrimSpace(grounding.Transcript) != "" {
		text = assistant.ComposeGrounded(grounding, turn.Message)
	}

	content := assistant.Content{Text: text}
	attachment, ok := turn.primaryAttachment()
	if !ok {
		return content
	}
	switch attachment.Kind() {
	case KindImage:
		content.Image = attachment.Data
		content.ImageMime = attachment.Mime
	default:
		content.FileName = attachment.Name
		content.File = attachment.Data
	}
	return content
}

// userMessage maps a typed failure to the single chunk shown to the user.
func userMessage(err error) string {
	var runErr *assistant.RunFailedError
	switch {
	case errors.Is(err, ErrEmptyTurn):
		return "Please type a message, attach a file, or share a link."
	case errors.Is(err, transcript.ErrUnsupportedSource):
		return "Sorry, I couldn't read that link. Please check the URL and try again."
	case errors.Is(err, transcript.ErrTimeout), errors.Is(err, assistant.ErrTimeout):
		return "This is taking longer than expected. Please try again."
	case errors.Is(err, transcript.ErrUpstreamUnavailable), errors.Is(err, assistant.ErrUpstreamUnavailable):
		return "The assistant is temporarily unavailable. Please try again in a moment."
	case errors.As(err, &runErr):
		return "An error occurred while processing your request."
	case errors.Is(err, session.ErrInvalidSession):
		return "Your session is invalid. Please refresh and try again."
	}
	return "An error occurred while processing your request."
}
