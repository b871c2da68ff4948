// Package session maps client sessions to remote conversation threads and
// serializes turn processing per session.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/wisdompenai/wisdompen/internal/assistant"
)

// ErrInvalidSession indicates a malformed session identifier.
var ErrInvalidSession = errors.New("invalid session id")

// ThreadCreator creates remote conversation threads.
type ThreadCreator interface {
	CreateThread(ctx context.Context) (assistant.Thread, error)
}

type entry struct {
	createMu sync.Mutex // serializes lazy thread creation
	turnMu   sync.Mutex // serializes turn processing for the session
	thread   assistant.Thread
	created  bool
}

// Store owns the sessionID→thread mapping. Threads are created lazily on
// first use and live for the process lifetime; the remote side owns thread
// deletion.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	creator ThreadCreator
	logger  *slog.Logger
}

// NewStore creates a session store backed by the given thread creator.
func NewStore(log *slog.Logger, creator ThreadCreator) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		entries: make(map[string]*entry),
		creator: creator,
		logger:  log.With(slog.String("service", "session")),
	}
}

// NewSessionID generates a session identifier for callers that supplied none.
func NewSessionID() string {
	return uuid.NewString()
}

func (s *Store) entryFor(sessionID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[sessionID]
	if !ok {
		e = &entry{}
		s.entries[sessionID] = e
	}
	return e
}

// GetOrCreate returns the session's thread, creating it on first use.
// Concurrent callers for the same session block on the per-session lock, so
// exactly one thread is ever created per session.
func (s *Store) GetOrCreate(ctx context.Context, sessionID string) (assistant.Thread, error) {
	if strings.TrimSpace(sessionID) == "" {
		return assistant.Thread{}, ErrInvalidSession
	}

	e := s.entryFor(sessionID)
	e.createMu.Lock()
	defer e.createMu.Unlock()

	if e.created {
		return e.thread, nil
	}
	thread, err := s.creator.CreateThread(ctx)
	if err != nil {
		return assistant.Thread{}, err
	}
	e.thread = thread
	e.created = true
	s.logger.Info("thread created",
		slog.String("session_id", sessionID),
		slog.String("thread_id", thread.ID),
	)
	return thread, nil
}

// Create makes a thread for an anonymous caller without registering it under
// any session.
func (s *Store) Create(ctx context.Context) (assistant.Thread, error) {
	return s.creator.CreateThread(ctx)
}

// Lock acquires the session's turn lock, so turns against one session are
// processed in arrival order and never interleave their append/read calls.
func (s *Store) Lock(sessionID string) func() {
	e := s.entryFor(sessionID)
	e.turnMu.Lock()
	return e.turnMu.Unlock
}

// Expire drops the session's mapping; the remote thread is left alone.
func (s *Store) Expire(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
}

// Len reports how many sessions currently hold a mapping.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
