package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/queenbee-sre/deliberate/pkg/store"
)

// WorkerSupervisor tracks one SessionWorker per session, starting and
// stopping them on demand. A single Engine and TaskStore are shared
// across every session's worker.
type WorkerSupervisor struct {
	store  store.TaskStore
	engine Engine
	log    *slog.Logger

	mu      sync.Mutex
	workers map[string]*SessionWorker
}

// NewWorkerSupervisor constructs a supervisor bound to st and engine.
func NewWorkerSupervisor(st store.TaskStore, engine Engine, log *slog.Logger) *WorkerSupervisor {
	if log == nil {
		log = slog.Default()
	}
	return &WorkerSupervisor{
		store:   st,
		engine:  engine,
		log:     log,
		workers: make(map[string]*SessionWorker),
	}
}

// Start launches a SessionWorker for session if one is not already
// running. Returns false if a worker for session was already active.
func (s *WorkerSupervisor) Start(ctx context.Context, session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[session]; ok {
		return false
	}
	w := NewSessionWorker(session, s.store, s.engine, s.log)
	s.workers[session] = w
	w.Start(ctx)
	return true
}

// Stop halts the worker for session, if any, waiting for its join window
// before returning. Returns false if no worker for session was running.
func (s *WorkerSupervisor) Stop(session string) bool {
	s.mu.Lock()
	w, ok := s.workers[session]
	if ok {
		delete(s.workers, session)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	w.Stop()
	return true
}

// StopAll stops every tracked worker.
func (s *WorkerSupervisor) StopAll() {
	s.mu.Lock()
	sessions := make([]string, 0, len(s.workers))
	for session := range s.workers {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	for _, session := range sessions {
		s.Stop(session)
	}
}

// Active reports whether a worker for session is currently tracked.
func (s *WorkerSupervisor) Active(session string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workers[session]
	return ok
}
