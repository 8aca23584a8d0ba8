// Package worker polls the TaskStore for pending work and runs it through
// a discussion engine, one worker goroutine per session.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/queenbee-sre/deliberate/pkg/store"
)

// pollInterval is the sleep between PendingForSession polls when a
// session's queue is empty.
const pollInterval = 2 * time.Second

// errorBackoff is the sleep after an unhandled engine error before the
// next poll.
const errorBackoff = 5 * time.Second

// joinTimeout bounds how long Stop waits for the worker goroutine before
// giving up and returning anyway.
const joinTimeout = 5 * time.Second

// Engine runs one deliberation to completion for a claimed task.
type Engine interface {
	Run(ctx context.Context, task *store.TaskRecord) error
}

// SessionWorker polls a single session's pending tasks and feeds them to
// an Engine, one at a time, until stopped.
type SessionWorker struct {
	session string
	store   store.TaskStore
	engine  Engine
	log     *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewSessionWorker constructs a SessionWorker for session.
func NewSessionWorker(session string, st store.TaskStore, engine Engine, log *slog.Logger) *SessionWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SessionWorker{
		session: session,
		store:   st,
		engine:  engine,
		log:     log.With("session_id", session),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the poll loop in a new goroutine.
func (w *SessionWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker to exit and waits up to joinTimeout for it to
// do so. Safe to call multiple times.
func (w *SessionWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	select {
	case <-w.done:
	case <-time.After(joinTimeout):
		w.log.Warn("session worker did not exit within the join window; abandoning")
	}
}

func (w *SessionWorker) run(ctx context.Context) {
	defer close(w.done)
	w.log.Info("session worker started")

	for {
		select {
		case <-w.stopCh:
			w.log.Info("session worker stopping")
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := w.pollOnce(ctx); err != nil {
			if errors.Is(err, errNoPendingTasks) {
				w.sleep(pollInterval)
				continue
			}
			w.log.Error("unhandled error processing session tasks", "error", err)
			w.sleep(errorBackoff)
		}
	}
}

var errNoPendingTasks = errors.New("worker: no pending tasks")

func (w *SessionWorker) pollOnce(ctx context.Context) error {
	pending, err := w.store.PendingForSession(ctx, w.session)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return errNoPendingTasks
	}

	for _, task := range pending {
		select {
		case <-w.stopCh:
			return nil
		case <-ctx.Done():
			return nil
		default:
		}
		if err := w.engine.Run(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func (w *SessionWorker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}
