// Package store implements the task store contract: a durable map from
// task ID to TaskRecord with atomic per-field mutation. Memory is the
// in-process reference implementation used by the engine's own tests;
// Postgres is the pgx-backed collaborator-contract backend.
package store

import (
	"context"
	"errors"
	"time"
)

// Status is a TaskRecord's lifecycle state. Valid transitions:
// Pending -> InProgress -> {Completed, Failed}. No other transition is
// permitted.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// validTransitions enumerates the only allowed Status -> Status edges.
var validTransitions = map[Status]map[Status]bool{
	StatusPending:    {StatusInProgress: true},
	StatusInProgress: {StatusCompleted: true, StatusFailed: true},
}

// CanTransition reports whether moving from `from` to `to` is legal.
func CanTransition(from, to Status) bool {
	return validTransitions[from][to]
}

// Description is the decoded task payload, carried as JSON on the wire.
type Description struct {
	Input     string `json:"input"`
	Context   string `json:"context,omitempty"`
	MaxRounds int    `json:"max_rounds,omitempty"`
}

// TaskRecord is one row of the task store.
type TaskRecord struct {
	ID          string
	SessionID   string
	Description Description
	Status      Status
	Result      string // UTF-8 JSON string, mutated in place during the run
	AssignedBy  string
	AssignedTo  string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

var (
	// ErrNotFound indicates no task exists with the given ID.
	ErrNotFound = errors.New("store: task not found")

	// ErrInvalidTransition indicates a disallowed status transition was
	// attempted.
	ErrInvalidTransition = errors.New("store: invalid status transition")

	// ErrStorage indicates a persistent backend failure survived the
	// caller's single retry.
	ErrStorage = errors.New("store: storage failure")
)

// TaskStore is the durable task map. Every mutation is independently
// atomic; no multi-row transaction is required. Implementations MUST be
// safe for concurrent use.
type TaskStore interface {
	// Create inserts a new PENDING task and returns its ID.
	Create(ctx context.Context, sessionID, assignedBy, assignedTo string, description Description) (string, error)

	// Get returns the task, or ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*TaskRecord, error)

	// PendingForSession returns PENDING tasks for a session in creation
	// order.
	PendingForSession(ctx context.Context, sessionID string) ([]*TaskRecord, error)

	// SetStatus atomically transitions the task's status. Stamps
	// CompletedAt when the new status is COMPLETED.
	SetStatus(ctx context.Context, id string, status Status) error

	// SetResult atomically replaces the result field.
	SetResult(ctx context.Context, id string, resultJSON string) error
}
