package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process TaskStore backed by a map guarded by a single
// mutex. It is the engine's default store and the implementation its own
// tests run against; Postgres is the durable collaborator-contract
// backend for production deployments.
type Memory struct {
	mu        sync.RWMutex
	tasks     map[string]*TaskRecord
	cooldowns map[string]time.Time // "provider/model" -> reset deadline
}

// NewMemory creates an empty in-memory task store.
func NewMemory() *Memory {
	return &Memory{
		tasks:     make(map[string]*TaskRecord),
		cooldowns: make(map[string]time.Time),
	}
}

// Create implements TaskStore.
func (m *Memory) Create(_ context.Context, sessionID, assignedBy, assignedTo string, description Description) (string, error) {
	id := uuid.New().String()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[id] = &TaskRecord{
		ID:          id,
		SessionID:   sessionID,
		Description: description,
		Status:      StatusPending,
		AssignedBy:  assignedBy,
		AssignedTo:  assignedTo,
		CreatedAt:   time.Now(),
	}
	return id, nil
}

// Get implements TaskStore.
func (m *Memory) Get(_ context.Context, id string) (*TaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}

// PendingForSession implements TaskStore.
func (m *Memory) PendingForSession(_ context.Context, sessionID string) ([]*TaskRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*TaskRecord
	for _, t := range m.tasks {
		if t.SessionID == sessionID && t.Status == StatusPending {
			clone := *t
			pending = append(pending, &clone)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

// SetStatus implements TaskStore.
func (m *Memory) SetStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if !CanTransition(t.Status, status) {
		return ErrInvalidTransition
	}
	t.Status = status
	if status == StatusCompleted {
		now := time.Now()
		t.CompletedAt = &now
	}
	return nil
}

// SetResult implements TaskStore.
func (m *Memory) SetResult(_ context.Context, id string, resultJSON string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.Result = resultJSON
	return nil
}

// GetCooldown implements llm.RateLimitStore.
func (m *Memory) GetCooldown(_ context.Context, provider, model string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.cooldowns[provider+"/"+model]
	return t, ok, nil
}

// SetCooldown implements llm.RateLimitStore.
func (m *Memory) SetCooldown(_ context.Context, provider, model string, resetAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cooldowns[provider+"/"+model] = resetAt
	return nil
}
