package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a TaskStore backed directly by jackc/pgx/v5 against the
// schema in postgres_schema.sql. No schema generator or migration
// runner ships with this package — schema migrations are out of scope;
// callers provision postgres_schema.sql themselves before pointing a
// Postgres at it.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool against dsn and verifies
// connectivity.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening pool: %w", ErrStorage, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrStorage, err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() { p.pool.Close() }

// withRetry runs fn once, and retries it exactly once more on failure. A
// transient backend error is retried at most once; persistent failure
// propagates wrapped in ErrStorage.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	if err2 := fn(ctx); err2 == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// Create implements TaskStore.
func (p *Postgres) Create(ctx context.Context, sessionID, assignedBy, assignedTo string, description Description) (string, error) {
	payload, err := json.Marshal(description)
	if err != nil {
		return "", fmt.Errorf("encoding description: %w", err)
	}

	var id string
	err = withRetry(ctx, func(ctx context.Context) error {
		return p.pool.QueryRow(ctx, `
			INSERT INTO tasks (session_id, status, description, assigned_by, assigned_to, created_at)
			VALUES ($1, $2, $3, $4, $5, now())
			RETURNING id
		`, sessionID, StatusPending, payload, assignedBy, assignedTo).Scan(&id)
	})
	return id, err
}

// Get implements TaskStore.
func (p *Postgres) Get(ctx context.Context, id string) (*TaskRecord, error) {
	var (
		t       TaskRecord
		payload []byte
	)
	err := withRetry(ctx, func(ctx context.Context) error {
		return p.pool.QueryRow(ctx, `
			SELECT id, session_id, status, description, result, assigned_by, assigned_to, created_at, completed_at
			FROM tasks WHERE id = $1
		`, id).Scan(&t.ID, &t.SessionID, &t.Status, &payload, &t.Result, &t.AssignedBy, &t.AssignedTo, &t.CreatedAt, &t.CompletedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &t.Description); err != nil {
		return nil, fmt.Errorf("decoding description: %w", err)
	}
	return &t, nil
}

// PendingForSession implements TaskStore.
func (p *Postgres) PendingForSession(ctx context.Context, sessionID string) ([]*TaskRecord, error) {
	var rows pgx.Rows
	err := withRetry(ctx, func(ctx context.Context) error {
		r, err := p.pool.Query(ctx, `
			SELECT id, session_id, status, description, result, assigned_by, assigned_to, created_at, completed_at
			FROM tasks WHERE session_id = $1 AND status = $2
			ORDER BY created_at ASC
		`, sessionID, StatusPending)
		rows = r
		return err
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*TaskRecord
	for rows.Next() {
		var (
			t       TaskRecord
			payload []byte
		)
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Status, &payload, &t.Result, &t.AssignedBy, &t.AssignedTo, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &t.Description); err != nil {
			return nil, fmt.Errorf("decoding description: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SetStatus implements TaskStore. Unlike Memory, it does not check
// CanTransition: any status is written as given, and an unknown id is
// not reported as ErrNotFound.
func (p *Postgres) SetStatus(ctx context.Context, id string, status Status) error {
	return withRetry(ctx, func(ctx context.Context) error {
		var tag string
		if status == StatusCompleted {
			tag = `UPDATE tasks SET status = $1, completed_at = now() WHERE id = $2`
			_, err := p.pool.Exec(ctx, tag, status, id)
			return err
		}
		tag = `UPDATE tasks SET status = $1 WHERE id = $2`
		_, err := p.pool.Exec(ctx, tag, status, id)
		return err
	})
}

// SetResult implements TaskStore.
func (p *Postgres) SetResult(ctx context.Context, id string, resultJSON string) error {
	return withRetry(ctx, func(ctx context.Context) error {
		_, err := p.pool.Exec(ctx, `UPDATE tasks SET result = $1 WHERE id = $2`, resultJSON, id)
		return err
	})
}

// GetCooldown implements llm.RateLimitStore against provider_rate_limits.
func (p *Postgres) GetCooldown(ctx context.Context, provider, model string) (time.Time, bool, error) {
	var resetAt time.Time
	err := withRetry(ctx, func(ctx context.Context) error {
		return p.pool.QueryRow(ctx, `
			SELECT reset_at FROM provider_rate_limits WHERE provider = $1 AND model = $2
		`, provider, model).Scan(&resetAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return resetAt, true, nil
}

// SetCooldown implements llm.RateLimitStore.
func (p *Postgres) SetCooldown(ctx context.Context, provider, model string, resetAt time.Time) error {
	return withRetry(ctx, func(ctx context.Context) error {
		_, err := p.pool.Exec(ctx, `
			INSERT INTO provider_rate_limits (provider, model, reset_at, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (provider, model) DO UPDATE SET reset_at = $3, updated_at = now()
		`, provider, model, resetAt)
		return err
	})
}
