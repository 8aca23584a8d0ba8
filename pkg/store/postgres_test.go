package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestPostgres starts a disposable Postgres container, applies
// postgres_schema.sql, and returns a Postgres store pointed at it.
func newTestPostgres(t *testing.T) *Postgres {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts("postgres_schema.sql"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	p, err := NewPostgres(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(p.Close)

	return p
}

func TestPostgres_CreateAndGet(t *testing.T) {
	p := newTestPostgres(t)

	id, err := p.Create(t.Context(), "sess-1", "orchestrator", "Divergent", Description{Input: "investigate X"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := p.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, "investigate X", rec.Description.Input)
	assert.Nil(t, rec.CompletedAt)
}

func TestPostgres_Get_NotFound(t *testing.T) {
	p := newTestPostgres(t)

	_, err := p.Get(t.Context(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_PendingForSession_OrderedAndScoped(t *testing.T) {
	p := newTestPostgres(t)

	id1, err := p.Create(t.Context(), "sess-1", "a", "b", Description{Input: "first"})
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	id2, err := p.Create(t.Context(), "sess-1", "a", "b", Description{Input: "second"})
	require.NoError(t, err)
	_, err = p.Create(t.Context(), "sess-2", "a", "b", Description{Input: "other session"})
	require.NoError(t, err)
	require.NoError(t, p.SetStatus(t.Context(), id2, StatusInProgress)) // no longer pending

	pending, err := p.PendingForSession(t.Context(), "sess-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id1, pending[0].ID)
}

func TestPostgres_SetStatus_StampsCompletedAt(t *testing.T) {
	p := newTestPostgres(t)

	id, err := p.Create(t.Context(), "sess-1", "a", "b", Description{Input: "x"})
	require.NoError(t, err)

	require.NoError(t, p.SetStatus(t.Context(), id, StatusInProgress))
	require.NoError(t, p.SetStatus(t.Context(), id, StatusCompleted))

	rec, err := p.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)
}

func TestPostgres_SetResult(t *testing.T) {
	p := newTestPostgres(t)

	id, err := p.Create(t.Context(), "sess-1", "a", "b", Description{Input: "x"})
	require.NoError(t, err)

	require.NoError(t, p.SetResult(t.Context(), id, `{"answer":"42"}`))

	rec, err := p.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, `{"answer":"42"}`, rec.Result)
}

func TestPostgres_CooldownRoundTrip(t *testing.T) {
	p := newTestPostgres(t)

	_, found, err := p.GetCooldown(t.Context(), "openrouter", "gpt")
	require.NoError(t, err)
	assert.False(t, found)

	resetAt := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	require.NoError(t, p.SetCooldown(t.Context(), "openrouter", "gpt", resetAt))

	got, found, err := p.GetCooldown(t.Context(), "openrouter", "gpt")
	require.NoError(t, err)
	require.True(t, found)
	assert.WithinDuration(t, resetAt, got, time.Millisecond)

	// Upsert overwrites the existing cooldown rather than erroring.
	resetAt2 := resetAt.Add(time.Hour)
	require.NoError(t, p.SetCooldown(t.Context(), "openrouter", "gpt", resetAt2))
	got2, found2, err := p.GetCooldown(t.Context(), "openrouter", "gpt")
	require.NoError(t, err)
	require.True(t, found2)
	assert.WithinDuration(t, resetAt2, got2, time.Millisecond)
}
