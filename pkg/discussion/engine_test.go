package discussion

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queenbee-sre/deliberate/pkg/config"
	"github.com/queenbee-sre/deliberate/pkg/llm"
	"github.com/queenbee-sre/deliberate/pkg/role"
	"github.com/queenbee-sre/deliberate/pkg/store"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Consensus.TickIntervalSeconds = 0.01
	cfg.Consensus.SummaryIntervalSeconds = 1
	return cfg
}

func systemFor(r role.Role) string {
	system, _ := role.NewPromptBuilder().BuildDeliberatorPrompt(r, "", nil, "")
	return system
}

func decodeSnapshot(t *testing.T, raw string) snapshot {
	t.Helper()
	var snap snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &snap))
	return snap
}

func TestEngine_Run_HealthyDiscussionTerminatesWithContributions(t *testing.T) {
	st := store.NewMemory()
	taskID, err := st.Create(t.Context(), "sess-1", "user", "engine", store.Description{
		Input:     "Should we adopt a weekly release train?",
		MaxRounds: 1,
	})
	require.NoError(t, err)
	task, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)

	stub := llm.NewStub()
	for _, r := range role.Deliberators {
		stub.Responses[systemFor(r)] = []string{"This is a substantive contribution about release trains.", "PASS"}
	}
	stub.DefaultResponse = "synthesis text"

	eng := NewEngine(st, stub, fastConfig(), nil)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Second)
	defer cancel()
	require.NoError(t, eng.Run(ctx, task))

	final, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, final.Status)

	snap := decodeSnapshot(t, final.Result)
	assert.Equal(t, "completed", snap.Status)
	require.NotNil(t, snap.TotalContributions)
	assert.GreaterOrEqual(t, *snap.TotalContributions, 1)
	assert.LessOrEqual(t, *snap.TotalContributions, 18)
	assert.NotEmpty(t, snap.Summary)
	require.NotNil(t, snap.Statistics)
}

func TestEngine_Run_AllPassTerminatesWithEmptyDiscussion(t *testing.T) {
	st := store.NewMemory()
	taskID, err := st.Create(t.Context(), "sess-2", "user", "engine", store.Description{
		Input:     "Trivial question nobody wants to discuss.",
		MaxRounds: 1,
	})
	require.NoError(t, err)
	task, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)

	stub := llm.NewStub()
	stub.DefaultResponse = "PASS"

	eng := NewEngine(st, stub, fastConfig(), nil)

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()
	require.NoError(t, eng.Run(ctx, task))

	final, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, final.Status)

	snap := decodeSnapshot(t, final.Result)
	require.NotNil(t, snap.TotalContributions)
	assert.Equal(t, 0, *snap.TotalContributions)
	assert.Equal(t, "No discussion occurred.", snap.Summary)
}

func TestEngine_Run_WebSearchRequestProducesHiddenResultAndEvent(t *testing.T) {
	st := store.NewMemory()
	taskID, err := st.Create(t.Context(), "sess-3", "user", "engine", store.Description{
		Input:     "What's the industry standard release cadence?",
		MaxRounds: 1,
	})
	require.NoError(t, err)
	task, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)

	stub := llm.NewStub()
	for _, r := range role.Deliberators {
		stub.Responses[systemFor(r)] = []string{"PASS"}
	}
	stub.Responses[systemFor(role.Quantifier)] = []string{
		`@WebSearcher please search for "release train best practices"`,
		"PASS",
	}
	stub.DefaultResponse = "industry data on release cadences"

	eng := NewEngine(st, stub, fastConfig(), nil)

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Second)
	defer cancel()
	require.NoError(t, eng.Run(ctx, task))

	final, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)
	snap := decodeSnapshot(t, final.Result)

	var found bool
	for _, c := range snap.Contributions {
		if c.Agent == string(role.WebSearcher) && c.Hidden {
			assert.Contains(t, c.Content, "Search results for 'release train best practices':")
			found = true
		}
	}
	assert.True(t, found, "expected a hidden WebSearcher contribution")
}

func TestEngine_Run_ContextCancellationEndsRunPromptly(t *testing.T) {
	st := store.NewMemory()
	taskID, err := st.Create(t.Context(), "sess-4", "user", "engine", store.Description{
		Input:     "A question that would otherwise run for a while.",
		MaxRounds: 3,
	})
	require.NoError(t, err)
	task, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)

	stub := llm.NewStub()
	stub.DefaultResponse = "a lengthy deliberation contribution"

	eng := NewEngine(st, stub, fastConfig(), nil)

	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		eng.Run(ctx, task)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(8 * time.Second):
		t.Fatal("engine did not return after context cancellation within the worker join window")
	}
}

func TestEngine_Run_FatalAuthErrorFailsTask(t *testing.T) {
	st := store.NewMemory()
	taskID, err := st.Create(t.Context(), "sess-5", "user", "engine", store.Description{
		Input:     "Anything at all.",
		MaxRounds: 1,
	})
	require.NoError(t, err)
	task, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)

	stub := llm.NewStub()
	stub.Err = llm.ErrAuth

	eng := NewEngine(st, stub, fastConfig(), nil)

	ctx, cancel := context.WithTimeout(t.Context(), 15*time.Second)
	defer cancel()
	require.NoError(t, eng.Run(ctx, task))

	final, err := st.Get(t.Context(), taskID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, final.Status)

	var result map[string]string
	require.NoError(t, json.Unmarshal([]byte(final.Result), &result))
	assert.Contains(t, result["error"], "llm: authentication failed")
}
