package discussion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/queenbee-sre/deliberate/pkg/admission"
	"github.com/queenbee-sre/deliberate/pkg/agent"
	"github.com/queenbee-sre/deliberate/pkg/config"
	"github.com/queenbee-sre/deliberate/pkg/llm"
	"github.com/queenbee-sre/deliberate/pkg/role"
	"github.com/queenbee-sre/deliberate/pkg/store"
)

// idleDwellThreshold is the number of consecutive all-idle one-second
// samples after which the discussion is considered converged.
const idleDwellThreshold = 15

// workerJoinTimeout bounds how long the engine waits for deliberator
// workers to exit after stop_signal before abandoning them.
const workerJoinTimeout = 5 * time.Second

// Engine orchestrates a single deliberation run: spawning one worker per
// deliberator role plus the SummaryLoop, running the termination
// detector, and writing the final synthesis back to the TaskStore.
type Engine struct {
	Store   store.TaskStore
	Model   llm.Model
	Prompts *role.PromptBuilder
	Config  *config.Config
	Log     *slog.Logger
}

// NewEngine constructs an Engine with a fresh role.PromptBuilder.
func NewEngine(st store.TaskStore, model llm.Model, cfg *config.Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{Store: st, Model: model, Prompts: role.NewPromptBuilder(), Config: cfg, Log: log}
}

func (e *Engine) maxTokens(r role.Role) int {
	if e.Config == nil {
		return 0
	}
	if s, ok := e.Config.AgentFor(string(r)); ok {
		return s.MaxTokens
	}
	return 0
}

// Run executes one full deliberation for task, writing intermediate
// snapshots to the store throughout and the final synthesis at the end.
// It returns a non-nil error only when the store rejects a status update
// (IN_PROGRESS, COMPLETED or FAILED); other engine failures are absorbed
// into the task's FAILED status per the error-handling design.
func (e *Engine) Run(ctx context.Context, task *store.TaskRecord) error {
	log := e.Log.With("session_id", task.SessionID, "task_id", task.ID)

	maxRounds := task.Description.MaxRounds
	if maxRounds < 1 {
		maxRounds = 3
		if e.Config != nil && e.Config.Consensus.DiscussionRounds > 0 {
			maxRounds = e.Config.Consensus.DiscussionRounds
		}
	}
	hardCap := time.Duration(maxRounds) * 10 * time.Second

	tickInterval := 2 * time.Second
	summaryInterval := 10 * time.Second
	if e.Config != nil {
		if e.Config.Consensus.TickIntervalSeconds > 0 {
			tickInterval = e.Config.Consensus.TickInterval()
		}
		if e.Config.Consensus.SummaryIntervalSeconds > 0 {
			summaryInterval = e.Config.Consensus.SummaryInterval()
		}
	}

	deliberatorNames := make([]string, len(role.Deliberators))
	statusSeed := make([]string, 0, len(role.Deliberators)+1)
	for i, r := range role.Deliberators {
		deliberatorNames[i] = string(r)
		statusSeed = append(statusSeed, string(r))
	}
	statusSeed = append(statusSeed, string(role.WebSearcher))

	state := NewState(statusSeed)

	if err := e.Store.SetStatus(ctx, task.ID, store.StatusInProgress); err != nil {
		log.Error("failed to mark task in progress", "error", err)
		return fmt.Errorf("discussion: set in-progress: %w", err)
	}
	e.publishSnapshot(ctx, task.ID, task.Description.Input, state, false, "", 0, nil, log)

	searcher := agent.NewSearcher(e.Model, e.Prompts)
	arbiter := NewWebSearchArbiter(state, searcher, log)
	summarizer := agent.NewSummarizer(e.Model, e.Prompts)

	var g errgroup.Group
	workerDone := make(chan struct{})

	g.Go(func() error { arbiter.Run(ctx); return nil })

	g.Go(func() error {
		loop := NewSummaryLoop(state, summarizer, task.Description.Input, summaryInterval, log, func() {
			e.publishSnapshot(ctx, task.ID, task.Description.Input, state, false, "", 0, nil, log)
		})
		loop.Run(ctx)
		return nil
	})

	for _, r := range role.Deliberators {
		d := agent.NewDeliberator(r, e.Model, e.Prompts, e.maxTokens(r))
		g.Go(func() error {
			return e.deliberatorLoop(ctx, d, state, arbiter, task, tickInterval, log)
		})
	}

	var fatalErr error
	go func() { fatalErr = g.Wait(); close(workerDone) }()

	e.terminationDetector(ctx, state, deliberatorNames, hardCap)
	arbiter.Shutdown()

	select {
	case <-workerDone:
	case <-time.After(workerJoinTimeout):
		log.Warn("worker join timeout exceeded; abandoning stragglers")
	}

	if fatalErr != nil {
		log.Error("deliberation aborted by fatal agent error", "error", fatalErr)
		return e.fail(ctx, task.ID, fatalErr, log)
	}

	return e.finalize(ctx, task, state, log)
}

func (e *Engine) deliberatorLoop(ctx context.Context, d *agent.Deliberator, state *State, arbiter *WebSearchArbiter, task *store.TaskRecord, tickInterval time.Duration, log *slog.Logger) error {
	agentName := string(d.Role)

	for {
		if state.StopSignal() || ctx.Err() != nil {
			return nil
		}

		disc := admission.Discussion{
			NonHidden:     toAdmissionView(state.NonHiddenContributions()),
			AppearedRoles: toRoleSet(state.AppearedRoles()),
		}
		ownCount := state.OwnContributionCount(agentName)
		if !admission.ShouldContribute(d.Role, disc, task.Description.Input, ownCount) {
			if !sleepTick(ctx, state, tickInterval) {
				return nil
			}
			continue
		}

		state.SetAgentStatus(agentName, StatusThinking)
		e.publishSnapshot(ctx, task.ID, task.Description.Input, state, false, "", 0, nil, log)

		start := time.Now()
		outcome, err := d.Contribute(ctx, task.Description.Input, toRoleContributions(state.AllContributions()), task.Description.Context)
		state.RecordResponseTime(agentName, time.Since(start))
		state.ClearThinking(agentName)

		if err != nil {
			if errors.Is(err, llm.ErrAuth) {
				log.Error("fatal auth/config error; aborting discussion", "agent", agentName, "error", err)
				state.SetAgentStatus(agentName, StatusIdle)
				state.SetStopSignal()
				return fmt.Errorf("agent %s: %w", agentName, err)
			}
			log.Warn("agent error treated as pass", "agent", agentName, "error", err)
			state.IncrementPass(agentName)
			state.SetAgentStatus(agentName, StatusIdle)
			if !sleepTick(ctx, state, tickInterval) {
				return nil
			}
			continue
		}

		switch outcome.Kind {
		case agent.OutcomeSearchRequest:
			state.SetAgentStatus(agentName, StatusWaiting)
			arbiter.Request(agentName, outcome.Query)
			state.SetAgentStatus(agentName, StatusIdle)
		case agent.OutcomePass:
			state.IncrementPass(agentName)
			state.SetAgentStatus(agentName, StatusIdle)
		case agent.OutcomeContribution:
			state.SetAgentStatus(agentName, StatusContributing)
			state.Append(agentName, outcome.Text)
			state.SetAgentStatus(agentName, StatusIdle)
		}
		e.publishSnapshot(ctx, task.ID, task.Description.Input, state, false, "", 0, nil, log)

		if !sleepTick(ctx, state, tickInterval) {
			return nil
		}
	}
}

// sleepTick sleeps up to d in short increments so stop_signal and
// context cancellation are observed promptly. Returns false if the
// caller should exit its loop.
func sleepTick(ctx context.Context, state *State, d time.Duration) bool {
	const poll = 250 * time.Millisecond
	timer := time.NewTimer(poll)
	defer timer.Stop()
	remaining := d
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			if state.StopSignal() {
				return false
			}
			remaining -= poll
			if remaining > 0 {
				timer.Reset(poll)
			}
		}
	}
	return !state.StopSignal() && ctx.Err() == nil
}

func (e *Engine) terminationDetector(ctx context.Context, state *State, deliberatorNames []string, hardCap time.Duration) {
	started := time.Now()
	idleDwell := 0
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
		if state.StopSignal() {
			return
		}

		statuses := state.AgentStatusSnapshot()
		allIdle := true
		for _, name := range deliberatorNames {
			if statuses[name] != StatusIdle {
				allIdle = false
				break
			}
		}
		if allIdle && state.ContributionCount() > 0 {
			idleDwell++
		} else {
			idleDwell = 0
		}
		if idleDwell >= idleDwellThreshold {
			state.SetStopSignal()
			return
		}

		passCounters := state.PassCountersSnapshot()
		allPassed := true
		sumPasses := 0
		for _, name := range deliberatorNames {
			if passCounters[name] < 1 {
				allPassed = false
			}
			sumPasses += passCounters[name]
		}
		if allPassed && sumPasses >= 2 {
			state.SetStopSignal()
			return
		}

		if time.Since(started) > hardCap {
			state.SetStopSignal()
			return
		}
	}
}

func (e *Engine) finalize(ctx context.Context, task *store.TaskRecord, state *State, log *slog.Logger) error {
	summarizer := agent.NewSummarizer(e.Model, e.Prompts)
	nonHidden := state.NonHiddenContributions()
	lastSummary, _ := state.RollingSummary()

	var synthesis string
	if len(nonHidden) == 0 {
		synthesis = "No discussion occurred."
	} else {
		s, err := summarizer.FinalSynthesis(ctx, task.Description.Input, toRoleContributions(state.AllContributions()), lastSummary)
		if err != nil {
			log.Error("final synthesis failed", "error", err)
			return e.fail(ctx, task.ID, err, log)
		}
		synthesis = s
	}

	stats := state.Statistics()
	e.publishSnapshot(ctx, task.ID, task.Description.Input, state, true, synthesis, state.TotalNonHidden(), &stats, log)

	if err := e.Store.SetStatus(ctx, task.ID, store.StatusCompleted); err != nil {
		log.Error("failed to mark task completed", "error", err)
		return fmt.Errorf("discussion: set completed: %w", err)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, taskID string, cause error, log *slog.Logger) error {
	payload, _ := json.Marshal(map[string]string{"error": cause.Error()})
	if err := e.Store.SetResult(ctx, taskID, string(payload)); err != nil {
		log.Error("failed to persist failure result", "error", err)
	}
	if err := e.Store.SetStatus(ctx, taskID, store.StatusFailed); err != nil {
		log.Error("failed to mark task failed", "error", err)
		return fmt.Errorf("discussion: set failed: %w", err)
	}
	return nil
}

// snapshot is the wire format written to TaskStore.result.
type snapshot struct {
	Status             string            `json:"status"`
	Task               string            `json:"task"`
	Contributions      []Contribution    `json:"contributions"`
	RollingSummary     string            `json:"rolling_summary"`
	AgentStatus        map[string]string `json:"agent_status"`
	WebSearchEvents    []SearchEvent     `json:"web_search_events"`
	Summary            string            `json:"summary,omitempty"`
	TotalContributions *int              `json:"total_contributions,omitempty"`
	Statistics         *Statistics       `json:"statistics,omitempty"`
}

func (e *Engine) publishSnapshot(ctx context.Context, taskID, userInput string, state *State, terminal bool, summary string, total int, stats *Statistics, log *slog.Logger) {
	status := "in_progress"
	if terminal {
		status = "completed"
	}

	rollingSummary, _ := state.RollingSummary()
	snap := snapshot{
		Status:          status,
		Task:            userInput,
		Contributions:   state.AllContributions(),
		RollingSummary:  rollingSummary,
		AgentStatus:     state.AgentStatusSnapshot(),
		WebSearchEvents: state.webSearchEventsSnapshot(),
	}
	if terminal {
		snap.Summary = summary
		snap.TotalContributions = &total
		snap.Statistics = stats
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		log.Error("failed to marshal snapshot", "error", err)
		return
	}
	if err := e.Store.SetResult(ctx, taskID, string(payload)); err != nil {
		log.Warn("failed to publish snapshot", "error", err)
	}
}

func toAdmissionView(cs []Contribution) []admission.NonHiddenContribution {
	out := make([]admission.NonHiddenContribution, len(cs))
	for i, c := range cs {
		out[i] = admission.NonHiddenContribution{Agent: c.Agent, Content: c.Content}
	}
	return out
}

func toRoleSet(appeared map[string]bool) map[role.Role]bool {
	out := make(map[role.Role]bool, len(appeared))
	for name, ok := range appeared {
		if ok {
			out[role.Role(name)] = true
		}
	}
	return out
}
