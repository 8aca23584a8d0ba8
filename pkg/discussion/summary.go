package discussion

import (
	"context"
	"log/slog"
	"time"

	"github.com/queenbee-sre/deliberate/pkg/agent"
	"github.com/queenbee-sre/deliberate/pkg/role"
)

// SummaryLoop is the background worker that keeps rolling_summary fresh.
// Summarizer failures are logged and swallowed — the discussion is never
// gated on summarization succeeding.
type SummaryLoop struct {
	state      *State
	summarizer *agent.Summarizer
	userInput  string
	interval   time.Duration
	log        *slog.Logger
	onUpdate   func()
}

// NewSummaryLoop constructs a SummaryLoop. onUpdate, if non-nil, is
// called after every successful summary refresh so the engine can
// republish a snapshot.
func NewSummaryLoop(state *State, summarizer *agent.Summarizer, userInput string, interval time.Duration, log *slog.Logger, onUpdate func()) *SummaryLoop {
	return &SummaryLoop{
		state:      state,
		summarizer: summarizer,
		userInput:  userInput,
		interval:   interval,
		log:        log,
		onUpdate:   onUpdate,
	}
}

// Run ticks at interval until stop_signal is observed.
func (l *SummaryLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if l.state.StopSignal() {
				return
			}
			l.tick(ctx)
		case <-ctx.Done():
			return
		}
		if l.state.StopSignal() {
			return
		}
	}
}

func (l *SummaryLoop) tick(ctx context.Context) {
	nonHidden := l.state.NonHiddenContributions()
	_, lastCount := l.state.RollingSummary()
	if len(nonHidden) == 0 || len(nonHidden) == lastCount {
		return
	}

	text, err := l.summarizer.RollingSummary(ctx, l.userInput, toRoleContributions(nonHidden))
	if err != nil {
		l.log.Warn("rolling summary failed", "error", err)
		return
	}

	l.state.UpdateRollingSummary(text, len(nonHidden))
	if l.onUpdate != nil {
		l.onUpdate()
	}
}

func toRoleContributions(cs []Contribution) []role.Contribution {
	out := make([]role.Contribution, len(cs))
	for i, c := range cs {
		out[i] = role.Contribution{Agent: c.Agent, Content: c.Content, Num: c.Num, Hidden: c.Hidden}
	}
	return out
}
