package discussion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/queenbee-sre/deliberate/pkg/agent"
	"github.com/queenbee-sre/deliberate/pkg/role"
)

// WebSearchArbiter gives single-consumer ownership of the WebSearcher
// role to one background goroutine, serializing concurrent search
// requests from deliberator workers through state's FIFO
// web_search_queue. The arbiter itself carries no request payload: it
// only wakes the consumer to drain whatever State.EnqueueSearch has
// accumulated, so State remains the single source of truth for queued
// requests.
type WebSearchArbiter struct {
	state    *State
	searcher *agent.Searcher
	log      *slog.Logger

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
}

// NewWebSearchArbiter constructs an arbiter bound to state and searcher.
// Callers must call Run once before issuing requests and Shutdown when
// the discussion terminates.
func NewWebSearchArbiter(state *State, searcher *agent.Searcher, log *slog.Logger) *WebSearchArbiter {
	return &WebSearchArbiter{
		state:    state,
		searcher: searcher,
		log:      log,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Run starts the single consumer goroutine. It returns once Shutdown is
// called and any in-flight search completes.
func (a *WebSearchArbiter) Run(ctx context.Context) {
	defer close(a.stopped)
	for {
		a.drain(ctx)
		select {
		case <-a.wake:
		case <-a.done:
			a.state.DiscardSearchQueue()
			return
		}
	}
}

// drain processes every request currently queued in state, FIFO, before
// returning to wait for the next wake. It stops taking new requests once
// Shutdown has been called.
func (a *WebSearchArbiter) drain(ctx context.Context) {
	for {
		select {
		case <-a.done:
			return
		default:
		}
		requester, query, ok := a.state.DequeueSearch()
		if !ok {
			return
		}
		a.process(ctx, requester, query)
	}
}

// Shutdown signals the consumer goroutine to stop after draining any
// request already in flight, discarding whatever remains queued.
func (a *WebSearchArbiter) Shutdown() {
	close(a.done)
}

// Wait blocks until the consumer goroutine started by Run has exited.
func (a *WebSearchArbiter) Wait() {
	<-a.stopped
}

// Request enqueues a search request on behalf of requester onto state's
// FIFO web_search_queue and wakes the consumer. If the WebSearcher is
// already mid-search, a hidden waiting notice is appended immediately so
// requester sees acknowledgement on its next snapshot. Request never
// blocks the caller.
func (a *WebSearchArbiter) Request(requester, query string) {
	statuses := a.state.AgentStatusSnapshot()
	if statuses[string(role.WebSearcher)] == StatusSearching {
		a.state.AppendHidden(requester, fmt.Sprintf("Waiting for WebSearcher to finish a prior search before handling %q.", query))
	}
	a.state.EnqueueSearch(requester, query)
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *WebSearchArbiter) process(ctx context.Context, requester, query string) {
	a.state.SetAgentStatus(string(role.WebSearcher), StatusSearching)
	a.state.RecordSearchEvent(requester, query)

	result, err := a.searcher.Search(ctx, query)
	if err != nil {
		a.log.Warn("web search failed", "query", query, "error", err)
		result = fmt.Sprintf("search unavailable: %v", err)
	}

	a.state.AppendHidden(string(role.WebSearcher), fmt.Sprintf("Search results for '%s': %s", query, result))
	a.state.SetAgentStatus(string(role.WebSearcher), StatusIdle)
}
