// Package discussion implements the concurrent multi-agent deliberation
// core: the shared discussion state machine, the web-search arbiter, the
// rolling-summary side loop, and the engine that orchestrates a single
// run end to end.
package discussion

import (
	"sync"
	"time"
)

// Agent status values published in agent_status.
const (
	StatusIdle         = "idle"
	StatusThinking     = "thinking"
	StatusContributing = "contributing"
	StatusWaiting      = "waiting"
	StatusSearching    = "searching"
)

// Contribution is one entry in the discussion, hidden or not.
type Contribution struct {
	Agent   string    `json:"agent"`
	Content string    `json:"content"`
	Ts      time.Time `json:"ts"`
	Num     int       `json:"contribution_num"`
	Hidden  bool      `json:"hidden"`
}

// SearchEvent records one web-search lifecycle event for observability.
type SearchEvent struct {
	Agent string    `json:"agent"`
	Query string    `json:"query"`
	Ts    time.Time `json:"ts"`
}

// searchRequest is one queued-or-in-flight arbitration request.
type searchRequest struct {
	Requester string
	Query     string
}

// Stats accumulates per-run statistics for the final synthesis step.
type Stats struct {
	ContributionsPerAgent  map[string]int
	PassesPerAgent         map[string]int
	responseTimesTotal     map[string]time.Duration
	responseTimesCount     map[string]int
	concurrentThinking     int
	peakConcurrentThinking int
	webSearchCount         int
}

func newStats() Stats {
	return Stats{
		ContributionsPerAgent: make(map[string]int),
		PassesPerAgent:        make(map[string]int),
		responseTimesTotal:    make(map[string]time.Duration),
		responseTimesCount:    make(map[string]int),
	}
}

// State is the shared, mutex-guarded discussion state for a single run.
// All cross-worker coordination happens through it; no caller may retain
// a reference into its internal collections — every read copies out
// under the guard.
type State struct {
	mu sync.Mutex

	contributions       []Contribution
	rollingSummary      string
	rollingSummaryCount int
	agentStatus         map[string]string
	webSearchQueue      []searchRequest
	webSearchEvents     []SearchEvent
	passCounters        map[string]int
	stopSignal          bool
	stats               Stats
	startedAt           time.Time
}

// NewState constructs an empty DiscussionState seeded with every
// deliberator role set to idle.
func NewState(agentNames []string) *State {
	s := &State{
		agentStatus:  make(map[string]string, len(agentNames)+1),
		passCounters: make(map[string]int, len(agentNames)),
		stats:        newStats(),
		startedAt:    time.Now(),
	}
	for _, name := range agentNames {
		s.agentStatus[name] = StatusIdle
	}
	return s
}

// SetAgentStatus publishes a new status for agent.
func (s *State) SetAgentStatus(agent, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentStatus[agent] = status
	if status == StatusThinking {
		s.stats.concurrentThinking++
		if s.stats.concurrentThinking > s.stats.peakConcurrentThinking {
			s.stats.peakConcurrentThinking = s.stats.concurrentThinking
		}
	}
}

// ClearThinking marks agent no longer thinking for the concurrent-peak
// counter; callers still separately call SetAgentStatus for the
// observable status transition.
func (s *State) ClearThinking(agent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agentStatus[agent] == StatusThinking && s.stats.concurrentThinking > 0 {
		s.stats.concurrentThinking--
	}
}

// Append records a non-hidden contribution and resets the agent's pass
// counter. Returns the appended Contribution including its assigned
// position.
func (s *State) Append(agent, content string) Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.appendLocked(agent, content, false)
	s.stats.ContributionsPerAgent[agent]++
	s.passCounters[agent] = 0
	return c
}

// AppendHidden records a hidden contribution (search result or waiting
// notice). It does not touch pass counters or contribution stats.
func (s *State) AppendHidden(agent, content string) Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(agent, content, true)
}

func (s *State) appendLocked(agent, content string, hidden bool) Contribution {
	c := Contribution{
		Agent:   agent,
		Content: content,
		Ts:      time.Now(),
		Num:     len(s.contributions) + 1,
		Hidden:  hidden,
	}
	s.contributions = append(s.contributions, c)
	return c
}

// IncrementPass records a pass for agent.
func (s *State) IncrementPass(agent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passCounters[agent]++
	s.stats.PassesPerAgent[agent]++
}

// RecordResponseTime accumulates a model round-trip sample for agent.
func (s *State) RecordResponseTime(agent string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.responseTimesTotal[agent] += d
	s.stats.responseTimesCount[agent]++
}

// SetStopSignal latches stop_signal; it is never cleared once set.
func (s *State) SetStopSignal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopSignal = true
}

// StopSignal reports whether the run has been asked to stop.
func (s *State) StopSignal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopSignal
}

// EnqueueSearch pushes a search request onto the FIFO queue.
func (s *State) EnqueueSearch(requester, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webSearchQueue = append(s.webSearchQueue, searchRequest{Requester: requester, Query: query})
}

// DequeueSearch pops the oldest queued search request, if any.
func (s *State) DequeueSearch() (requester, query string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.webSearchQueue) == 0 {
		return "", "", false
	}
	next := s.webSearchQueue[0]
	s.webSearchQueue = s.webSearchQueue[1:]
	return next.Requester, next.Query, true
}

// DiscardSearchQueue empties the queue without processing it, used when
// stop_signal fires mid-arbitration.
func (s *State) DiscardSearchQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webSearchQueue = nil
}

// RecordSearchEvent appends a web_search_events entry.
func (s *State) RecordSearchEvent(agent, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webSearchEvents = append(s.webSearchEvents, SearchEvent{Agent: agent, Query: query, Ts: time.Now()})
	s.stats.webSearchCount++
}

// webSearchEventsSnapshot returns a defensive copy of web_search_events.
func (s *State) webSearchEventsSnapshot() []SearchEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SearchEvent, len(s.webSearchEvents))
	copy(out, s.webSearchEvents)
	return out
}

// AgentStatusSnapshot returns a defensive copy of agent_status.
func (s *State) AgentStatusSnapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.agentStatus))
	for k, v := range s.agentStatus {
		out[k] = v
	}
	return out
}

// UpdateRollingSummary atomically replaces rolling_summary and its
// last-update contribution count.
func (s *State) UpdateRollingSummary(text string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollingSummary = text
	s.rollingSummaryCount = count
}

// RollingSummary returns the current rolling summary text and the
// contribution count it was last computed from.
func (s *State) RollingSummary() (text string, lastCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollingSummary, s.rollingSummaryCount
}

// ContributionCount returns len(contributions), hidden included.
func (s *State) ContributionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contributions)
}

// PassCount returns agent's consecutive-pass counter.
func (s *State) PassCount(agent string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passCounters[agent]
}

// OwnContributionCount returns the number of non-hidden contributions
// agent has made so far.
func (s *State) OwnContributionCount(agent string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.ContributionsPerAgent[agent]
}

// AllContributions returns a defensive copy of the full contribution
// sequence, hidden entries included, in append order.
func (s *State) AllContributions() []Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Contribution, len(s.contributions))
	copy(out, s.contributions)
	return out
}

// NonHiddenContributions returns a defensive copy of only the non-hidden
// contributions, in append order.
func (s *State) NonHiddenContributions() []Contribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Contribution, 0, len(s.contributions))
	for _, c := range s.contributions {
		if !c.Hidden {
			out = append(out, c)
		}
	}
	return out
}

// AppearedRoles reports which agent names have made at least one
// non-hidden contribution so far.
func (s *State) AppearedRoles() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.stats.ContributionsPerAgent))
	for agent, n := range s.stats.ContributionsPerAgent {
		if n > 0 {
			out[agent] = true
		}
	}
	return out
}

// PassCountersSnapshot returns a defensive copy of every agent's
// consecutive-pass counter.
func (s *State) PassCountersSnapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.passCounters))
	for k, v := range s.passCounters {
		out[k] = v
	}
	return out
}

// Statistics computes the final {duration, per-agent contributions and
// passes, response-time means, peak concurrent thinking, web-search
// counts} bundle for the terminal snapshot.
func (s *State) Statistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	means := make(map[string]float64, len(s.stats.responseTimesTotal))
	for agent, total := range s.stats.responseTimesTotal {
		n := s.stats.responseTimesCount[agent]
		if n > 0 {
			means[agent] = total.Seconds() / float64(n)
		}
	}

	contribs := make(map[string]int, len(s.stats.ContributionsPerAgent))
	for k, v := range s.stats.ContributionsPerAgent {
		contribs[k] = v
	}
	passes := make(map[string]int, len(s.stats.PassesPerAgent))
	for k, v := range s.stats.PassesPerAgent {
		passes[k] = v
	}

	return Statistics{
		DurationSeconds:        time.Since(s.startedAt).Seconds(),
		ContributionsPerAgent:  contribs,
		PassesPerAgent:         passes,
		ResponseTimeMeans:      means,
		PeakConcurrentThinking: s.stats.peakConcurrentThinking,
		WebSearchCount:         s.stats.webSearchCount,
	}
}

// Statistics is the terminal statistics bundle written into the final
// snapshot.
type Statistics struct {
	DurationSeconds        float64            `json:"duration_seconds"`
	ContributionsPerAgent  map[string]int     `json:"contributions_per_agent"`
	PassesPerAgent         map[string]int     `json:"passes_per_agent"`
	ResponseTimeMeans      map[string]float64 `json:"response_time_means"`
	PeakConcurrentThinking int                `json:"peak_concurrent_thinking"`
	WebSearchCount         int                `json:"web_search_count"`
}

// TotalNonHidden returns the count of non-hidden contributions, the
// value published as total_contributions on completion.
func (s *State) TotalNonHidden() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.contributions {
		if !c.Hidden {
			total++
		}
	}
	return total
}
