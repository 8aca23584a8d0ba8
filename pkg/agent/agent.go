// Package agent wraps an llm.Model with role-specific prompt
// construction and the response-interpretation rules shared by every
// deliberator: search-request detection, tool-token cleanup, and pass
// detection. Agents are stateless per call — they hold no discussion
// state and are invoked with snapshots, never references.
package agent

import (
	"context"
	"fmt"

	"github.com/queenbee-sre/deliberate/pkg/llm"
	"github.com/queenbee-sre/deliberate/pkg/role"
)

// OutcomeKind classifies what a deliberator turn produced.
type OutcomeKind int

const (
	// OutcomeContribution carries a real, cleaned contribution.
	OutcomeContribution OutcomeKind = iota
	// OutcomePass indicates the agent had nothing to add this turn.
	OutcomePass
	// OutcomeSearchRequest indicates the agent asked WebSearcher a
	// question instead of contributing; it counts as neither a
	// contribution nor a pass.
	OutcomeSearchRequest
)

// Outcome is the result of one deliberator turn.
type Outcome struct {
	Kind  OutcomeKind
	Text  string // cleaned contribution text, when Kind == OutcomeContribution
	Query string // extracted search query, when Kind == OutcomeSearchRequest
}

// Deliberator wraps one role's model access and prompt construction.
type Deliberator struct {
	Role      role.Role
	Model     llm.Model
	Prompts   *role.PromptBuilder
	MaxTokens int
}

// NewDeliberator constructs a Deliberator for r.
func NewDeliberator(r role.Role, model llm.Model, prompts *role.PromptBuilder, maxTokens int) *Deliberator {
	return &Deliberator{Role: r, Model: model, Prompts: prompts, MaxTokens: maxTokens}
}

// Contribute builds the role prompt, invokes the model once, and
// interprets the raw response as a contribution, a pass, or a search
// request.
func (d *Deliberator) Contribute(ctx context.Context, userInput string, discussion []role.Contribution, contextNote string) (Outcome, error) {
	system, user := d.Prompts.BuildDeliberatorPrompt(d.Role, userInput, discussion, contextNote)

	raw, err := d.Model.Generate(ctx, llm.Request{
		Prompt:      user,
		System:      system,
		Temperature: role.TemperatureFor(d.Role),
		MaxTokens:   d.MaxTokens,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("agent %s: generate: %w", d.Role, err)
	}

	if query, ok := ParseSearchRequest(raw); ok {
		return Outcome{Kind: OutcomeSearchRequest, Query: query}, nil
	}

	cleaned := CleanResponse(raw)
	if IsPass(cleaned) {
		return Outcome{Kind: OutcomePass}, nil
	}
	return Outcome{Kind: OutcomeContribution, Text: cleaned}, nil
}

// Searcher wraps the WebSearcher role: a plain model call answering one
// query, with no deliberation semantics of its own.
type Searcher struct {
	Model   llm.Model
	Prompts *role.PromptBuilder
}

// NewSearcher constructs a Searcher.
func NewSearcher(model llm.Model, prompts *role.PromptBuilder) *Searcher {
	return &Searcher{Model: model, Prompts: prompts}
}

// Search answers a single arbitrated query.
func (s *Searcher) Search(ctx context.Context, query string) (string, error) {
	system, user := s.Prompts.BuildWebSearchPrompt(query)
	raw, err := s.Model.Generate(ctx, llm.Request{
		Prompt:      user,
		System:      system,
		Temperature: role.TemperatureFor(role.WebSearcher),
	})
	if err != nil {
		return "", fmt.Errorf("agent WebSearcher: generate: %w", err)
	}
	return CleanResponse(raw), nil
}

// Summarizer wraps the Summarizer role for both rolling and final
// synthesis calls.
type Summarizer struct {
	Model   llm.Model
	Prompts *role.PromptBuilder
}

// NewSummarizer constructs a Summarizer.
func NewSummarizer(model llm.Model, prompts *role.PromptBuilder) *Summarizer {
	return &Summarizer{Model: model, Prompts: prompts}
}

// RollingSummary produces one SummaryLoop update.
func (s *Summarizer) RollingSummary(ctx context.Context, userInput string, discussion []role.Contribution) (string, error) {
	system, user := s.Prompts.BuildRollingSummaryPrompt(userInput, discussion)
	raw, err := s.Model.Generate(ctx, llm.Request{
		Prompt:      user,
		System:      system,
		Temperature: role.TemperatureFor(role.Summarizer),
	})
	if err != nil {
		return "", fmt.Errorf("agent Summarizer: rolling: %w", err)
	}
	return CleanResponse(raw), nil
}

// FinalSynthesis produces the terminal synthesis call.
func (s *Summarizer) FinalSynthesis(ctx context.Context, userInput string, discussion []role.Contribution, lastSummary string) (string, error) {
	system, user := s.Prompts.BuildFinalSynthesisPrompt(userInput, discussion, lastSummary)
	raw, err := s.Model.Generate(ctx, llm.Request{
		Prompt:      user,
		System:      system,
		Temperature: role.FinalSummaryTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("agent Summarizer: final synthesis: %w", err)
	}
	return CleanResponse(raw), nil
}
