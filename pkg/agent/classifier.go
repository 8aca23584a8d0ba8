package agent

import (
	"context"
	"strings"

	"github.com/queenbee-sre/deliberate/pkg/llm"
	"github.com/queenbee-sre/deliberate/pkg/role"
)

// Complexity is the Classifier's one-word verdict.
type Complexity string

const (
	Complex Complexity = "COMPLEX"
	Simple  Complexity = "SIMPLE"
)

// classifierMaxTokens caps the classifier's single-word reply.
const classifierMaxTokens = 10

// Classifier wraps the optional pre-filter external callers use to
// decide whether a question warrants full deliberation at all. It is
// not consulted by DiscussionEngine itself.
type Classifier struct {
	Model   llm.Model
	Prompts *role.PromptBuilder
}

// NewClassifier constructs a Classifier.
func NewClassifier(model llm.Model, prompts *role.PromptBuilder) *Classifier {
	return &Classifier{Model: model, Prompts: prompts}
}

// Classify returns COMPLEX or SIMPLE for userInput. Any model error
// fails safe toward COMPLEX so an ambiguous question still gets full
// deliberation.
func (c *Classifier) Classify(ctx context.Context, userInput string) Complexity {
	system, user := c.Prompts.BuildClassifierPrompt(userInput)
	raw, err := c.Model.Generate(ctx, llm.Request{
		Prompt:      user,
		System:      system,
		Temperature: role.TemperatureFor(role.Classifier),
		MaxTokens:   classifierMaxTokens,
	})
	if err != nil {
		return Complex
	}
	if strings.Contains(strings.ToUpper(raw), string(Complex)) {
		return Complex
	}
	return Simple
}
