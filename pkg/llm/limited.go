package llm

import "context"

// limitedModel wraps a Model with a Coordinator gate, bound to one fixed
// (provider, model) pair. It is the Model the engine is actually handed
// in production; Stub bypasses it entirely in tests.
type limitedModel struct {
	base      Model
	coord     *Coordinator
	provider  string
	modelName string
}

// RateLimited wraps base with coord's rate-limit gate and retry policy,
// tagging every call with (provider, modelName).
func RateLimited(base Model, coord *Coordinator, provider, modelName string) Model {
	return &limitedModel{base: base, coord: coord, provider: provider, modelName: modelName}
}

// Generate implements Model.
func (m *limitedModel) Generate(ctx context.Context, req Request) (string, error) {
	return m.coord.CallWithRetry(ctx, m.provider, m.modelName, func(ctx context.Context) (string, error) {
		return m.base.Generate(ctx, req)
	})
}
