package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queenbee-sre/deliberate/pkg/llm"
	"github.com/queenbee-sre/deliberate/pkg/role"
)

func TestDeliberator_Contribute_ReturnsContribution(t *testing.T) {
	stub := llm.NewStub()
	stub.DefaultResponse = "This is a substantive contribution about the topic."
	d := NewDeliberator(role.Divergent, stub, role.NewPromptBuilder(), 0)

	outcome, err := d.Contribute(t.Context(), "question", nil, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeContribution, outcome.Kind)
	assert.Equal(t, "This is a substantive contribution about the topic.", outcome.Text)
}

func TestDeliberator_Contribute_ReturnsPass(t *testing.T) {
	stub := llm.NewStub()
	stub.DefaultResponse = "PASS"
	d := NewDeliberator(role.Critical, stub, role.NewPromptBuilder(), 0)

	outcome, err := d.Contribute(t.Context(), "question", nil, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomePass, outcome.Kind)
}

func TestDeliberator_Contribute_ReturnsSearchRequest(t *testing.T) {
	stub := llm.NewStub()
	stub.DefaultResponse = `@WebSearcher! search for "release train best practices"`
	d := NewDeliberator(role.Quantifier, stub, role.NewPromptBuilder(), 0)

	outcome, err := d.Contribute(t.Context(), "question", nil, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSearchRequest, outcome.Kind)
	assert.Equal(t, "release train best practices", outcome.Query)
}

func TestDeliberator_Contribute_PropagatesModelError(t *testing.T) {
	stub := llm.NewStub()
	stub.Err = llm.ErrProviderUnavailable
	d := NewDeliberator(role.Divergent, stub, role.NewPromptBuilder(), 0)

	_, err := d.Contribute(t.Context(), "question", nil, "")
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)
}

func TestSearcher_Search(t *testing.T) {
	stub := llm.NewStub()
	stub.DefaultResponse = "Search results for the query."
	s := NewSearcher(stub, role.NewPromptBuilder())

	text, err := s.Search(t.Context(), "release train best practices")
	require.NoError(t, err)
	assert.Equal(t, "Search results for the query.", text)
}

func TestSummarizer_RollingAndFinal(t *testing.T) {
	stub := llm.NewStub()
	stub.DefaultResponse = "summary text"
	s := NewSummarizer(stub, role.NewPromptBuilder())

	rolling, err := s.RollingSummary(t.Context(), "q", nil)
	require.NoError(t, err)
	assert.Equal(t, "summary text", rolling)

	final, err := s.FinalSynthesis(t.Context(), "q", nil, "prior summary")
	require.NoError(t, err)
	assert.Equal(t, "summary text", final)
}
