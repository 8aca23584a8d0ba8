package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/queenbee-sre/deliberate/pkg/llm"
	"github.com/queenbee-sre/deliberate/pkg/role"
)

func TestClassifier_Complex(t *testing.T) {
	stub := llm.NewStub()
	stub.DefaultResponse = "COMPLEX"
	c := NewClassifier(stub, role.NewPromptBuilder())

	assert.Equal(t, Complex, c.Classify(t.Context(), "Compare microservices vs monolith"))
}

func TestClassifier_Simple(t *testing.T) {
	stub := llm.NewStub()
	stub.DefaultResponse = "SIMPLE"
	c := NewClassifier(stub, role.NewPromptBuilder())

	assert.Equal(t, Simple, c.Classify(t.Context(), "What is 2+2?"))
}

func TestClassifier_ErrorFailsSafeToComplex(t *testing.T) {
	stub := llm.NewStub()
	stub.Err = llm.ErrProviderUnavailable
	c := NewClassifier(stub, role.NewPromptBuilder())

	assert.Equal(t, Complex, c.Classify(t.Context(), "anything"))
}
