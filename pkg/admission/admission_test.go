package admission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/queenbee-sre/deliberate/pkg/role"
)

func nonHidden(agents ...string) []NonHiddenContribution {
	out := make([]NonHiddenContribution, 0, len(agents))
	for _, a := range agents {
		out = append(out, NonHiddenContribution{Agent: a, Content: "content"})
	}
	return out
}

func appeared(roles ...role.Role) map[role.Role]bool {
	m := make(map[role.Role]bool, len(roles))
	for _, r := range roles {
		m[r] = true
	}
	return m
}

func TestShouldContribute_BootstrapEmptyDiscussion(t *testing.T) {
	d := Discussion{}
	assert.True(t, ShouldContribute(role.Divergent, d, "x", 0))
}

func TestShouldContribute_BootstrapOneContribution(t *testing.T) {
	d := Discussion{NonHidden: nonHidden("Divergent")}
	assert.True(t, ShouldContribute(role.Convergent, d, "x", 0))
}

func TestShouldContribute_FirstContributionGatedByRelevance(t *testing.T) {
	d := Discussion{NonHidden: nonHidden("Divergent", "Convergent")}
	assert.True(t, ShouldContribute(role.Critical, d, "what is the risk here?", 0))
	assert.False(t, ShouldContribute(role.Critical, d, "nothing relevant mentioned", 0))
}

func TestShouldContribute_NoBackToBack(t *testing.T) {
	d := Discussion{NonHidden: nonHidden("Divergent", "Convergent", "Divergent")}
	assert.False(t, ShouldContribute(role.Divergent, d, "idea explore", 1))
}

func TestShouldContribute_AntiDominance(t *testing.T) {
	// Convergent appears twice in the last three non-hidden contributions
	// but is not the most recent author, so rule 3 would pass — rule 4
	// must reject.
	d := Discussion{NonHidden: nonHidden("Convergent", "Convergent", "Divergent")}
	assert.False(t, ShouldContribute(role.Convergent, d, "combine agree", 2))
}

func TestShouldContribute_HardCap(t *testing.T) {
	d := Discussion{NonHidden: nonHidden("A", "B", "C", "D", "E", "F", "G")}
	assert.False(t, ShouldContribute(role.Divergent, d, "idea", 3))
}

func TestShouldContribute_CoreBootstrapBeforeAllCoreAppeared(t *testing.T) {
	// Convergent has already contributed once (own_count==1, so rule 2's
	// own_count==0 relevance gate no longer applies) but Critical has not
	// yet appeared, so rule 6's core clause re-admits Convergent to keep
	// seeding the core trio.
	d := Discussion{
		NonHidden:     nonHidden("Divergent", "Convergent", "Divergent", "Pragmatist"),
		AppearedRoles: appeared(role.Divergent, role.Convergent, role.Pragmatist),
	}
	assert.True(t, ShouldContribute(role.Convergent, d, "irrelevant text", 1))
}

func TestShouldContribute_SupportBootstrapFirstAppearance(t *testing.T) {
	// First contribution (own_count==0) for an irrelevant keyword match
	// is rejected by rule 2 directly; this exercises the case used by
	// rule 1 instead, since rule 2 is reached first whenever
	// own_count==0.
	d := Discussion{NonHidden: nonHidden("Divergent")}
	assert.True(t, ShouldContribute(role.Pragmatist, d, "irrelevant text", 0))
}

func TestShouldContribute_Rule6RejectsWhenNeitherConditionHolds(t *testing.T) {
	d := Discussion{
		NonHidden:     nonHidden("Divergent", "Pragmatist", "Convergent", "Critical"),
		AppearedRoles: appeared(role.Divergent, role.Convergent, role.Critical, role.Pragmatist),
	}
	// own_count==1 forces past rules 1-5 into rule 6: all core roles have
	// already appeared and Pragmatist has already contributed once, so
	// neither rule-6 condition holds.
	assert.False(t, ShouldContribute(role.Pragmatist, d, "nothing relevant", 1))
}

func TestShouldContribute_LateStageRejectsAtTwoOwnContributions(t *testing.T) {
	d := Discussion{NonHidden: make([]NonHiddenContribution, 8)}
	for i := range d.NonHidden {
		d.NonHidden[i] = NonHiddenContribution{Agent: "Other", Content: "x"}
	}
	assert.False(t, ShouldContribute(role.Critical, d, "risk concern", 2))
}

func TestShouldContribute_LateStageAdmitsByRelevanceAtOneOwnContribution(t *testing.T) {
	d := Discussion{NonHidden: make([]NonHiddenContribution, 8)}
	for i := range d.NonHidden {
		d.NonHidden[i] = NonHiddenContribution{Agent: "Other", Content: "x"}
	}
	assert.True(t, ShouldContribute(role.Critical, d, "what is the risk here", 1))
}

func TestShouldContribute_LateStageConvergenceReject(t *testing.T) {
	d := Discussion{NonHidden: make([]NonHiddenContribution, 12)}
	for i := range d.NonHidden {
		d.NonHidden[i] = NonHiddenContribution{Agent: "Other", Content: "x"}
	}
	assert.False(t, ShouldContribute(role.Quantifier, d, "data metric evidence", 2))
}

func TestShouldContribute_IsPureFunction(t *testing.T) {
	d := Discussion{NonHidden: nonHidden("Divergent", "Convergent")}
	first := ShouldContribute(role.Critical, d, "risk", 0)
	second := ShouldContribute(role.Critical, d, "risk", 0)
	assert.Equal(t, first, second)
}
