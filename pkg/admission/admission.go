// Package admission implements the pure policy that decides, before
// each model call, whether a deliberator agent may contribute on its
// current tick.
package admission

import (
	"strings"

	"github.com/queenbee-sre/deliberate/pkg/role"
)

// hardCap is the maximum number of non-hidden contributions any
// deliberator may make in a single run. Config's per-role MaxIterations
// is advisory only — this is the enforced invariant.
const hardCap = 3

// bootstrapDiscussionLen is the discussion length below which any agent
// making its first contribution is admitted unconditionally.
const bootstrapDiscussionLen = 2

// coreBootstrapDiscussionLen gates rule 6: under this length, core roles
// that haven't all appeared yet, or support roles making their first
// appearance, are admitted.
const coreBootstrapDiscussionLen = 6

// lateStageDiscussionLen gates rule 7: at or beyond this length the
// policy enters late-stage convergence.
const lateStageDiscussionLen = 12

// NonHiddenContribution is the minimal view AdmissionPolicy needs of one
// prior contribution: its author and whether it is visible to end users.
type NonHiddenContribution struct {
	Agent   string
	Content string
	Hidden  bool
}

// Discussion is the minimal discussion-state view the policy consults.
// Callers build this from a DiscussionState snapshot taken under the
// state guard.
type Discussion struct {
	// NonHidden is every non-hidden contribution so far, in append order.
	NonHidden []NonHiddenContribution
	// AppearedRoles is the set of roles that have made at least one
	// non-hidden contribution so far.
	AppearedRoles map[role.Role]bool
}

// lastN returns the last n entries of d.NonHidden, or fewer if there
// aren't n yet.
func (d Discussion) lastN(n int) []NonHiddenContribution {
	if len(d.NonHidden) <= n {
		return d.NonHidden
	}
	return d.NonHidden[len(d.NonHidden)-n:]
}

// ShouldContribute is the pure policy function. It is evaluated fresh on
// every tick and never retains state between calls.
func ShouldContribute(agent role.Role, discussion Discussion, userInput string, ownContributionCount int) bool {
	n := len(discussion.NonHidden)

	// Rule 1: bootstrap.
	if ownContributionCount == 0 && n < bootstrapDiscussionLen {
		return true
	}

	// Rule 2: relevance-gated first contribution.
	if ownContributionCount == 0 {
		return isRelevant(agent, discussion, userInput)
	}

	// Rule 3: no back-to-back.
	if n > 0 && discussion.NonHidden[n-1].Agent == string(agent) {
		return false
	}

	// Rule 4: anti-dominance — same agent >= 2 of the last 3.
	last3 := discussion.lastN(3)
	count := 0
	for _, c := range last3 {
		if c.Agent == string(agent) {
			count++
		}
	}
	if count >= 2 {
		return false
	}

	// Rule 5: hard cap.
	if ownContributionCount >= hardCap {
		return false
	}

	// Rule 6: core/support bootstrapping under coreBootstrapDiscussionLen.
	if n < coreBootstrapDiscussionLen {
		coreNotYetComplete := role.IsCore(agent) && !allCoreAppeared(discussion)
		supportFirstAppearance := role.IsSupport(agent) && !discussion.AppearedRoles[agent] && n >= bootstrapDiscussionLen
		return coreNotYetComplete || supportFirstAppearance
	}

	// Rule 7: late-stage tightening, falling back to relevance (rule 2).
	if n < lateStageDiscussionLen {
		if ownContributionCount >= 2 {
			return false
		}
		return isRelevant(agent, discussion, userInput)
	}

	// Rule 8: late-stage convergence.
	return false
}

func allCoreAppeared(discussion Discussion) bool {
	for _, c := range role.CoreRoles {
		if !discussion.AppearedRoles[c] {
			return false
		}
	}
	return true
}

// isRelevant reports whether agent's relevance keywords appear in
// userInput or in the concatenated content of the last three
// contributions.
func isRelevant(agent role.Role, discussion Discussion, userInput string) bool {
	keywords := role.Descriptors[agent].RelevanceKeywords
	if len(keywords) == 0 {
		return false
	}

	var recent strings.Builder
	for _, c := range discussion.lastN(3) {
		recent.WriteString(c.Content)
		recent.WriteString(" ")
	}
	haystack := strings.ToLower(userInput + " " + recent.String())
	for _, k := range keywords {
		if strings.Contains(haystack, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
