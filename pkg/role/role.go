// Package role defines the closed set of agent roles and their
// descriptors: temperature, relevance keywords, and prompt shape. All
// role-specific behavior lives in the descriptor table in this file
// rather than in per-role types, so AdmissionPolicy and the discussion
// engine can treat a Role as an opaque tag.
package role

// Role identifies one of the fixed agent specializations.
type Role string

const (
	Divergent  Role = "Divergent"
	Convergent Role = "Convergent"
	Critical   Role = "Critical"
	Pragmatist Role = "Pragmatist"
	UserProxy  Role = "UserProxy"
	Quantifier Role = "Quantifier"

	Summarizer  Role = "Summarizer"
	WebSearcher Role = "WebSearcher"
	Classifier  Role = "Classifier"
)

// CoreRoles deliberate first and anchor the discussion's shape.
var CoreRoles = []Role{Divergent, Convergent, Critical}

// SupportRoles broaden the discussion once the core roles are seeded.
var SupportRoles = []Role{Pragmatist, UserProxy, Quantifier}

// Deliberators is every role that participates in AdmissionPolicy-gated
// turns. It excludes Summarizer, WebSearcher, and Classifier, which are
// invoked directly by the engine rather than competing for admission.
var Deliberators = append(append([]Role{}, CoreRoles...), SupportRoles...)

// IsCore reports whether r is one of the three core deliberator roles.
func IsCore(r Role) bool {
	for _, c := range CoreRoles {
		if c == r {
			return true
		}
	}
	return false
}

// IsSupport reports whether r is one of the three support deliberator
// roles.
func IsSupport(r Role) bool {
	for _, s := range SupportRoles {
		if s == r {
			return true
		}
	}
	return false
}

// Descriptor bundles the fixed, per-role behavior that AdmissionPolicy
// and the prompt builder both consult.
type Descriptor struct {
	Role              Role
	Temperature       float64
	RelevanceKeywords []string
	StanceDirective   string
}

// FinalSummaryTemperature is used for the terminal synthesis call; the
// rolling SummaryLoop uses Descriptors[Summarizer].Temperature instead.
const FinalSummaryTemperature = 0.4

// Descriptors is the single source of truth for per-role temperature,
// relevance keywords, and prompt stance. Adding a role means adding one
// row here — nothing else in the engine branches on role identity.
var Descriptors = map[Role]Descriptor{
	Divergent: {
		Role:              Divergent,
		Temperature:       0.9,
		RelevanceKeywords: []string{"idea", "alternative", "option", "creative", "explore", "brainstorm", "novel", "approach"},
		StanceDirective:   "Propose new angles and alternatives the discussion has not yet considered. Favor breadth over caution.",
	},
	Convergent: {
		Role:              Convergent,
		Temperature:       0.5,
		RelevanceKeywords: []string{"combine", "synthesize", "agree", "consensus", "unify", "converge", "common ground"},
		StanceDirective:   "Look for where prior contributions agree or can be combined into a coherent position.",
	},
	Critical: {
		Role:              Critical,
		Temperature:       0.3,
		RelevanceKeywords: []string{"risk", "flaw", "problem", "weakness", "assumption", "caveat", "concern", "counter"},
		StanceDirective:   "Scrutinize prior contributions for unstated assumptions, risks, or weaknesses.",
	},
	Pragmatist: {
		Role:              Pragmatist,
		Temperature:       0.5,
		RelevanceKeywords: []string{"practical", "implement", "cost", "timeline", "feasible", "effort", "resource", "team"},
		StanceDirective:   "Evaluate what is actually feasible given real-world constraints and effort.",
	},
	UserProxy: {
		Role:              UserProxy,
		Temperature:       0.5,
		RelevanceKeywords: []string{"user", "need", "goal", "requirement", "expectation", "preference", "audience"},
		StanceDirective:   "Speak for the user's stated goal and flag where the discussion drifts from it.",
	},
	Quantifier: {
		Role:              Quantifier,
		Temperature:       0.5,
		RelevanceKeywords: []string{"data", "number", "metric", "measure", "estimate", "evidence", "benchmark", "statistic"},
		StanceDirective:   "Ground the discussion in numbers, estimates, or evidence where possible. Request a web search if a factual claim needs checking.",
	},
	Summarizer: {
		Role:              Summarizer,
		Temperature:       0.3,
		RelevanceKeywords: nil,
		StanceDirective:   "Summarize the discussion so far without adding new claims.",
	},
	WebSearcher: {
		Role:              WebSearcher,
		Temperature:       0.5,
		RelevanceKeywords: nil,
		StanceDirective:   "Answer the search query directly and factually; do not deliberate.",
	},
	Classifier: {
		Role:              Classifier,
		Temperature:       0.0,
		RelevanceKeywords: nil,
		StanceDirective:   "Respond with exactly one word: COMPLEX or SIMPLE.",
	},
}

// TemperatureFor returns the configured temperature for r, or 0.5 if r is
// unknown.
func TemperatureFor(r Role) float64 {
	if d, ok := Descriptors[r]; ok {
		return d.Temperature
	}
	return 0.5
}
