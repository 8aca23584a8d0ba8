package agent

import (
	"regexp"
	"strings"
)

// toolTokenPattern matches a well-formed vendor-neutral tool-syntax token,
// e.g. "<|tool_call|>" or "<|tool|>args".
var toolTokenPattern = regexp.MustCompile(`<\|[^|]*\|>`)

// danglingTokenPattern matches an unterminated "<|..." fragment running up
// to (but not including) the next "<", left behind when a model emits a
// malformed tool token.
var danglingTokenPattern = regexp.MustCompile(`<\|[^<]*`)

// blankRunPattern collapses three or more consecutive newlines (i.e. two
// or more blank lines) to a single blank line.
var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// CleanResponse strips tool-protocol tokens, collapses blank-line runs,
// and trims the result. It is intentionally conservative: it only
// removes recognized tool-syntax shapes, never arbitrary model text.
func CleanResponse(raw string) string {
	cleaned := toolTokenPattern.ReplaceAllString(raw, "")
	cleaned = danglingTokenPattern.ReplaceAllString(cleaned, "")
	cleaned = blankRunPattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// minContributionLength is the shortest cleaned response treated as a
// genuine contribution; anything shorter is a pass.
const minContributionLength = 10

// passMarkerPattern matches a leading PASS marker, with or without an
// opening bracket, case-insensitively.
var passMarkerPattern = regexp.MustCompile(`(?i)^\s*\[?\s*PASS`)

// IsPass reports whether a cleaned response should be treated as a pass:
// empty, too short to be a real contribution, or leading with a PASS
// marker.
func IsPass(cleaned string) bool {
	if len(cleaned) < minContributionLength {
		return true
	}
	return passMarkerPattern.MatchString(cleaned)
}

// searchRequestPattern matches the "@WebSearcher ... search ... <query>"
// grammar: the mention, optional punctuation and an optional "please",
// then a search verb with an optional "for", then an optionally-quoted
// query terminated by sentence-ending punctuation, a closing quote, or
// end of line.
var searchRequestPattern = regexp.MustCompile(`(?i)@WebSearcher[^a-zA-Z]*(?:please[^a-zA-Z]+)?search\s+(?:for\s+)?"?([^".!?\n]+)`)

// ParseSearchRequest extracts the query from a raw response matching the
// search-request grammar. ok is false if the response does not match.
func ParseSearchRequest(raw string) (query string, ok bool) {
	m := searchRequestPattern.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	q := strings.TrimSpace(m[1])
	q = strings.TrimRight(q, `"'.,;: `)
	if q == "" {
		return "", false
	}
	return q, true
}
