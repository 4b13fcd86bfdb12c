package conversation

import "strings"

// SummaryPrefix introduces the rolling summary wherever it is shown to the model.
const SummaryPrefix = "Summary of conversation earlier: "

// SummaryState holds at most one rolling summary. Each summarization pass
// replaces the text; it is never appended to.
type SummaryState struct {
	text     string
	revision int
}

// RestoreSummary rebuilds a SummaryState from persisted values.
func RestoreSummary(text string, revision int) SummaryState {
	return SummaryState{text: text, revision: revision}
}

// Text returns the current summary, or "" when none exists.
func (s SummaryState) Text() string { return s.text }

// Exists reports whether a non-empty summary is held.
func (s SummaryState) Exists() bool { return s.text != "" }

// Revision counts how many times the summary has been replaced.
func (s SummaryState) Revision() int { return s.revision }

// Replace substitutes text for the current summary.
func (s *SummaryState) Replace(text string) {
	s.text = text
	s.revision++
}

// SummaryTurn renders summary as the system turn shown ahead of the history.
func SummaryTurn(summary string) Turn {
	return SystemTurn(SummaryPrefix + summary)
}

// IsSummaryTurn reports whether t is a system turn carrying a rolling summary.
func IsSummaryTurn(t Turn) bool {
	return t.Role == RoleSystem && strings.HasPrefix(t.Content, strings.TrimSpace(SummaryPrefix))
}

// SummaryFromTurn extracts the summary text from a summary turn.
func SummaryFromTurn(t Turn) string {
	if !IsSummaryTurn(t) {
		return ""
	}
	if s, ok := strings.CutPrefix(t.Content, SummaryPrefix); ok {
		return s
	}
	return strings.TrimPrefix(t.Content, strings.TrimSpace(SummaryPrefix))
}
