package pipeline

import "strings"

// Command is the interpreted intent of a piece of human feedback.
type Command string

const (
	// CommandApprove accepts the current stage's output and continues.
	CommandApprove Command = "approve"
	// CommandRewrite rejects the evidence and asks for a query rewrite.
	CommandRewrite Command = "rewrite"
	// CommandMoreSources asks for another retrieval pass.
	CommandMoreSources Command = "more_sources"
	// CommandRevise asks for the draft answer to be rewritten.
	CommandRevise Command = "revise"
	// CommandShip accepts the answer as final.
	CommandShip Command = "ship"
	// CommandIterate asks for one more full refinement pass.
	CommandIterate Command = "iterate"
	// CommandRestart starts the turn over from analysis.
	CommandRestart Command = "restart"
)

// feedbackKeywords maps trigger keywords to commands. Order matters: the
// first matching entry wins, so the more specific phrases come first.
// Kept as a table rather than inline conditionals so the mapping is
// testable and auditable on its own.
var feedbackKeywords = []struct {
	keywords []string
	command  Command
}{
	{[]string{"more sources", "more_sources", "retry"}, CommandMoreSources},
	{[]string{"reject", "rewrite"}, CommandRewrite},
	{[]string{"revise", "redo the answer"}, CommandRevise},
	{[]string{"restart", "start over"}, CommandRestart},
	{[]string{"iterate", "another pass"}, CommandIterate},
	{[]string{"ship"}, CommandShip},
	{[]string{"approve", "looks good", "lgtm", "accept"}, CommandApprove},
}

// ParseFeedback interprets free-text human feedback as a Command by
// best-effort keyword matching. Unrecognized feedback approves, so a
// human can always nudge the pipeline forward with any reply.
func ParseFeedback(text string) Command {
	lower := strings.ToLower(text)
	for _, entry := range feedbackKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.command
			}
		}
	}
	return CommandApprove
}
