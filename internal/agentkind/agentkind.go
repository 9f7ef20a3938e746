// Package agentkind identifies which interactive CLI a session's PTY is
// running: a recognized coding agent, or a plain shell.
package agentkind

// Kind is the agent identity attached to a session.
type Kind string

const (
	Unknown      Kind = "unknown"
	TerminalOnly Kind = "terminal-only"
	Claude       Kind = "claude"
	Codex        Kind = "codex"
	Gemini       Kind = "gemini"
	OpenCode     Kind = "opencode"
)

// Signal strengths used by the Output Classifier's weighted identity score
// (spec §4.B). Spawn-command basenames are the strongest signal; banner
// phrases seen in terminal output are weaker and must accumulate before
// they can flip an established identity.
const (
	WeightCommand = 8
	WeightBanner  = 4

	// MinScore and MinMargin gate an identity switch: a candidate needs at
	// least MinScore points and must beat the incumbent by MinMargin to
	// take over, preventing flapping when agents mention each other by name.
	MinScore  = 5
	MinMargin = 2
)

// commandBasenames maps recognized executable basenames/aliases to a Kind.
// Used both by the classifier (spawn-command signal) and by the PTY
// Supervisor to decide which spawn-argument shape to use.
var commandBasenames = map[string]Kind{
	"claude":  Claude,
	"claude-code": Claude,
	"codex":   Codex,
	"gemini":  Gemini,
	"opencode": OpenCode,
}

// bannerPhrases are conservative phrases that show up in an agent's own
// terminal banner/output and weakly suggest its identity.
var bannerPhrases = map[Kind][]string{
	Claude:   {"Claude Code", "anthropic.com/claude-code"},
	Codex:    {"OpenAI Codex", "codex cli"},
	Gemini:   {"Gemini CLI", "Google Gemini"},
	OpenCode: {"opencode.ai", "OpenCode CLI"},
}

// FromCommand returns the Kind implied by a spawn command's basename, or
// Unknown if the basename isn't recognized.
func FromCommand(basename string) Kind {
	if k, ok := commandBasenames[basename]; ok {
		return k
	}
	return Unknown
}

// BannerPhrases returns the conservative banner phrases associated with k.
func BannerPhrases(k Kind) []string {
	return bannerPhrases[k]
}

// All lists every recognized agent kind (excluding Unknown/TerminalOnly),
// in a stable order, for classifier score-table initialization.
func All() []Kind {
	return []Kind{Claude, Codex, Gemini, OpenCode}
}
