// Package classifier turns raw PTY bytes into cleaned text, a per-session
// CLI-identity score, and WaitingState transitions (spec §4.B).
package classifier

import "regexp"

// csiOsc matches ANSI CSI and OSC escape sequences so pattern matching can
// run against human-legible text. Subscribers still receive the raw bytes
// unmodified; stripping only feeds the classifier's own heuristics.
var csiOsc = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[=>]`)

// controlChars strips the remaining non-printable bytes (other than
// newline/tab) left after escape-sequence removal.
var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// Strip removes CSI/OSC escape sequences and stray control bytes, returning
// text suitable for lexical pattern matching. Never used on the wire path:
// subscribers always get the original bytes.
func Strip(raw []byte) string {
	s := csiOsc.ReplaceAll(raw, nil)
	s = controlChars.ReplaceAll(s, nil)
	return string(s)
}
