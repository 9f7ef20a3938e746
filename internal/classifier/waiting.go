package classifier

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/hyperstream/sessiond/internal/model"
)

// tailWindow is how much of the stripped output tail is scanned for a
// waiting prompt (spec §4.B: "the last ~1.2 KiB of stripped output").
const tailWindow = 1200

// tailLines caps the scan further to the last few non-empty lines, to
// reject stale matches left over from scrollback.
const tailLines = 6

// snippetLimit bounds the WaitEvent snippet to the last N characters.
const snippetLimit = 300

var (
	numberedCue  = regexp.MustCompile(`(?is)1\.[\s\S]*2\.|allow once|allow always|don't ask again`)
	yesNoCue     = regexp.MustCompile(`(?i)\[y/n\]|\[Y/n\]|\(yes/no\)`)
	arrowCue     = regexp.MustCompile(`(?i)arrow.{0,20}(key|navigat)|[\x{2190}-\x{2193}]|use arrows`)
	toolApproval = regexp.MustCompile(`(?i)(do you want to allow|allow|approve|permission).{0,40}(tool|this action)|tool.{0,40}(allow|approve|permission)|do you want to proceed|proceed\?`)
	planApproval = regexp.MustCompile(`(?i)plan.{0,40}(approve|review)|approve.{0,40}plan`)
	awaitingCue  = regexp.MustCompile(`(?i)press enter to continue|enter your choice`)
	questionLine = regexp.MustCompile(`\?\s*$`)
)

// WaitEvent is emitted whenever the classifier recognizes a waiting prompt
// in a session's tail output.
type WaitEvent struct {
	WaitKind      model.WaitKind
	ApprovalModel model.ApprovalModel
	Snippet       string
	Fingerprint   string
	DetectedAt    time.Time
}

// DetectWaiting inspects the stripped tail of a session's output and
// returns a WaitEvent if a recognized waiting prompt is present. Detection
// order is plan -> tool -> question -> awaiting (spec §4.B); nil is
// returned when nothing matches.
func DetectWaiting(strippedAll string, now time.Time) *WaitEvent {
	tail := lastN(strippedAll, tailWindow)
	lines := lastNonEmptyLines(tail, tailLines)
	scanned := strings.Join(lines, "\n")

	model_ := approvalModelOf(scanned)

	var kind model.WaitKind
	switch {
	case planApproval.MatchString(scanned):
		kind = model.WaitPlanApproval
	case model_ != model.ApprovalNone && toolApproval.MatchString(scanned):
		kind = model.WaitToolApproval
	case len(lines) > 0 && questionLine.MatchString(lines[len(lines)-1]) && !toolApproval.MatchString(lines[len(lines)-1]):
		kind = model.WaitClarifyingQuestion
		model_ = model.ApprovalNone
	case awaitingCue.MatchString(scanned):
		kind = model.WaitAwaitingResponse
	default:
		return nil
	}

	snippet := lastN(strippedAll, snippetLimit)
	return &WaitEvent{
		WaitKind:      kind,
		ApprovalModel: model_,
		Snippet:       snippet,
		Fingerprint:   fingerprint(snippet),
		DetectedAt:    now,
	}
}

// approvalModelOf identifies which approval model's lexical cues are
// present, or ApprovalNone. Generic "proceed?" text without one of these
// cues is deliberately not treated as an approval prompt.
func approvalModelOf(text string) model.ApprovalModel {
	switch {
	case numberedCue.MatchString(text):
		return model.ApprovalNumbered
	case yesNoCue.MatchString(text):
		return model.ApprovalYesNo
	case arrowCue.MatchString(text):
		return model.ApprovalArrow
	default:
		return model.ApprovalNone
	}
}

// ShouldPromote reports whether evt should replace cur as the session's
// WaitingState: either there was no prior state, or the fingerprint changed.
func ShouldPromote(cur *model.WaitingState, evt *WaitEvent) bool {
	if cur == nil {
		return true
	}
	return cur.PromptFingerprint != evt.Fingerprint
}

func fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func lastNonEmptyLines(s string, n int) []string {
	all := strings.Split(s, "\n")
	var nonEmpty []string
	for _, l := range all {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, l)
		}
	}
	if len(nonEmpty) <= n {
		return nonEmpty
	}
	return nonEmpty[len(nonEmpty)-n:]
}
