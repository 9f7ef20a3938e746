package classifier

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperstream/sessiond/internal/agentkind"
)

// IdentityTracker accumulates weighted evidence of a session's CLI identity
// and applies hysteresis before switching it, per spec §4.B: a switch
// requires a minimum score of 5 and a margin of 2 over the current identity.
type IdentityTracker struct {
	scores  map[agentkind.Kind]int
	current agentkind.Kind
}

// NewIdentityTracker starts with no evidence and agentkind.Unknown current.
func NewIdentityTracker() *IdentityTracker {
	return &IdentityTracker{
		scores:  make(map[agentkind.Kind]int),
		current: agentkind.Unknown,
	}
}

// ObserveCommand scores the spawn command's executable basename (weight 8).
func (t *IdentityTracker) ObserveCommand(cmdLine string) {
	fields := strings.Fields(cmdLine)
	if len(fields) == 0 {
		return
	}
	base := filepath.Base(fields[0])
	kind := agentkind.FromCommand(base)
	if kind == agentkind.Unknown {
		return
	}
	t.add(kind, agentkind.WeightCommand)
}

// ObserveText scans cleaned text for conservative banner phrases (weight 4
// per phrase occurrence family; a phrase only counts once per call).
func (t *IdentityTracker) ObserveText(cleaned string) {
	for _, kind := range agentkind.All() {
		for _, phrase := range agentkind.BannerPhrases(kind) {
			if strings.Contains(cleaned, phrase) {
				t.add(kind, agentkind.WeightBanner)
				break
			}
		}
	}
}

func (t *IdentityTracker) add(kind agentkind.Kind, weight int) {
	t.scores[kind] += weight
	t.maybeSwitch(kind)
}

// maybeSwitch applies the hysteresis rule: kind becomes current only if its
// score is at least MinScore and beats the current identity's score by at
// least MinMargin.
func (t *IdentityTracker) maybeSwitch(candidate agentkind.Kind) {
	if candidate == t.current {
		return
	}
	score := t.scores[candidate]
	if score < agentkind.MinScore {
		return
	}
	if score-t.scores[t.current] < agentkind.MinMargin {
		return
	}
	t.current = candidate
}

// Current returns the session's current identity and a small confidence
// bucket derived from the winning score (0-3).
func (t *IdentityTracker) Current() (agentkind.Kind, int) {
	return t.current, confidenceBucket(t.scores[t.current])
}

func confidenceBucket(score int) int {
	switch {
	case score >= 16:
		return 3
	case score >= 12:
		return 2
	case score >= 8:
		return 1
	default:
		return 0
	}
}

// String renders the tracker's internal score table, for debug logging.
func (t *IdentityTracker) String() string {
	var b strings.Builder
	b.WriteString("current=")
	b.WriteString(string(t.current))
	for _, k := range agentkind.All() {
		if s, ok := t.scores[k]; ok {
			b.WriteString(" " + string(k) + "=" + strconv.Itoa(s))
		}
	}
	return b.String()
}
