package classifier

import "github.com/hyperstream/sessiond/internal/model"

// ApprovalChoice is the caller's intent when replying to an approval
// prompt: the first (allow-once-style) option, the second option, or deny.
type ApprovalChoice int

const (
	ChoiceFirst ApprovalChoice = iota
	ChoiceSecond
	ChoiceDeny
)

// KeystrokesFor translates an approval reply into the raw bytes to write
// to the PTY, per spec §4.B:
//
//	numbered -> "1"/"2"/"3" + CR
//	yes/no   -> "y"/"n" (yes-always falls back to yes)
//	arrow    -> CR for first, ESC[C+CR for second, ESC[C ESC[C+CR for deny
func KeystrokesFor(model_ model.ApprovalModel, choice ApprovalChoice) []byte {
	const esc = "\x1b[C"
	switch model_ {
	case model.ApprovalNumbered:
		switch choice {
		case ChoiceFirst:
			return []byte("1\r")
		case ChoiceSecond:
			return []byte("2\r")
		default:
			return []byte("3\r")
		}
	case model.ApprovalYesNo:
		if choice == ChoiceDeny {
			return []byte("n\r")
		}
		return []byte("y\r")
	case model.ApprovalArrow:
		switch choice {
		case ChoiceFirst:
			return []byte("\r")
		case ChoiceSecond:
			return []byte(esc + "\r")
		default:
			return []byte(esc + esc + "\r")
		}
	default:
		return []byte("\r")
	}
}
