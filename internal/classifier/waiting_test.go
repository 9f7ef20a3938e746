package classifier

import (
	"testing"
	"time"

	"github.com/hyperstream/sessiond/internal/model"
)

func TestDetectWaiting_ToolApproval(t *testing.T) {
	text := "Building…\nDo you want to proceed?\n1. Yes\n2. Yes, don't ask again\n3. No\n"
	evt := DetectWaiting(text, time.Now())
	if evt == nil {
		t.Fatal("expected a WaitEvent, got nil")
	}
	if evt.WaitKind != model.WaitToolApproval {
		t.Errorf("wait kind = %s, want %s", evt.WaitKind, model.WaitToolApproval)
	}
	if evt.ApprovalModel != model.ApprovalNumbered {
		t.Errorf("approval model = %s, want %s", evt.ApprovalModel, model.ApprovalNumbered)
	}
}

func TestDetectWaiting_PlanApproval(t *testing.T) {
	text := "Here is my plan:\n1. Do X\n2. Do Y\nDo you approve this plan? [y/n]"
	evt := DetectWaiting(text, time.Now())
	if evt == nil {
		t.Fatal("expected a WaitEvent, got nil")
	}
	if evt.WaitKind != model.WaitPlanApproval {
		t.Errorf("wait kind = %s, want %s", evt.WaitKind, model.WaitPlanApproval)
	}
}

func TestDetectWaiting_ClarifyingQuestion(t *testing.T) {
	text := "I need more context.\nWhich file should I edit?"
	evt := DetectWaiting(text, time.Now())
	if evt == nil {
		t.Fatal("expected a WaitEvent, got nil")
	}
	if evt.WaitKind != model.WaitClarifyingQuestion {
		t.Errorf("wait kind = %s, want %s", evt.WaitKind, model.WaitClarifyingQuestion)
	}
}

func TestDetectWaiting_GenericProceedIsNotApproval(t *testing.T) {
	text := "Some unrelated output.\nproceed?\n"
	evt := DetectWaiting(text, time.Now())
	if evt != nil {
		t.Fatalf("expected no WaitEvent for bare 'proceed?' text, got %+v", evt)
	}
}

func TestDetectWaiting_NoMatch(t *testing.T) {
	evt := DetectWaiting("just some normal output\nwith no prompts\n", time.Now())
	if evt != nil {
		t.Fatalf("expected nil, got %+v", evt)
	}
}

func TestShouldPromote(t *testing.T) {
	evt := &WaitEvent{Fingerprint: "abc"}
	if !ShouldPromote(nil, evt) {
		t.Error("expected promotion with no prior state")
	}
	same := &model.WaitingState{PromptFingerprint: "abc"}
	if ShouldPromote(same, evt) {
		t.Error("expected no promotion when fingerprint unchanged")
	}
	diff := &model.WaitingState{PromptFingerprint: "xyz"}
	if !ShouldPromote(diff, evt) {
		t.Error("expected promotion when fingerprint changed")
	}
}

func TestKeystrokesFor(t *testing.T) {
	cases := []struct {
		model_ model.ApprovalModel
		choice ApprovalChoice
		want   string
	}{
		{model.ApprovalNumbered, ChoiceFirst, "1\r"},
		{model.ApprovalNumbered, ChoiceDeny, "3\r"},
		{model.ApprovalYesNo, ChoiceFirst, "y\r"},
		{model.ApprovalYesNo, ChoiceDeny, "n\r"},
		{model.ApprovalArrow, ChoiceFirst, "\r"},
		{model.ApprovalArrow, ChoiceSecond, "\x1b[C\r"},
		{model.ApprovalArrow, ChoiceDeny, "\x1b[C\x1b[C\r"},
	}
	for _, c := range cases {
		got := string(KeystrokesFor(c.model_, c.choice))
		if got != c.want {
			t.Errorf("KeystrokesFor(%s, %d) = %q, want %q", c.model_, c.choice, got, c.want)
		}
	}
}

func TestIdentityTracker_HysteresisPreventsFlapping(t *testing.T) {
	tr := NewIdentityTracker()
	tr.ObserveCommand("claude")
	kind, _ := tr.Current()
	if kind != "claude" {
		t.Fatalf("expected claude after command observation, got %s", kind)
	}
	// A single weak banner match for a different kind shouldn't flip it.
	tr.ObserveText("codex cli")
	kind, _ = tr.Current()
	if kind != "claude" {
		t.Errorf("expected identity to stay claude after one weak signal, got %s", kind)
	}
}
