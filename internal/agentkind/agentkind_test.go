package agentkind

import "testing"

func TestFromCommand(t *testing.T) {
	cases := map[string]Kind{
		"claude":      Claude,
		"claude-code": Claude,
		"codex":       Codex,
		"gemini":      Gemini,
		"opencode":    OpenCode,
		"bash":        Unknown,
	}
	for cmd, want := range cases {
		if got := FromCommand(cmd); got != want {
			t.Errorf("FromCommand(%q) = %q, want %q", cmd, got, want)
		}
	}
}

func TestBannerPhrases_NonEmptyForEveryRecognizedKind(t *testing.T) {
	for _, k := range All() {
		if len(BannerPhrases(k)) == 0 {
			t.Errorf("BannerPhrases(%q) is empty", k)
		}
	}
}
