package tailer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"mvdan.cc/sh/v3/shell"
)

// renderUnifiedDiff turns an Edit/MultiEdit tool_use block's old/new
// strings into a compact unified-style diff for a code_diff Activity's
// content field.
func renderUnifiedDiff(oldText, newText string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			for _, line := range strings.Split(d.Text, "\n") {
				if line == "" {
					continue
				}
				b.WriteString("+" + line + "\n")
			}
		case diffmatchpatch.DiffDelete:
			for _, line := range strings.Split(d.Text, "\n") {
				if line == "" {
					continue
				}
				b.WriteString("-" + line + "\n")
			}
		}
	}
	return b.String()
}

// splitBashArgv splits a bash_command tool's shell string into argv the
// way a POSIX shell would, for structured display (word splitting only;
// no expansion against a real environment).
func splitBashArgv(command string) []string {
	fields, err := shell.Fields(context.Background(), command, nil)
	if err != nil {
		return strings.Fields(command)
	}
	return fields
}

// editParams is the subset of an Edit/MultiEdit tool_use input this
// tailer understands.
type editParams struct {
	FilePath  string `json:"file_path"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
}

func parseEditParams(input json.RawMessage) editParams {
	var p editParams
	_ = json.Unmarshal(input, &p)
	return p
}
