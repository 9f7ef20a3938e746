package tailer

import "github.com/hyperstream/sessiond/internal/model"

// NewCodexTailer builds a tailer for Codex's transcript, which shares the
// Claude line-delimited JSON shape (spec §4.C format 1) but is tagged with
// its own source marker so subscribers can tell the formats apart.
func NewCodexTailer(path string) *JSONLTailer {
	return NewJSONLTailer(path, model.SourceCodex)
}
