package report

import (
	"encoding/json"
	"io"

	"github.com/olegiv/accesslog-ai-go/internal/accesslog"
	"github.com/olegiv/accesslog-ai-go/internal/ai"
)

// Document is the JSON report: the summary plus, when requested and
// available, the AI assessment.
type Document struct {
	*accesslog.Summary
	Analysis *ai.Analysis `json:"analysis,omitempty"`
}

// RenderJSON writes the summary as indented JSON.
func RenderJSON(w io.Writer, s *accesslog.Summary, a *ai.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(Document{Summary: s, Analysis: a})
}
