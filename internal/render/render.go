package render

import (
	"fmt"

	"github.com/dshills/watchgraph/internal/schema"
)

// Renderer formats reports into bytes for output.
type Renderer interface {
	Dashboard(report *schema.DashboardReport) ([]byte, error)
	System(report *schema.SystemReport) ([]byte, error)
}

// NewRenderer returns a Renderer for the given format string.
// Supported formats: "json", "md", "text".
func NewRenderer(format string) (Renderer, error) {
	switch format {
	case "json":
		return &jsonRenderer{}, nil
	case "md":
		return &markdownRenderer{}, nil
	case "text":
		return &textRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown format %q: supported formats are json, md, text", format)
	}
}
