// Package report renders an access log summary for people and for machines.
// Renderers only read the summary; counts are never recomputed here.
package report

import (
	"fmt"
	"strings"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat accepts "text" or "json" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text or json)", s)
	}
}
