package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/olegiv/accesslog-ai-go/internal/accesslog"
	"github.com/olegiv/accesslog-ai-go/internal/ai"
	"github.com/olegiv/accesslog-ai-go/internal/geoip"
)

const (
	// statusListLimit is how many status codes the text report lists.
	statusListLimit = 10
	// userAgentWidth is the number of characters of a user agent shown.
	userAgentWidth = 60

	reportTitle  = "=== Web Server Log Summary Report ==="
	reportFooter = "====================================="
)

var (
	styleTitle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	styleHeading = lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// TextOptions controls the text report.
type TextOptions struct {
	// Color enables terminal styling.
	Color bool
	// Locator, when set, annotates client addresses with a country code.
	Locator *geoip.Locator
}

func (o TextOptions) style(s lipgloss.Style, text string) string {
	if !o.Color {
		return text
	}
	return s.Render(text)
}

func statusStyle(code string) lipgloss.Style {
	switch {
	case strings.HasPrefix(code, "2"):
		return styleOK
	case strings.HasPrefix(code, "3"):
		return styleWarn
	default:
		return styleError
	}
}

// RenderText writes the human-readable report.
func RenderText(w io.Writer, s *accesslog.Summary, opts TextOptions) error {
	var b strings.Builder

	fmt.Fprintf(&b, "\n%s\n\n", opts.style(styleTitle, reportTitle))
	fmt.Fprintf(&b, "Total parsed requests: %d\n", s.TotalParsed)
	if s.SkippedLines > 0 {
		fmt.Fprintf(&b, "Skipped (unparsed) lines: %d\n", s.SkippedLines)
	}

	fmt.Fprintf(&b, "\n%s\n", opts.style(styleHeading, "Status codes (top):"))
	for _, c := range s.TopStatuses(statusListLimit) {
		fmt.Fprintf(&b, "  %s: %d\n", opts.style(statusStyle(c.Key), c.Key), c.Count)
	}

	fmt.Fprintf(&b, "\nNumber of 404 errors: %d\n\n", s.NotFound)

	fmt.Fprintf(&b, "%s\n", opts.style(styleHeading, "Top requested paths:"))
	for _, c := range s.TopPaths {
		fmt.Fprintf(&b, "  %s %s\n", c.Key, opts.style(styleDim, fmt.Sprintf("— %d requests", c.Count)))
	}

	fmt.Fprintf(&b, "\n%s\n", opts.style(styleHeading, "Top IP addresses by request count:"))
	for _, c := range s.TopClients {
		addr := c.Key
		if opts.Locator != nil {
			addr += " " + opts.style(styleDim, "["+opts.Locator.CountryCode(c.Key)+"]")
		}
		fmt.Fprintf(&b, "  %s %s\n", addr, opts.style(styleDim, fmt.Sprintf("— %d requests", c.Count)))
	}

	fmt.Fprintf(&b, "\n%s\n", opts.style(styleHeading, "Top user agents (sample):"))
	for _, c := range s.TopUserAgents {
		fmt.Fprintf(&b, "  %s %s\n", TruncateAgent(c.Key), opts.style(styleDim, fmt.Sprintf("— %d", c.Count)))
	}

	fmt.Fprintf(&b, "\n%s\n\n", opts.style(styleTitle, reportFooter))

	_, err := io.WriteString(w, b.String())
	return err
}

// TruncateAgent shortens a user agent to its first 60 characters, marking
// the cut with "...".
func TruncateAgent(agent string) string {
	if utf8.RuneCountInString(agent) <= userAgentWidth {
		return agent
	}
	runes := []rune(agent)
	return string(runes[:userAgentWidth]) + "..."
}

// RenderAnalysis writes the AI assessment that follows the text report.
func RenderAnalysis(w io.Writer, a *ai.Analysis, opts TextOptions) error {
	var b strings.Builder

	status := ai.GetStatusEmoji(a.TrafficStatus) + " " + a.TrafficStatus
	if ai.ShouldTriggerAlert(a.TrafficStatus) {
		status = opts.style(styleError, status)
	}
	fmt.Fprintf(&b, "%s %s\n\n", opts.style(styleHeading, "AI assessment:"), status)
	fmt.Fprintf(&b, "%s\n", a.Summary)

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s\n", opts.style(styleHeading, title))
		for _, item := range items {
			fmt.Fprintf(&b, "  • %s\n", item)
		}
	}
	writeList("Threats:", a.Threats)
	writeList("Warnings:", a.Warnings)
	writeList("Recommendations:", a.Recommendations)
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}
