package issue

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Format renders the issue for terminal output.
//
// Example output:
//
//	error [graph] /project/src/a.js
//	   dynamic import target is not a script module
//	   problem that cause a broken result
func Format(iss Issue, noColor bool) string {
	var b strings.Builder

	header := severityColor(iss.Severity)
	body := color.New(color.Faint)
	if noColor {
		header.DisableColor()
		body.DisableColor()
	}

	header.Fprintf(&b, "%s", iss.Severity)
	if iss.Category != "" {
		fmt.Fprintf(&b, " [%s]", iss.Category)
	}
	if iss.Context != "" {
		fmt.Fprintf(&b, " %s", iss.Context)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "   %s\n", iss.Title)
	if iss.Description != "" && iss.Description != iss.Title {
		fmt.Fprintf(&b, "   %s\n", iss.Description)
	}
	if iss.Detail != "" {
		for _, line := range strings.Split(strings.TrimRight(iss.Detail, "\n"), "\n") {
			body.Fprintf(&b, "     %s\n", line)
		}
	}
	body.Fprintf(&b, "   %s\n", iss.Severity.Help())

	return b.String()
}

// FormatAll renders every issue separated by blank lines.
func FormatAll(issues []Issue, noColor bool) string {
	parts := make([]string, 0, len(issues))
	for _, iss := range issues {
		parts = append(parts, Format(iss, noColor))
	}
	return strings.Join(parts, "\n")
}

func severityColor(s Severity) *color.Color {
	switch {
	case s <= SeverityError:
		return color.New(color.FgRed, color.Bold)
	case s == SeverityWarning:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgCyan, color.Bold)
	}
}
