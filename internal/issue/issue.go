// Package issue provides structured diagnostics for builds. Issues are
// collected while a build runs and reported to the terminal or as JSON.
package issue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity ranks issues from most to least severe.
type Severity int

const (
	SeverityBug Severity = iota
	SeverityFatal
	SeverityError
	SeverityWarning
	SeverityHint
	SeverityNote
	SeveritySuggestion
	SeverityInfo
)

var severityNames = [...]string{"bug", "fatal", "error", "warning", "hint", "note", "suggestion", "info"}

var severityHelp = [...]string{
	"bug in implementation",
	"unrecoverable problem",
	"problem that cause a broken result",
	"problem should be addressed in short term",
	"idea for improvement",
	"detail that is worth mentioning",
	"change proposal for improvement",
	"detail that is worth telling",
}

func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return "unknown"
	}
	return severityNames[s]
}

// Help returns a short description of the severity.
func (s Severity) Help() string {
	if s < 0 || int(s) >= len(severityHelp) {
		return ""
	}
	return severityHelp[s]
}

// IsError reports whether issues of this severity fail the build.
func (s Severity) IsError() bool {
	return s <= SeverityError
}

// MarshalJSON renders the severity name.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON parses a severity name.
func (s *Severity) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses a severity name.
func ParseSeverity(name string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(n, name) {
			return Severity(i), nil
		}
	}
	return SeverityInfo, fmt.Errorf("unknown issue severity %q", name)
}

// Category groups issues by the build stage that raised them.
type Category string

const (
	// CategoryConfig covers invalid paths and settings
	CategoryConfig Category = "config"
	// CategoryGraph covers module graphs that cannot be chunked
	CategoryGraph Category = "graph"
	// CategoryResolve covers missing sources
	CategoryResolve Category = "resolve"
	// CategoryEmit covers output writing
	CategoryEmit Category = "emit"
	// CategoryMinify covers production minification
	CategoryMinify Category = "minify"
)

// Issue is a single diagnostic.
type Issue struct {
	Severity Severity `json:"severity"`
	Category Category `json:"category"`
	// Context is the path of the file the issue is about
	Context     string `json:"context,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (i Issue) Error() string {
	if i.Context != "" {
		return fmt.Sprintf("%s: %s", i.Context, i.Title)
	}
	return i.Title
}

// ToJSON returns the issue as indented JSON.
func (i Issue) ToJSON() (string, error) {
	b, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Key identifies duplicate issues.
func (i Issue) Key() string {
	return strings.Join([]string{i.Severity.String(), string(i.Category), i.Context, i.Title}, "\x00")
}
