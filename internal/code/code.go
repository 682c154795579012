// Package code builds generated JavaScript source text.
package code

import (
	"fmt"
	"strings"
)

// Builder accumulates generated code.
type Builder struct {
	b strings.Builder
}

// WriteString appends s verbatim.
func (b *Builder) WriteString(s string) {
	b.b.WriteString(s)
}

// Writef appends formatted text.
func (b *Builder) Writef(format string, args ...any) {
	fmt.Fprintf(&b.b, format, args...)
}

// Writeln appends s and a newline.
func (b *Builder) Writeln(s string) {
	b.b.WriteString(s)
	b.b.WriteByte('\n')
}

// Writedoc appends a formatted template after stripping the indentation
// shared by its lines and a leading newline, so templates can be written
// indented in Go source.
func (b *Builder) Writedoc(format string, args ...any) {
	b.b.WriteString(fmt.Sprintf(Dedent(format), args...))
}

// Len returns the number of bytes written.
func (b *Builder) Len() int {
	return b.b.Len()
}

func (b *Builder) String() string {
	return b.b.String()
}

// Dedent removes the common leading tab or space indentation from s and a
// single leading newline.
func Dedent(s string) string {
	s = strings.TrimPrefix(s, "\n")
	lines := strings.Split(s, "\n")

	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return s
	}

	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}
