// internal/workers/visualization/render-chart/errors.go
package renderchart

import (
	"fmt"
	"strings"
)

// SnippetError points at the chart snippet line that could not be evaluated.
type SnippetError struct {
	Line   int
	Source string
	Msg    string
}

func (e *SnippetError) Error() string {
	if e.Line <= 0 {
		return e.Msg
	}
	src := strings.TrimSpace(e.Source)
	if src == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Msg, src)
}

func newSnippetError(line int, lines []string, format string, args ...interface{}) *SnippetError {
	src := ""
	if line >= 1 && line <= len(lines) {
		src = lines[line-1]
	}
	return &SnippetError{Line: line, Source: src, Msg: fmt.Sprintf(format, args...)}
}

func splitLines(src string) []string {
	return strings.Split(src, "\n")
}
