// internal/workers/planning/extract-plan/normalize.go
package extractplan

import "strings"

const fence = "```"

// Normalize isolates the payload of a model response. A response opening with
// a code fence loses the fence line (and its language tag) and everything from
// the next closing fence on. Anything else is only trimmed.
func Normalize(raw string) string {
	content := strings.TrimSpace(raw)
	if !strings.HasPrefix(content, fence) {
		return content
	}

	lines := strings.Split(content, "\n")
	end := len(lines)
	for i := 1; i < len(lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), fence) {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
