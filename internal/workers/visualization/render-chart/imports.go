// internal/workers/visualization/render-chart/imports.go
package renderchart

import "strings"

// StripImports drops every line that, once trimmed, starts with "import " or
// "from ". Applying it twice gives the same result.
func StripImports(code string) string {
	lines := strings.Split(code, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
