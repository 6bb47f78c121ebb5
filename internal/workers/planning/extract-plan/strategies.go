// internal/workers/planning/extract-plan/strategies.go
package extractplan

import (
	"encoding/json"
	"regexp"
	"strings"

	"csv-chat/internal/common/validation"
	"csv-chat/internal/models"
	renderchart "csv-chat/internal/workers/visualization/render-chart"
)

var (
	// fencedBlockPattern matches ``` or ```sql blocks anywhere in the text.
	// Fences tagged with another language (json, python) are skipped.
	fencedBlockPattern = regexp.MustCompile("(?is)```[ \\t]*(?:sql)?[ \\t]*\\r?\\n(.*?)```")
	selectScanPattern  = regexp.MustCompile(`(?is)\bselect\b.*`)
	selectPrefix       = regexp.MustCompile(`(?is)^\s*select\b`)
	fromClausePattern  = regexp.MustCompile(`(?i)\bfrom\b`)
)

type strategy struct {
	name  string
	apply func(raw, normalized string) decision
}

func (h *Handler) strategies() []strategy {
	chain := []strategy{{name: "json", apply: h.jsonStrategy}}
	if h.config.EmbeddedJSON {
		chain = append(chain, strategy{name: "embedded_json", apply: h.embeddedJSONStrategy})
	}
	return append(chain, strategy{name: "sql_recovery", apply: h.sqlRecoveryStrategy})
}

func (h *Handler) jsonStrategy(_, normalized string) decision {
	return h.planFromJSON(normalized)
}

func (h *Handler) embeddedJSONStrategy(raw, normalized string) decision {
	obj, ok := firstJSONObject(normalized)
	if !ok {
		obj, ok = firstJSONObject(raw)
	}
	if !ok || obj == normalized {
		return decision{outcome: OutcomeUndecided}
	}
	return h.planFromJSON(obj)
}

func (h *Handler) planFromJSON(text string) decision {
	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return decision{outcome: OutcomeUndecided, reason: "not json"}
	}

	doc, ok := decoded.(map[string]interface{})
	if !ok {
		return decision{outcome: OutcomeUndecided, reason: "json is not an object"}
	}
	if err := validation.ValidatePlan(doc); err != nil {
		return decision{outcome: OutcomeUndecided, reason: err.Error()}
	}

	plan := models.QueryPlan{SQL: strings.TrimSpace(doc["sql"].(string))}
	if viz, ok := doc["viz_code"].(string); ok {
		plan.VizCode = viz
	}
	return decision{outcome: OutcomePlan, plan: plan}
}

// sqlRecoveryStrategy looks for a fenced SQL block, then for the first
// "select" through the end of the text.
func (h *Handler) sqlRecoveryStrategy(raw, normalized string) decision {
	candidate := ""
	for _, m := range fencedBlockPattern.FindAllStringSubmatch(raw, -1) {
		if body := strings.TrimSpace(m[1]); selectPrefix.MatchString(body) {
			candidate = body
			break
		}
	}
	if candidate == "" {
		if m := selectScanPattern.FindString(normalized); m != "" {
			candidate = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(m), fence))
		}
	}
	if candidate == "" {
		return decision{outcome: OutcomeFail, reason: "no SQL found"}
	}

	if !fromClausePattern.MatchString(candidate) {
		return decision{outcome: OutcomeRetry, reason: "statement has no FROM clause"}
	}

	return decision{outcome: OutcomePlan, plan: models.QueryPlan{SQL: terminate(candidate)}}
}

// terminate appends ";", on its own line when the last line holds a "--"
// comment that would otherwise swallow it.
func terminate(sql string) string {
	sql = strings.TrimSpace(sql)
	if strings.HasSuffix(sql, ";") {
		return sql
	}
	lastLine := sql[strings.LastIndexByte(sql, '\n')+1:]
	if strings.Contains(lastLine, "--") {
		return sql + "\n;"
	}
	return sql + ";"
}

// firstJSONObject returns the first balanced {...} span in s, honouring
// string literals and escapes.
func firstJSONObject(s string) (string, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > 0 {
			return s[start : end+1], true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func stripVizImports(code string) string {
	return renderchart.StripImports(code)
}
