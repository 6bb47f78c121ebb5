// internal/workers/visualization/render-chart/spec.go
package renderchart

import (
	"encoding/json"
	"fmt"
	"strings"

	"csv-chat/internal/common/validation"
	"csv-chat/internal/models"
)

// chartSpecFields are forwarded to the px constructor of the same kind.
var chartSpecFields = []string{"x", "y", "names", "values", "color", "title", "labels"}

func isChartSpec(code string) bool {
	return strings.HasPrefix(strings.TrimSpace(code), "{")
}

// renderChartSpec handles the declarative form, e.g.
// {"kind": "bar", "x": "name", "y": "total", "title": "Totals"}.
func renderChartSpec(rs *models.ResultSet, code string) (*models.Figure, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(code)), &doc); err != nil {
		return nil, fmt.Errorf("chart description is not valid JSON: %v", err)
	}
	if err := validation.ValidateChartSpec(doc); err != nil {
		return nil, err
	}

	if rs == nil {
		rs = &models.ResultSet{}
	}
	kwargs := []kwargValue{{name: "data_frame", value: &frameValue{rs: rs}}}
	for _, field := range chartSpecFields {
		v, ok := doc[field]
		if !ok {
			continue
		}
		if field == "labels" {
			labels := newDict()
			m := v.(map[string]interface{})
			for _, k := range sortedKeys(m) {
				labels.set(k, m[k])
			}
			v = labels
		}
		kwargs = append(kwargs, kwargValue{name: field, value: v})
	}

	return expressCall(doc["kind"].(string), kwargs)
}
