// internal/workers/visualization/render-chart/values.go
package renderchart

import (
	"fmt"
	"sort"
	"strings"

	"csv-chat/internal/models"
)

// Runtime values. None is nil; bool, int64, float64 and string are used as is.
type (
	listValue struct {
		items []interface{}
		tuple bool
	}
	dictValue struct {
		keys   []string
		values map[string]interface{}
	}
	frameValue struct {
		rs *models.ResultSet
	}
	seriesValue struct {
		name   string
		values []interface{}
	}
	moduleValue struct {
		name    string
		members map[string]interface{}
	}
	figureValue struct {
		fig *models.Figure
	}
	traceValue struct {
		trace models.Trace
	}
	builtinValue struct {
		name string
		fn   func(c *callArgs) (interface{}, error)
	}
)

type callArgs struct {
	fn     string
	args   []interface{}
	kwargs []kwargValue
}

type kwargValue struct {
	name  string
	value interface{}
}

func newDict() *dictValue {
	return &dictValue{values: map[string]interface{}{}}
}

func (d *dictValue) set(key string, v interface{}) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = v
}

func (f *frameValue) column(name string) (*seriesValue, error) {
	values, ok := f.rs.Column(name)
	if !ok {
		return nil, fmt.Errorf("column %q not found (available: %s)", name, strings.Join(f.rs.Columns, ", "))
	}
	return &seriesValue{name: name, values: values}, nil
}

func typeName(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *listValue:
		if val.tuple {
			return "tuple"
		}
		return "list"
	case *dictValue:
		return "dict"
	case *frameValue:
		return "DataFrame"
	case *seriesValue:
		return "Series"
	case *moduleValue:
		return "module " + val.name
	case *figureValue:
		return "Figure"
	case *traceValue:
		return "trace"
	case *builtinValue:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// toPlain converts a runtime value into JSON-compatible data for a figure.
func toPlain(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case *listValue:
		out := make([]interface{}, len(val.items))
		for i, item := range val.items {
			p, err := toPlain(item)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case *dictValue:
		out := make(map[string]interface{}, len(val.keys))
		for _, k := range val.keys {
			p, err := toPlain(val.values[k])
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	case *seriesValue:
		return append([]interface{}(nil), val.values...), nil
	case *traceValue:
		return copyMap(val.trace), nil
	case *frameValue, *figureValue, *moduleValue, *builtinValue:
		return nil, fmt.Errorf("a %s cannot be used as chart data", typeName(v))
	default:
		return v, nil
	}
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = copyMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asString(v interface{}, what string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %s", what, typeName(v))
	}
	return s, nil
}

func asBool(v interface{}) bool {
	switch b := v.(type) {
	case nil:
		return false
	case bool:
		return b
	case int64:
		return b != 0
	case float64:
		return b != 0
	case string:
		return b != ""
	default:
		return true
	}
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
