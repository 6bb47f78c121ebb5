// internal/workers/visualization/render-chart/figure.go
package renderchart

import (
	"fmt"
	"strings"

	"csv-chat/internal/models"
)

// Layout keys that take nested properties through the name_subname shorthand
// (title_text, xaxis_title, legend_orientation, ...).
var layoutCompounds = map[string]bool{
	"title": true, "xaxis": true, "yaxis": true, "legend": true, "font": true,
	"margin": true, "hoverlabel": true, "coloraxis": true, "uniformtext": true,
	"tickfont": true, "titlefont": true,
}

var traceCompounds = map[string]bool{
	"marker": true, "line": true, "textfont": true, "hoverlabel": true,
	"insidetextfont": true, "outsidetextfont": true, "xbins": true, "domain": true,
	"title": true, "font": true,
}

// Property names that contain an underscore of their own.
var underscoreNames = map[string]bool{
	"plot_bgcolor": true, "paper_bgcolor": true, "error_x": true, "error_y": true,
}

// propertyPath splits "xaxis_title_text" into [xaxis title text].
func propertyPath(key string, compounds map[string]bool) []string {
	if underscoreNames[key] || !strings.Contains(key, "_") {
		return []string{key}
	}
	parts := strings.Split(key, "_")
	var path []string
	for i := 0; i < len(parts); i++ {
		head := parts[i]
		if i+1 < len(parts) && underscoreNames[head+"_"+parts[i+1]] {
			head += "_" + parts[i+1]
			i++
		}
		path = append(path, head)
		if !compounds[head] && i+1 < len(parts) {
			// Not a container; keep the remainder as one name.
			path[len(path)-1] = strings.Join(append([]string{head}, parts[i+1:]...), "_")
			break
		}
	}
	return path
}

// setProperty assigns value at key inside target, creating nested objects.
func setProperty(target map[string]interface{}, key string, value interface{}, compounds map[string]bool) {
	path := propertyPath(key, compounds)
	cur := target
	for _, seg := range path[:len(path)-1] {
		next, ok := cur[seg].(map[string]interface{})
		if !ok {
			if s, isStr := cur[seg].(string); isStr && seg == "title" {
				next = map[string]interface{}{"text": s}
			} else {
				next = map[string]interface{}{}
			}
			cur[seg] = next
		}
		cur = next
	}
	last := path[len(path)-1]
	mergeInto(cur, last, normalizeTitles(last, value))
}

func mergeInto(target map[string]interface{}, key string, value interface{}) {
	incoming, ok := value.(map[string]interface{})
	if !ok {
		target[key] = value
		return
	}
	existing, ok := target[key].(map[string]interface{})
	if !ok {
		target[key] = incoming
		return
	}
	for k, v := range incoming {
		mergeInto(existing, k, v)
	}
}

// normalizeTitles rewrites title="X" into title={"text": "X"} at any depth so
// the figure always carries the long form.
func normalizeTitles(key string, value interface{}) interface{} {
	if s, ok := value.(string); ok && key == "title" {
		return map[string]interface{}{"text": s}
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return value
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = normalizeTitles(k, v)
	}
	return out
}

// applyProperties converts kwargs and writes them into target.
func applyProperties(target map[string]interface{}, kwargs []kwargValue, compounds map[string]bool) error {
	for _, kw := range kwargs {
		plain, err := toPlain(kw.value)
		if err != nil {
			return fmt.Errorf("%s: %v", kw.name, err)
		}
		setProperty(target, kw.name, plain, compounds)
	}
	return nil
}

// dictProperties turns a positional dict argument into kwargs.
func dictProperties(v interface{}) ([]kwargValue, error) {
	if v == nil {
		return nil, nil
	}
	d, ok := v.(*dictValue)
	if !ok {
		return nil, fmt.Errorf("expected a dict, got %s", typeName(v))
	}
	out := make([]kwargValue, len(d.keys))
	for i, k := range d.keys {
		out[i] = kwargValue{name: k, value: d.values[k]}
	}
	return out, nil
}

func figureMethod(f *figureValue, name string) (interface{}, error) {
	method := func(fn func(c *callArgs) error) *builtinValue {
		return &builtinValue{name: name, fn: func(c *callArgs) (interface{}, error) {
			if err := fn(c); err != nil {
				return nil, err
			}
			return f, nil
		}}
	}

	switch name {
	case "update_layout":
		return method(func(c *callArgs) error {
			return updateLayout(f.fig.Layout, c)
		}), nil
	case "update_xaxes", "update_yaxes":
		axis := "xaxis"
		if name == "update_yaxes" {
			axis = "yaxis"
		}
		return method(func(c *callArgs) error {
			section, ok := f.fig.Layout[axis].(map[string]interface{})
			if !ok {
				section = map[string]interface{}{}
				f.fig.Layout[axis] = section
			}
			return updateLayout(section, c)
		}), nil
	case "update_traces":
		return method(func(c *callArgs) error {
			return updateTraces(f.fig, c)
		}), nil
	case "add_trace":
		return method(func(c *callArgs) error {
			if len(c.args) != 1 {
				return fmt.Errorf("expects one trace")
			}
			for _, kw := range c.kwargs {
				if kw.name != "row" && kw.name != "col" {
					return fmt.Errorf("unexpected keyword argument %q", kw.name)
				}
			}
			t, err := asTrace(c.args[0])
			if err != nil {
				return err
			}
			f.fig.Data = append(f.fig.Data, t)
			return nil
		}), nil
	case "show":
		return &builtinValue{name: name, fn: func(c *callArgs) (interface{}, error) {
			return nil, nil
		}}, nil
	}
	return nil, fmt.Errorf("Figure has no attribute %q", name)
}

func updateLayout(target map[string]interface{}, c *callArgs) error {
	if len(c.args) > 1 {
		return fmt.Errorf("expected at most one positional dict")
	}
	if len(c.args) == 1 {
		props, err := dictProperties(c.args[0])
		if err != nil {
			return err
		}
		if err := applyProperties(target, props, layoutCompounds); err != nil {
			return err
		}
	}
	return applyProperties(target, c.kwargs, layoutCompounds)
}

func updateTraces(fig *models.Figure, c *callArgs) error {
	if len(c.args) > 1 {
		return fmt.Errorf("expected at most one positional dict")
	}
	var selector map[string]interface{}
	var props []kwargValue
	if len(c.args) == 1 {
		p, err := dictProperties(c.args[0])
		if err != nil {
			return err
		}
		props = p
	}
	for _, kw := range c.kwargs {
		switch kw.name {
		case "selector":
			plain, err := toPlain(kw.value)
			if err != nil {
				return err
			}
			m, ok := plain.(map[string]interface{})
			if !ok {
				return fmt.Errorf("selector must be a dict")
			}
			selector = m
		case "row", "col":
		default:
			props = append(props, kw)
		}
	}

	for _, t := range fig.Data {
		if !matchesSelector(t, selector) {
			continue
		}
		if err := applyProperties(t, props, traceCompounds); err != nil {
			return err
		}
	}
	return nil
}

func matchesSelector(t models.Trace, selector map[string]interface{}) bool {
	for k, v := range selector {
		if fmt.Sprint(t[k]) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

func asTrace(v interface{}) (models.Trace, error) {
	switch t := v.(type) {
	case *traceValue:
		return models.Trace(copyMap(t.trace)), nil
	case *dictValue:
		plain, err := toPlain(t)
		if err != nil {
			return nil, err
		}
		m := plain.(map[string]interface{})
		if _, ok := m["type"].(string); !ok {
			return nil, fmt.Errorf("trace dict needs a string \"type\"")
		}
		return models.Trace(m), nil
	}
	return nil, fmt.Errorf("expected a trace, got %s", typeName(v))
}
