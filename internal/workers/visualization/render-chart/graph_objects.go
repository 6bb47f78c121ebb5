// internal/workers/visualization/render-chart/graph_objects.go
package renderchart

import (
	"fmt"

	"csv-chat/internal/models"
)

var graphObjectTraces = map[string]string{
	"Bar":       "bar",
	"Scatter":   "scatter",
	"Pie":       "pie",
	"Histogram": "histogram",
}

func graphObjectsModule() *moduleValue {
	m := &moduleValue{name: "go", members: map[string]interface{}{
		"Figure": &builtinValue{name: "go.Figure", fn: newGraphFigure},
		"Layout": &builtinValue{name: "go.Layout", fn: newGraphLayout},
	}}
	for ctor, traceType := range graphObjectTraces {
		tt := traceType
		m.members[ctor] = &builtinValue{name: "go." + ctor, fn: func(c *callArgs) (interface{}, error) {
			return newGraphTrace(tt, c)
		}}
	}
	return m
}

func newGraphTrace(traceType string, c *callArgs) (interface{}, error) {
	if len(c.args) > 1 {
		return nil, fmt.Errorf("expected at most one positional dict")
	}
	t := models.Trace{}
	if len(c.args) == 1 {
		props, err := dictProperties(c.args[0])
		if err != nil {
			return nil, err
		}
		if err := applyProperties(t, props, traceCompounds); err != nil {
			return nil, err
		}
	}
	if err := applyProperties(t, c.kwargs, traceCompounds); err != nil {
		return nil, err
	}
	t["type"] = traceType
	return &traceValue{trace: t}, nil
}

func newGraphLayout(c *callArgs) (interface{}, error) {
	if len(c.args) > 1 {
		return nil, fmt.Errorf("expected at most one positional dict")
	}
	layout := map[string]interface{}{}
	if err := updateLayout(layout, c); err != nil {
		return nil, err
	}
	d := newDict()
	for _, k := range sortedKeys(layout) {
		d.set(k, layout[k])
	}
	return d, nil
}

// newGraphFigure accepts go.Figure(data=None, layout=None) where data is a
// trace or a list of traces and layout a dict.
func newGraphFigure(c *callArgs) (interface{}, error) {
	var data, layout interface{}
	if len(c.args) > 2 {
		return nil, fmt.Errorf("takes at most 2 positional arguments")
	}
	if len(c.args) > 0 {
		data = c.args[0]
	}
	if len(c.args) > 1 {
		layout = c.args[1]
	}
	for _, kw := range c.kwargs {
		switch kw.name {
		case "data":
			data = kw.value
		case "layout":
			layout = kw.value
		default:
			return nil, fmt.Errorf("unexpected keyword argument %q", kw.name)
		}
	}

	fig := models.NewFigure()
	switch d := data.(type) {
	case nil:
	case *listValue:
		for _, item := range d.items {
			t, err := asTrace(item)
			if err != nil {
				return nil, err
			}
			fig.Data = append(fig.Data, t)
		}
	default:
		t, err := asTrace(d)
		if err != nil {
			return nil, err
		}
		fig.Data = append(fig.Data, t)
	}

	if layout != nil {
		props, err := dictProperties(layout)
		if err != nil {
			return nil, fmt.Errorf("layout: %v", err)
		}
		if err := applyProperties(fig.Layout, props, layoutCompounds); err != nil {
			return nil, err
		}
	}
	return &figureValue{fig: fig}, nil
}
