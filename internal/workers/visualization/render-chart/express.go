// internal/workers/visualization/render-chart/express.go
package renderchart

import (
	"fmt"
	"strings"

	"csv-chat/internal/models"
)

var (
	commonExpressArgs = []string{
		"data_frame", "color", "title", "labels", "template", "height", "width",
		"hover_data", "hover_name", "opacity", "color_discrete_sequence",
	}
	cartesianExpressArgs = []string{
		"x", "y", "text", "log_x", "log_y", "range_x", "range_y", "orientation",
	}
)

type expressKind struct {
	name       string
	positional []string
	extra      []string
}

var expressKinds = []expressKind{
	{name: "bar", positional: []string{"data_frame", "x", "y"}, extra: []string{"barmode", "text_auto"}},
	{name: "line", positional: []string{"data_frame", "x", "y"}, extra: []string{"markers", "line_shape"}},
	{name: "scatter", positional: []string{"data_frame", "x", "y"}, extra: []string{"size"}},
	{name: "area", positional: []string{"data_frame", "x", "y"}, extra: []string{"line_shape"}},
	{name: "histogram", positional: []string{"data_frame", "x", "y"}, extra: []string{"nbins", "histfunc", "barmode"}},
	{name: "pie", positional: []string{"data_frame", "names", "values"}, extra: []string{"hole"}},
}

func expressModule() *moduleValue {
	m := &moduleValue{name: "px", members: map[string]interface{}{}}
	for _, k := range expressKinds {
		kind := k
		m.members[kind.name] = &builtinValue{name: "px." + kind.name, fn: func(c *callArgs) (interface{}, error) {
			args, err := kind.bind(c)
			if err != nil {
				return nil, err
			}
			fig, err := buildExpressFigure(kind.name, args)
			if err != nil {
				return nil, err
			}
			return &figureValue{fig: fig}, nil
		}}
	}
	return m
}

func (k expressKind) allowed() map[string]bool {
	out := map[string]bool{}
	for _, group := range [][]string{commonExpressArgs, k.extra, k.positional} {
		for _, a := range group {
			out[a] = true
		}
	}
	if k.name != "pie" {
		for _, a := range cartesianExpressArgs {
			out[a] = true
		}
	}
	return out
}

// bind maps positional and keyword arguments onto parameter names.
func (k expressKind) bind(c *callArgs) (map[string]interface{}, error) {
	if len(c.args) > len(k.positional) {
		return nil, fmt.Errorf("takes at most %d positional arguments", len(k.positional))
	}
	out := map[string]interface{}{}
	for i, v := range c.args {
		out[k.positional[i]] = v
	}
	allowed := k.allowed()
	for _, kw := range c.kwargs {
		if !allowed[kw.name] {
			return nil, fmt.Errorf("unexpected keyword argument %q", kw.name)
		}
		if _, dup := out[kw.name]; dup {
			return nil, fmt.Errorf("got multiple values for %q", kw.name)
		}
		out[kw.name] = kw.value
	}
	return out, nil
}

// dimension is one resolved data argument (x, y, names, ...).
type dimension struct {
	label  string
	values []interface{}
}

type expressBuilder struct {
	kind   string
	args   map[string]interface{}
	frame  *frameValue
	labels map[string]string
}

func buildExpressFigure(kind string, args map[string]interface{}) (*models.Figure, error) {
	b := &expressBuilder{kind: kind, args: args, labels: map[string]string{}}

	switch df := args["data_frame"].(type) {
	case nil:
	case *frameValue:
		b.frame = df
	default:
		return nil, fmt.Errorf("data_frame must be a DataFrame, got %s", typeName(df))
	}

	if raw, ok := args["labels"]; ok && raw != nil {
		d, ok := raw.(*dictValue)
		if !ok {
			return nil, fmt.Errorf("labels must be a dict")
		}
		for _, key := range d.keys {
			s, err := asString(d.values[key], "labels["+key+"]")
			if err != nil {
				return nil, err
			}
			b.labels[key] = s
		}
	}

	fig := models.NewFigure()
	var err error
	if kind == "pie" {
		err = b.pie(fig)
	} else {
		err = b.cartesian(fig)
	}
	if err != nil {
		return nil, err
	}
	if err := b.layout(fig); err != nil {
		return nil, err
	}
	return fig, nil
}

func (b *expressBuilder) label(name string) string {
	if l, ok := b.labels[name]; ok {
		return l
	}
	return name
}

// resolve turns a column name, Series or literal list into values.
func (b *expressBuilder) resolve(arg string) (*dimension, error) {
	switch v := b.args[arg].(type) {
	case nil:
		return nil, nil
	case string:
		if b.frame == nil {
			return nil, fmt.Errorf("%s=%q refers to a column but no data_frame was given", arg, v)
		}
		col, err := b.frame.column(v)
		if err != nil {
			return nil, err
		}
		return &dimension{label: b.label(v), values: col.values}, nil
	case *seriesValue:
		return &dimension{label: b.label(v.name), values: v.values}, nil
	case *listValue:
		plain, err := toPlain(v)
		if err != nil {
			return nil, err
		}
		return &dimension{values: plain.([]interface{})}, nil
	default:
		return nil, fmt.Errorf("%s must be a column name, Series or list, got %s", arg, typeName(v))
	}
}

// wideColumns reports whether y is a list of column names (wide-form data).
func (b *expressBuilder) wideColumns() []string {
	list, ok := b.args["y"].(*listValue)
	if !ok || b.frame == nil || len(list.items) == 0 {
		return nil
	}
	cols := make([]string, 0, len(list.items))
	for _, item := range list.items {
		s, ok := item.(string)
		if !ok || b.frame.rs.ColumnIndex(s) < 0 {
			return nil
		}
		cols = append(cols, s)
	}
	return cols
}

func (b *expressBuilder) cartesian(fig *models.Figure) error {
	x, err := b.resolve("x")
	if err != nil {
		return err
	}
	if wide := b.wideColumns(); wide != nil {
		if b.args["color"] != nil {
			return fmt.Errorf("color cannot be combined with several y columns")
		}
		for _, col := range wide {
			series, _ := b.frame.column(col)
			y := &dimension{label: b.label(col), values: series.values}
			fig.Data = append(fig.Data, b.trace(x, y, b.label(col), nil, true))
		}
		return nil
	}

	y, err := b.resolve("y")
	if err != nil {
		return err
	}
	if x == nil && y == nil {
		if b.kind == "histogram" || b.frame == nil {
			return fmt.Errorf("x or y is required")
		}
		// px falls back to the index and the first column.
		if len(b.frame.rs.Columns) == 0 {
			return fmt.Errorf("the result table has no columns")
		}
		first, _ := b.frame.column(b.frame.rs.Columns[0])
		y = &dimension{label: b.label(first.name), values: first.values}
	}
	if x != nil && y != nil && len(x.values) != len(y.values) {
		return fmt.Errorf("x and y have different lengths (%d and %d)", len(x.values), len(y.values))
	}

	groups, err := b.groups(x, y)
	if err != nil {
		return err
	}
	if groups == nil {
		fig.Data = append(fig.Data, b.trace(x, y, "", nil, false))
		return nil
	}
	for _, g := range groups {
		fig.Data = append(fig.Data, b.trace(x, y, g.name, g.rows, true))
	}
	return nil
}

type group struct {
	name string
	rows []int
}

// groups splits rows by the color argument in order of first appearance.
func (b *expressBuilder) groups(dims ...*dimension) ([]group, error) {
	color, err := b.resolve("color")
	if err != nil || color == nil {
		return nil, err
	}
	for _, d := range dims {
		if d != nil && len(d.values) != len(color.values) {
			return nil, fmt.Errorf("color has %d values but the data has %d", len(color.values), len(d.values))
		}
	}

	index := map[string]int{}
	var out []group
	for row, v := range color.values {
		key := groupKey(v)
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, group{name: key})
		}
		out[i].rows = append(out[i].rows, row)
	}
	return out, nil
}

func groupKey(v interface{}) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprint(v)
}

func pick(values []interface{}, rows []int) []interface{} {
	if rows == nil {
		return values
	}
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		if r < len(values) {
			out[i] = values[r]
		}
	}
	return out
}

func sequence(n int) []interface{} {
	out := make([]interface{}, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

func (b *expressBuilder) trace(x, y *dimension, name string, rows []int, legend bool) models.Trace {
	t := models.Trace{"name": name, "showlegend": legend}
	if legend {
		t["legendgroup"] = name
	}

	if x != nil {
		t["x"] = pick(x.values, rows)
	} else if b.kind != "histogram" && y != nil {
		t["x"] = pick(sequence(len(y.values)), rows)
	}
	if y != nil {
		t["y"] = pick(y.values, rows)
	}

	switch b.kind {
	case "bar":
		t["type"] = "bar"
		t["orientation"] = b.orientation()
		if asBool(b.args["text_auto"]) {
			if y != nil {
				t["text"] = t["y"]
			}
			t["textposition"] = "auto"
		}
	case "line", "area":
		t["type"] = "scatter"
		t["mode"] = "lines"
		if asBool(b.args["markers"]) {
			t["mode"] = "lines+markers"
		}
		if shape, ok := b.args["line_shape"].(string); ok {
			t["line"] = map[string]interface{}{"shape": shape}
		}
		if b.kind == "area" {
			t["stackgroup"] = "1"
		}
	case "scatter":
		t["type"] = "scatter"
		t["mode"] = "markers"
		if size, err := b.resolve("size"); err == nil && size != nil {
			t["marker"] = map[string]interface{}{"size": pick(size.values, rows)}
		}
	case "histogram":
		t["type"] = "histogram"
		if n, ok := b.args["nbins"].(int64); ok {
			t["nbinsx"] = n
		}
		if fn, ok := b.args["histfunc"].(string); ok {
			t["histfunc"] = fn
		} else if x != nil && y != nil {
			t["histfunc"] = "sum"
		}
	}

	if text, err := b.resolve("text"); err == nil && text != nil {
		t["text"] = pick(text.values, rows)
	}
	if hover, err := b.resolve("hover_name"); err == nil && hover != nil {
		t["hovertext"] = pick(hover.values, rows)
	}
	if op := b.args["opacity"]; isNumber(op) {
		t["opacity"] = op
	}
	return t
}

func (b *expressBuilder) orientation() string {
	if o, ok := b.args["orientation"].(string); ok && o == "h" {
		return "h"
	}
	return "v"
}

func (b *expressBuilder) pie(fig *models.Figure) error {
	names, err := b.resolve("names")
	if err != nil {
		return err
	}
	if names == nil {
		if names, err = b.resolve("color"); err != nil {
			return err
		}
	}
	values, err := b.resolve("values")
	if err != nil {
		return err
	}
	if names == nil && values == nil {
		return fmt.Errorf("names or values is required")
	}

	t := models.Trace{"type": "pie", "showlegend": true}
	if names != nil {
		t["labels"] = names.values
	}
	if values != nil {
		t["values"] = values.values
	}
	if names != nil && values != nil && len(names.values) != len(values.values) {
		return fmt.Errorf("names and values have different lengths (%d and %d)", len(names.values), len(values.values))
	}
	if hole := b.args["hole"]; isNumber(hole) {
		t["hole"] = hole
	}
	if op := b.args["opacity"]; isNumber(op) {
		t["opacity"] = op
	}
	fig.Data = append(fig.Data, t)
	return nil
}

func (b *expressBuilder) layout(fig *models.Figure) error {
	l := fig.Layout
	if title, ok := b.args["title"].(string); ok && title != "" {
		l["title"] = map[string]interface{}{"text": title}
	}

	if b.kind != "pie" {
		xaxis := map[string]interface{}{}
		yaxis := map[string]interface{}{}
		if t := b.axisTitle("x"); t != "" {
			xaxis["title"] = map[string]interface{}{"text": t}
		}
		if t := b.axisTitle("y"); t != "" {
			yaxis["title"] = map[string]interface{}{"text": t}
		}
		if asBool(b.args["log_x"]) {
			xaxis["type"] = "log"
		}
		if asBool(b.args["log_y"]) {
			yaxis["type"] = "log"
		}
		for axis, arg := range map[string]string{"x": "range_x", "y": "range_y"} {
			r, ok := b.args[arg]
			if !ok || r == nil {
				continue
			}
			plain, err := toPlain(r)
			if err != nil {
				return err
			}
			if axis == "x" {
				xaxis["range"] = plain
			} else {
				yaxis["range"] = plain
			}
		}
		l["xaxis"] = xaxis
		l["yaxis"] = yaxis
	}

	if b.kind == "bar" || b.kind == "histogram" {
		mode := "relative"
		if m, ok := b.args["barmode"].(string); ok && m != "" {
			mode = m
		}
		l["barmode"] = mode
	}

	if c := b.args["color"]; c != nil && b.kind != "pie" {
		name := ""
		switch cv := c.(type) {
		case string:
			name = b.label(cv)
		case *seriesValue:
			name = b.label(cv.name)
		}
		l["legend"] = map[string]interface{}{"title": map[string]interface{}{"text": name}, "tracegroupgap": int64(0)}
	} else if b.wideColumns() != nil {
		l["legend"] = map[string]interface{}{"title": map[string]interface{}{"text": "variable"}, "tracegroupgap": int64(0)}
	}

	if tpl, ok := b.args["template"].(string); ok && tpl != "" {
		l["template"] = tpl
	}
	for _, dim := range []string{"height", "width"} {
		if v := b.args[dim]; isNumber(v) {
			l[dim] = v
		}
	}
	if seq, ok := b.args["color_discrete_sequence"]; ok && seq != nil {
		plain, err := toPlain(seq)
		if err != nil {
			return err
		}
		l["colorway"] = plain
	}
	return nil
}

func (b *expressBuilder) axisTitle(axis string) string {
	if axis == "y" && b.wideColumns() != nil {
		return "value"
	}
	switch v := b.args[axis].(type) {
	case string:
		return b.label(v)
	case *seriesValue:
		return b.label(v.name)
	case nil:
		if axis == "y" && b.kind == "histogram" {
			if fn, ok := b.args["histfunc"].(string); ok {
				return fn
			}
			return "count"
		}
		if axis == "x" && b.kind != "histogram" && b.frame != nil {
			return "index"
		}
	}
	return ""
}

// expressCall lets the declarative chart form reuse the px constructors.
func expressCall(kind string, kwargs []kwargValue) (*models.Figure, error) {
	fn, ok := expressModule().members[strings.ToLower(kind)].(*builtinValue)
	if !ok {
		return nil, fmt.Errorf("unknown chart kind %q", kind)
	}
	out, err := fn.fn(&callArgs{fn: fn.name, kwargs: kwargs})
	if err != nil {
		return nil, err
	}
	return out.(*figureValue).fig, nil
}
