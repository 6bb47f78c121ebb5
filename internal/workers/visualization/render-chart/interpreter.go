// internal/workers/visualization/render-chart/interpreter.go
package renderchart

import (
	"fmt"
	"unicode/utf8"

	"csv-chat/internal/models"
)

type interpreter struct {
	scope map[string]interface{}
	lines []string
}

// newInterpreter builds a fresh scope holding df, px, go, fig and a handful
// of builtins. Nothing else is reachable from a snippet.
func newInterpreter(rs *models.ResultSet, src string) *interpreter {
	if rs == nil {
		rs = &models.ResultSet{}
	}
	in := &interpreter{lines: splitLines(src)}
	in.scope = map[string]interface{}{
		"df":   &frameValue{rs: rs},
		"px":   expressModule(),
		"go":   graphObjectsModule(),
		"fig":  nil,
		"len":  &builtinValue{name: "len", fn: builtinLen},
		"dict": &builtinValue{name: "dict", fn: builtinDict},
		"list": &builtinValue{name: "list", fn: builtinList},
	}
	return in
}

func (in *interpreter) run(stmts []node) error {
	for _, stmt := range stmts {
		var err error
		switch s := stmt.(type) {
		case *assignStmt:
			var v interface{}
			v, err = in.eval(s.value)
			if err == nil {
				switch s.target {
				case "True", "False", "None":
					err = fmt.Errorf("cannot assign to %s", s.target)
				default:
					in.scope[s.target] = v
				}
			}
		case *exprStmt:
			_, err = in.eval(s.expr)
		}
		if err != nil {
			return in.wrap(stmt.line(), err)
		}
	}
	return nil
}

func (in *interpreter) wrap(line int, err error) error {
	if se, ok := err.(*SnippetError); ok {
		return se
	}
	return newSnippetError(line, in.lines, "%s", err.Error())
}

func (in *interpreter) eval(n node) (interface{}, error) {
	switch e := n.(type) {
	case *nameExpr:
		return in.lookup(e.name)
	case *numberExpr:
		return e.value, nil
	case *stringExpr:
		return e.value, nil
	case *listExpr:
		items := make([]interface{}, len(e.items))
		for i, item := range e.items {
			v, err := in.eval(item)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return &listValue{items: items, tuple: e.tuple}, nil
	case *dictExpr:
		d := newDict()
		for i := range e.keys {
			k, err := in.eval(e.keys[i])
			if err != nil {
				return nil, err
			}
			key, ok := k.(string)
			if !ok {
				return nil, in.wrap(e.line(), fmt.Errorf("dict keys must be strings, got %s", typeName(k)))
			}
			v, err := in.eval(e.values[i])
			if err != nil {
				return nil, err
			}
			d.set(key, v)
		}
		return d, nil
	case *attrExpr:
		target, err := in.eval(e.target)
		if err != nil {
			return nil, err
		}
		v, err := attribute(target, e.name)
		if err != nil {
			return nil, in.wrap(e.line(), err)
		}
		return v, nil
	case *indexExpr:
		target, err := in.eval(e.target)
		if err != nil {
			return nil, err
		}
		idx, err := in.eval(e.index)
		if err != nil {
			return nil, err
		}
		v, err := subscript(target, idx)
		if err != nil {
			return nil, in.wrap(e.line(), err)
		}
		return v, nil
	case *callExpr:
		return in.call(e)
	case *unaryExpr:
		v, err := in.eval(e.operand)
		if err != nil {
			return nil, err
		}
		if !isNumber(v) {
			return nil, in.wrap(e.line(), fmt.Errorf("bad operand type for unary %s: %s", e.op, typeName(v)))
		}
		if e.op == "+" {
			return v, nil
		}
		if i, ok := v.(int64); ok {
			return -i, nil
		}
		return -v.(float64), nil
	case *binaryExpr:
		left, err := in.eval(e.left)
		if err != nil {
			return nil, err
		}
		right, err := in.eval(e.right)
		if err != nil {
			return nil, err
		}
		v, err := arithmetic(e.op, left, right)
		if err != nil {
			return nil, in.wrap(e.line(), err)
		}
		return v, nil
	}
	return nil, in.wrap(n.line(), fmt.Errorf("unsupported expression"))
}

func (in *interpreter) lookup(name string) (interface{}, error) {
	switch name {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	}
	v, ok := in.scope[name]
	if !ok {
		return nil, fmt.Errorf("name %q is not defined", name)
	}
	return v, nil
}

func (in *interpreter) call(e *callExpr) (interface{}, error) {
	fnVal, err := in.eval(e.fn)
	if err != nil {
		return nil, err
	}
	fn, ok := fnVal.(*builtinValue)
	if !ok {
		return nil, in.wrap(e.line(), fmt.Errorf("%s is not callable", typeName(fnVal)))
	}

	c := &callArgs{fn: fn.name}
	for _, a := range e.args {
		v, err := in.eval(a)
		if err != nil {
			return nil, err
		}
		c.args = append(c.args, v)
	}
	for _, kw := range e.kwargs {
		v, err := in.eval(kw.value)
		if err != nil {
			return nil, err
		}
		c.kwargs = append(c.kwargs, kwargValue{name: kw.name, value: v})
	}

	out, err := fn.fn(c)
	if err != nil {
		return nil, in.wrap(e.line(), fmt.Errorf("%s(): %v", fn.name, err))
	}
	return out, nil
}

func (in *interpreter) figure() (*models.Figure, error) {
	switch f := in.scope["fig"].(type) {
	case nil:
		return nil, fmt.Errorf("no figure produced")
	case *figureValue:
		return f.fig, nil
	default:
		return nil, fmt.Errorf("fig must be a figure, got %s", typeName(f))
	}
}

func attribute(target interface{}, name string) (interface{}, error) {
	switch t := target.(type) {
	case *moduleValue:
		if v, ok := t.members[name]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("module %q has no attribute %q", t.name, name)
	case *frameValue:
		if name == "columns" {
			cols := make([]interface{}, len(t.rs.Columns))
			for i, c := range t.rs.Columns {
				cols[i] = c
			}
			return &listValue{items: cols}, nil
		}
		if t.rs.ColumnIndex(name) >= 0 {
			return t.column(name)
		}
		return nil, fmt.Errorf("DataFrame has no column or attribute %q", name)
	case *seriesValue:
		switch name {
		case "name":
			return t.name, nil
		case "values":
			return &listValue{items: append([]interface{}(nil), t.values...)}, nil
		case "tolist":
			return &builtinValue{name: "tolist", fn: func(c *callArgs) (interface{}, error) {
				if len(c.args)+len(c.kwargs) > 0 {
					return nil, fmt.Errorf("takes no arguments")
				}
				return &listValue{items: append([]interface{}(nil), t.values...)}, nil
			}}, nil
		}
		return nil, fmt.Errorf("Series has no attribute %q", name)
	case *figureValue:
		return figureMethod(t, name)
	}
	return nil, fmt.Errorf("%s has no attribute %q", typeName(target), name)
}

func subscript(target, idx interface{}) (interface{}, error) {
	switch t := target.(type) {
	case *frameValue:
		name, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("DataFrame columns are selected by name, got %s", typeName(idx))
		}
		return t.column(name)
	case *dictValue:
		key, ok := idx.(string)
		if !ok {
			return nil, fmt.Errorf("dict keys must be strings, got %s", typeName(idx))
		}
		v, ok := t.values[key]
		if !ok {
			return nil, fmt.Errorf("key %q not found", key)
		}
		return v, nil
	case *listValue:
		i, err := position(idx, len(t.items))
		if err != nil {
			return nil, err
		}
		return t.items[i], nil
	case *seriesValue:
		i, err := position(idx, len(t.values))
		if err != nil {
			return nil, err
		}
		return t.values[i], nil
	}
	return nil, fmt.Errorf("%s is not subscriptable", typeName(target))
}

func position(idx interface{}, n int) (int, error) {
	i, ok := idx.(int64)
	if !ok {
		return 0, fmt.Errorf("indices must be integers, got %s", typeName(idx))
	}
	if i < 0 {
		i += int64(n)
	}
	if i < 0 || i >= int64(n) {
		return 0, fmt.Errorf("index out of range")
	}
	return int(i), nil
}

func arithmetic(op string, left, right interface{}) (interface{}, error) {
	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok && op == "+" {
			return ls + rs, nil
		}
	}
	if isNumber(left) && isNumber(right) {
		li, lInt := left.(int64)
		ri, rInt := right.(int64)
		if lInt && rInt && op != "/" {
			switch op {
			case "+":
				return li + ri, nil
			case "-":
				return li - ri, nil
			case "*":
				return li * ri, nil
			}
		}
		lf, rf := toFloat(left), toFloat(right)
		switch op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return lf / rf, nil
		}
	}
	return nil, fmt.Errorf("unsupported operand types for %s: %s and %s", op, typeName(left), typeName(right))
}

func builtinLen(c *callArgs) (interface{}, error) {
	if len(c.args) != 1 || len(c.kwargs) != 0 {
		return nil, fmt.Errorf("takes exactly one argument")
	}
	switch v := c.args[0].(type) {
	case *frameValue:
		return int64(v.rs.RowCount()), nil
	case *seriesValue:
		return int64(len(v.values)), nil
	case *listValue:
		return int64(len(v.items)), nil
	case *dictValue:
		return int64(len(v.keys)), nil
	case string:
		return int64(utf8.RuneCountInString(v)), nil
	}
	return nil, fmt.Errorf("object of type %s has no len()", typeName(c.args[0]))
}

func builtinDict(c *callArgs) (interface{}, error) {
	d := newDict()
	if len(c.args) > 1 {
		return nil, fmt.Errorf("expected at most one positional argument")
	}
	if len(c.args) == 1 {
		src, ok := c.args[0].(*dictValue)
		if !ok {
			return nil, fmt.Errorf("cannot build a dict from %s", typeName(c.args[0]))
		}
		for _, k := range src.keys {
			d.set(k, src.values[k])
		}
	}
	for _, kw := range c.kwargs {
		d.set(kw.name, kw.value)
	}
	return d, nil
}

func builtinList(c *callArgs) (interface{}, error) {
	if len(c.args) != 1 || len(c.kwargs) != 0 {
		return nil, fmt.Errorf("takes exactly one argument")
	}
	switch v := c.args[0].(type) {
	case *listValue:
		return &listValue{items: append([]interface{}(nil), v.items...)}, nil
	case *seriesValue:
		return &listValue{items: append([]interface{}(nil), v.values...)}, nil
	case *frameValue:
		return attribute(v, "columns")
	case *dictValue:
		items := make([]interface{}, len(v.keys))
		for i, k := range v.keys {
			items[i] = k
		}
		return &listValue{items: items}, nil
	}
	return nil, fmt.Errorf("%s is not iterable", typeName(c.args[0]))
}
