// internal/workers/visualization/render-chart/parser.go
package renderchart

import (
	"strconv"
)

type node interface {
	line() int
}

type (
	nameExpr struct {
		ln   int
		name string
	}
	numberExpr struct {
		ln    int
		value interface{} // int64 or float64
	}
	stringExpr struct {
		ln    int
		value string
	}
	listExpr struct {
		ln    int
		items []node
		tuple bool
	}
	dictExpr struct {
		ln     int
		keys   []node
		values []node
	}
	attrExpr struct {
		ln     int
		target node
		name   string
	}
	indexExpr struct {
		ln     int
		target node
		index  node
	}
	callExpr struct {
		ln     int
		fn     node
		args   []node
		kwargs []keywordArg
	}
	unaryExpr struct {
		ln      int
		op      string
		operand node
	}
	binaryExpr struct {
		ln          int
		op          string
		left, right node
	}
	assignStmt struct {
		ln     int
		target string
		value  node
	}
	exprStmt struct {
		ln   int
		expr node
	}
)

type keywordArg struct {
	name  string
	value node
}

func (n *nameExpr) line() int { return n.ln }
func (n *numberExpr) line() int { return n.ln }
func (n *stringExpr) line() int { return n.ln }
func (n *listExpr) line() int { return n.ln }
func (n *dictExpr) line() int { return n.ln }
func (n *attrExpr) line() int { return n.ln }
func (n *indexExpr) line() int { return n.ln }
func (n *callExpr) line() int { return n.ln }
func (n *unaryExpr) line() int { return n.ln }
func (n *binaryExpr) line() int { return n.ln }
func (n *assignStmt) line() int { return n.ln }
func (n *exprStmt) line() int { return n.ln }

type parser struct {
	toks  []token
	pos   int
	lines []string
}

func parse(src string) ([]node, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, lines: splitLines(src)}
	return p.program()
}

func (p *parser) cur() token {
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.cur()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expectOp(text string) error {
	if !p.isOp(text) {
		return p.errorf("expected %q", text)
	}
	p.advance()
	return nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return newSnippetError(p.cur().line, p.lines, format, args...)
}

func (p *parser) program() ([]node, error) {
	var stmts []node
	for p.cur().kind != tokEOF {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)

		switch p.cur().kind {
		case tokNewline:
			p.advance()
		case tokEOF:
		default:
			return nil, p.errorf("unexpected %s %q", p.cur().kind, p.cur().text)
		}
	}
	return stmts, nil
}

func (p *parser) statement() (node, error) {
	t := p.cur()
	if t.kind == tokName {
		next := p.toks[p.pos+1]
		if next.kind == tokOp && next.text == "=" {
			p.advance()
			p.advance()
			value, err := p.expr()
			if err != nil {
				return nil, err
			}
			return &assignStmt{ln: t.line, target: t.text, value: value}, nil
		}
	}

	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.isOp("=") {
		return nil, p.errorf("only plain names can be assigned")
	}
	return &exprStmt{ln: t.line, expr: e}, nil
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{ln: op.line, op: op.text, left: left, right: right}
	}
	return left, nil
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") {
		op := p.advance()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{ln: op.line, op: op.text, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.advance()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{ln: op.line, op: op.text, operand: operand}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (node, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("."):
			p.advance()
			t := p.cur()
			if t.kind != tokName {
				return nil, p.errorf("expected attribute name")
			}
			p.advance()
			e = &attrExpr{ln: t.line, target: e, name: t.text}
		case p.isOp("("):
			ln := p.advance().line
			args, kwargs, err := p.arguments()
			if err != nil {
				return nil, err
			}
			e = &callExpr{ln: ln, fn: e, args: args, kwargs: kwargs}
		case p.isOp("["):
			ln := p.advance().line
			if p.isOp(":") {
				return nil, p.errorf("slices are not supported")
			}
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			if p.isOp(":") {
				return nil, p.errorf("slices are not supported")
			}
			if err := p.expectOp("]"); err != nil {
				return nil, err
			}
			e = &indexExpr{ln: ln, target: e, index: idx}
		default:
			return e, nil
		}
	}
}

func (p *parser) arguments() ([]node, []keywordArg, error) {
	var args []node
	var kwargs []keywordArg
	seen := map[string]bool{}
	for !p.isOp(")") {
		if p.isOp("*") {
			return nil, nil, p.errorf("argument unpacking is not supported")
		}
		t := p.cur()
		next := p.toks[p.pos+1]
		if t.kind == tokName && next.kind == tokOp && next.text == "=" {
			p.advance()
			p.advance()
			value, err := p.expr()
			if err != nil {
				return nil, nil, err
			}
			if seen[t.text] {
				return nil, nil, newSnippetError(t.line, p.lines, "keyword argument %q repeated", t.text)
			}
			seen[t.text] = true
			kwargs = append(kwargs, keywordArg{name: t.text, value: value})
		} else {
			if len(kwargs) > 0 {
				return nil, nil, p.errorf("positional argument follows keyword argument")
			}
			value, err := p.expr()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, value)
		}
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if err := p.expectOp(")"); err != nil {
		return nil, nil, err
	}
	return args, kwargs, nil
}

func (p *parser) primary() (node, error) {
	t := p.cur()
	switch t.kind {
	case tokName:
		p.advance()
		if t.text == "lambda" {
			return nil, newSnippetError(t.line, p.lines, "lambda is not supported")
		}
		return &nameExpr{ln: t.line, name: t.text}, nil
	case tokNumber:
		p.advance()
		return parseNumber(t, p.lines)
	case tokString:
		p.advance()
		value := t.text
		// Adjacent literals concatenate.
		for p.cur().kind == tokString {
			value += p.advance().text
		}
		return &stringExpr{ln: t.line, value: value}, nil
	case tokOp:
		switch t.text {
		case "(":
			return p.parenthesized()
		case "[":
			p.advance()
			items, err := p.sequence("]")
			if err != nil {
				return nil, err
			}
			return &listExpr{ln: t.line, items: items}, nil
		case "{":
			return p.dict()
		}
	}
	return nil, p.errorf("unexpected %s %q", t.kind, t.text)
}

func (p *parser) parenthesized() (node, error) {
	t := p.advance()
	if p.isOp(")") {
		p.advance()
		return &listExpr{ln: t.line, tuple: true}, nil
	}
	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.isOp(")") {
		p.advance()
		return first, nil
	}
	if err := p.expectOp(","); err != nil {
		return nil, err
	}
	rest, err := p.sequence(")")
	if err != nil {
		return nil, err
	}
	return &listExpr{ln: t.line, items: append([]node{first}, rest...), tuple: true}, nil
}

func (p *parser) sequence(closing string) ([]node, error) {
	var items []node
	for !p.isOp(closing) {
		item, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.cur().kind == tokName && p.cur().text == "for" {
			return nil, p.errorf("comprehensions are not supported")
		}
		items = append(items, item)
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if err := p.expectOp(closing); err != nil {
		return nil, err
	}
	return items, nil
}

func (p *parser) dict() (node, error) {
	t := p.advance()
	d := &dictExpr{ln: t.line}
	for !p.isOp("}") {
		key, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(":"); err != nil {
			return nil, err
		}
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		d.keys = append(d.keys, key)
		d.values = append(d.values, value)
		if !p.isOp(",") {
			break
		}
		p.advance()
	}
	if err := p.expectOp("}"); err != nil {
		return nil, err
	}
	return d, nil
}

func parseNumber(t token, lines []string) (node, error) {
	if i, err := strconv.ParseInt(t.text, 10, 64); err == nil {
		return &numberExpr{ln: t.line, value: i}, nil
	}
	f, err := strconv.ParseFloat(t.text, 64)
	if err != nil {
		return nil, newSnippetError(t.line, lines, "invalid number %q", t.text)
	}
	return &numberExpr{ln: t.line, value: f}, nil
}
