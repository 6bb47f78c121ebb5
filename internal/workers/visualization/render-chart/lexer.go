// internal/workers/visualization/render-chart/lexer.go
package renderchart

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokName
	tokNumber
	tokString
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokNewline:
		return "end of line"
	case tokName:
		return "name"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	default:
		return "operator"
	}
}

type token struct {
	kind tokenKind
	text string
	line int
}

type lexer struct {
	src   []rune
	pos   int
	line  int
	depth int
	lines []string
}

func tokenize(src string) ([]token, error) {
	lx := &lexer{src: []rune(src), line: 1, lines: strings.Split(src, "\n")}
	var out []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		// Collapse blank lines and leading newlines.
		if tok.kind == tokNewline && (len(out) == 0 || out[len(out)-1].kind == tokNewline) {
			continue
		}
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out, nil
		}
	}
}

func (lx *lexer) errorf(format string, args ...interface{}) error {
	return &SnippetError{Line: lx.line, Source: lx.source(lx.line), Msg: fmt.Sprintf(format, args...)}
}

func (lx *lexer) source(line int) string {
	if line < 1 || line > len(lx.lines) {
		return ""
	}
	return lx.lines[line-1]
}

func (lx *lexer) peek(offset int) rune {
	if lx.pos+offset >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+offset]
}

func (lx *lexer) next() (token, error) {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			lx.pos++
			lx.line++
			if lx.depth == 0 {
				return token{kind: tokNewline, line: lx.line - 1}, nil
			}
		case c == '\\' && lx.peek(1) == '\n':
			lx.pos += 2
			lx.line++
		case c == '#':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == ';' && lx.depth == 0:
			lx.pos++
			return token{kind: tokNewline, line: lx.line}, nil
		case unicode.IsSpace(c):
			lx.pos++
		default:
			return lx.scanToken()
		}
	}
	if lx.depth > 0 {
		return token{}, lx.errorf("unclosed bracket")
	}
	return token{kind: tokEOF, line: lx.line}, nil
}

func (lx *lexer) scanToken() (token, error) {
	c := lx.src[lx.pos]
	line := lx.line

	switch {
	case isStringStart(lx):
		return lx.scanString()
	case unicode.IsLetter(c) || c == '_':
		start := lx.pos
		for lx.pos < len(lx.src) && (unicode.IsLetter(lx.src[lx.pos]) || unicode.IsDigit(lx.src[lx.pos]) || lx.src[lx.pos] == '_') {
			lx.pos++
		}
		return token{kind: tokName, text: string(lx.src[start:lx.pos]), line: line}, nil
	case unicode.IsDigit(c) || (c == '.' && unicode.IsDigit(lx.peek(1))):
		return lx.scanNumber(), nil
	}

	switch c {
	case '(', '[', '{':
		lx.depth++
	case ')', ']', '}':
		if lx.depth == 0 {
			return token{}, lx.errorf("unmatched %q", c)
		}
		lx.depth--
	case ',', ':', '.', '=', '+', '-', '*', '/':
	default:
		return token{}, lx.errorf("unexpected character %q", c)
	}
	if c == '=' && lx.peek(1) == '=' {
		return token{}, lx.errorf("comparisons are not supported")
	}
	lx.pos++
	return token{kind: tokOp, text: string(c), line: line}, nil
}

func isStringStart(lx *lexer) bool {
	c := lx.src[lx.pos]
	if c == '"' || c == '\'' {
		return true
	}
	// String prefixes: r"", u"", b"", f"" (the last one is rejected later).
	switch unicode.ToLower(c) {
	case 'r', 'u', 'b', 'f':
		n := lx.peek(1)
		return n == '"' || n == '\''
	}
	return false
}

func (lx *lexer) scanNumber() token {
	start := lx.pos
	line := lx.line
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if unicode.IsDigit(c) || c == '.' || c == '_' {
			lx.pos++
			continue
		}
		if (c == 'e' || c == 'E') && lx.pos > start {
			n := lx.peek(1)
			if unicode.IsDigit(n) || ((n == '+' || n == '-') && unicode.IsDigit(lx.peek(2))) {
				lx.pos += 2
				continue
			}
		}
		break
	}
	return token{kind: tokNumber, text: strings.ReplaceAll(string(lx.src[start:lx.pos]), "_", ""), line: line}
}

func (lx *lexer) scanString() (token, error) {
	line := lx.line
	raw := false
	if c := unicode.ToLower(lx.src[lx.pos]); c != '"' && c != '\'' {
		if c == 'f' {
			return token{}, lx.errorf("f-strings are not supported")
		}
		raw = c == 'r'
		lx.pos++
	}

	quote := lx.src[lx.pos]
	triple := lx.peek(1) == quote && lx.peek(2) == quote
	if triple {
		lx.pos += 3
	} else {
		lx.pos++
	}

	var b strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return token{}, lx.errorf("unterminated string")
		}
		c := lx.src[lx.pos]
		if c == quote {
			if !triple {
				lx.pos++
				break
			}
			if lx.peek(1) == quote && lx.peek(2) == quote {
				lx.pos += 3
				break
			}
		}
		if c == '\n' {
			if !triple {
				return token{}, lx.errorf("unterminated string")
			}
			lx.line++
		}
		if c == '\\' && lx.pos+1 < len(lx.src) {
			n := lx.src[lx.pos+1]
			if raw {
				b.WriteRune(c)
				b.WriteRune(n)
				lx.pos += 2
				continue
			}
			lx.pos += 2
			switch n {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '\\', '\'', '"':
				b.WriteRune(n)
			case '\n':
				lx.line++
			default:
				b.WriteRune('\\')
				b.WriteRune(n)
			}
			continue
		}
		b.WriteRune(c)
		lx.pos++
	}
	return token{kind: tokString, text: b.String(), line: line}, nil
}
