// internal/workers/data-access/run-sql/guard.go
package runsql

import (
	"fmt"
	"strings"
)

const (
	reasonNotSelect       = "only SELECT queries are allowed"
	reasonMultiStatements = "only a single statement is allowed"
)

// StripLeadingComments removes leading whitespace, any run of "--" comment
// lines and then one "/* */" block.
func StripLeadingComments(sql string) string {
	s := strings.TrimLeft(sql, " \t\r\n")
	for strings.HasPrefix(s, "--") {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			return ""
		}
		s = strings.TrimLeft(s[nl+1:], " \t\r\n")
	}
	if strings.HasPrefix(s, "/*") {
		end := strings.Index(s[2:], "*/")
		if end < 0 {
			return ""
		}
		s = strings.TrimLeft(s[end+4:], " \t\r\n")
	}
	return s
}

// Validate enforces the read-only, single-statement contract.
func Validate(sql string) error {
	body := StripLeadingComments(sql)
	if !strings.HasPrefix(strings.ToLower(body), "select") {
		return fmt.Errorf("%w: %s", ErrUnsafeQuery, reasonNotSelect)
	}
	if CountStatements(sql) > 1 {
		return fmt.Errorf("%w: %s", ErrUnsafeQuery, reasonMultiStatements)
	}
	return nil
}

// CountStatements counts non-empty ';'-separated statements, ignoring
// separators inside string literals, quoted identifiers and comments.
func CountStatements(sql string) int {
	count := 0
	content := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(sql, i, c)
			content = true
		case c == '[':
			i = skipQuoted(sql, i, ']')
			content = true
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
		case c == ';':
			if content {
				count++
			}
			content = false
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
		default:
			content = true
		}
	}
	if content {
		count++
	}
	return count
}

// skipQuoted returns the index of the closing quote of the literal opened at
// start. Doubled quotes are escapes.
func skipQuoted(sql string, start int, closing byte) int {
	for i := start + 1; i < len(sql); i++ {
		if sql[i] != closing {
			continue
		}
		if closing != ']' && i+1 < len(sql) && sql[i+1] == closing {
			i++
			continue
		}
		return i
	}
	return len(sql)
}
