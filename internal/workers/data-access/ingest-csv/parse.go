// internal/workers/data-access/ingest-csv/parse.go
package ingestcsv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"csv-chat/internal/common/database"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode returns data as UTF-8. Bytes that are not valid UTF-8 are read as
// ISO-8859-1, which maps every byte to a code point and so never fails.
func Decode(data []byte) ([]byte, string, error) {
	if utf8.Valid(data) {
		return bytes.TrimPrefix(data, utf8BOM), EncodingUTF8, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", err
	}
	return out, EncodingLatin1, nil
}

// table is a parsed upload: cleaned header plus raw string cells.
type table struct {
	header []string
	rows   [][]string
}

func parseCSV(data []byte, comma rune) (*table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return &table{}, nil
	}
	if err != nil {
		return nil, err
	}
	header = append([]string(nil), header...)

	t := &table{header: CleanColumnNames(header)}
	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, err
		}
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(rec))
		}
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// CleanColumnNames trims and lower-cases headers and turns spaces and hyphens
// into underscores. Blank names become column_<n> and repeats get a _<n> suffix.
func CleanColumnNames(header []string) []string {
	replacer := strings.NewReplacer(" ", "_", "-", "_")
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	for i, h := range header {
		name := replacer.Replace(strings.ToLower(strings.TrimSpace(h)))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// inferKinds picks the narrowest kind that holds every non-empty cell of a
// column. A column with no values at all is text.
func inferKinds(t *table) []database.ColumnKind {
	kinds := make([]database.ColumnKind, len(t.header))
	for col := range t.header {
		seen, allInt, allReal := false, true, true
		for _, row := range t.rows {
			v := strings.TrimSpace(row[col])
			if v == "" {
				continue
			}
			seen = true
			if allInt {
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					allInt = false
				}
			}
			if !allInt && allReal {
				if _, err := strconv.ParseFloat(v, 64); err != nil || !numeric(v) {
					allReal = false
				}
			}
			if !allReal {
				break
			}
		}
		switch {
		case !seen:
			kinds[col] = database.KindText
		case allInt:
			kinds[col] = database.KindInteger
		case allReal:
			kinds[col] = database.KindReal
		default:
			kinds[col] = database.KindText
		}
	}
	return kinds
}

// numeric rejects the spellings ParseFloat accepts that a CSV author would
// mean as text, such as "nan" or "Inf".
func numeric(v string) bool {
	return strings.Trim(v, "0123456789+-.eE") == ""
}

// convert turns a cell into the value bound for its column kind. Empty cells
// are NULL.
func convert(cell string, kind database.ColumnKind) interface{} {
	v := strings.TrimSpace(cell)
	if v == "" {
		return nil
	}
	switch kind {
	case database.KindInteger:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case database.KindReal:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	default:
		return cell
	}
}
