// cmd/csvchat/render.go
package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"csv-chat/internal/models"
	answerquestion "csv-chat/internal/workers/conversation/answer-question"
)

// maxTableRows bounds how many result rows are printed to the terminal.
const maxTableRows = 50

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func columnNames(cols []models.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}

func renderColumns(cols []models.Column) {
	data := pterm.TableData{{"Column", "Type"}}
	for _, c := range cols {
		data = append(data, []string{c.Name, c.Type})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderRecords(columns []string, records []map[string]interface{}) {
	if len(records) == 0 {
		return
	}
	data := pterm.TableData{columns}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = formatCell(rec[c])
		}
		data = append(data, row)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderRows(columns []string, rows [][]interface{}) {
	data := pterm.TableData{columns}
	for i, row := range rows {
		if i == maxTableRows {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = formatCell(v)
		}
		data = append(data, cells)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	if len(rows) > maxTableRows {
		pterm.Info.Printf("Showing %d of %d rows; use --json for everything.\n", maxTableRows, len(rows))
	}
}

func renderDiagnostics(diag *models.TableDiagnostics) {
	pterm.DefaultSection.Printf("%s: %d rows\n", diag.Table, diag.TotalRows)
	data := pterm.TableData{{"Column", "Distinct", "Samples"}}
	for _, c := range diag.Columns {
		if c.Error != "" {
			data = append(data, []string{c.Name, "-", "error: " + c.Error})
			continue
		}
		samples := make([]string, len(c.Samples))
		for i, s := range c.Samples {
			samples[i] = formatCell(s)
		}
		data = append(data, []string{c.Name, strconv.FormatInt(c.DistinctCount, 10), strings.Join(samples, ", ")})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func renderAnswer(output *answerquestion.Output) {
	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("SQL")).
		WithTopPadding(1).WithBottomPadding(1).WithLeftPadding(1).WithRightPadding(1).
		Println(output.Plan.SQL)

	if output.RowCount == 0 {
		pterm.Info.Println("The query returned no rows.")
	} else {
		renderRows(output.Columns, output.Rows)
	}

	switch {
	case output.VisualizationError != nil:
		pterm.Warning.Printf("Chart could not be rendered: %s\n", output.VisualizationError.Message)
	case output.Figure != nil:
		if bars := barsFromFigure(output.Figure); len(bars) > 0 {
			_ = pterm.DefaultBarChart.WithBars(bars).WithHorizontal().WithShowValue().Render()
		} else {
			pterm.Info.Printf("Chart with %d trace(s) produced; use --json or the HTTP API to view it.\n", len(output.Figure.Data))
		}
	}
}

// barsFromFigure turns the first bar trace into terminal bars. pterm bars are
// integers, so values are rounded.
func barsFromFigure(fig *models.Figure) pterm.Bars {
	for _, trace := range fig.Data {
		if trace["type"] != "bar" {
			continue
		}
		labels, values := trace["x"], trace["y"]
		if trace["orientation"] == "h" {
			labels, values = values, labels
		}
		ls, vs := toSlice(labels), toSlice(values)
		if len(vs) == 0 {
			return nil
		}
		bars := make(pterm.Bars, 0, len(vs))
		for i, v := range vs {
			f, ok := toFloat(v)
			if !ok {
				return nil
			}
			label := strconv.Itoa(i)
			if i < len(ls) {
				label = formatCell(ls[i])
			}
			bars = append(bars, pterm.Bar{Label: label, Value: int(math.Round(f))})
		}
		return bars
	}
	return nil
}

func toSlice(v interface{}) []interface{} {
	switch val := v.(type) {
	case []interface{}:
		return val
	case []float64:
		out := make([]interface{}, len(val))
		for i, f := range val {
			out[i] = f
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	}
	return nil
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}
