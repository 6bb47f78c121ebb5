// internal/workers/visualization/render-chart/handler_test.go
package renderchart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csv-chat/internal/common/logger"
	"csv-chat/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{MaxSnippetBytes: 4096, PreviewRows: 2}
}

func createTestHandler(t *testing.T) *Handler {
	return NewHandler(createTestConfig(), logger.NewTestLogger(t))
}

func salesResult() *models.ResultSet {
	return &models.ResultSet{
		Columns: []string{"region", "product", "total"},
		Rows: [][]interface{}{
			{"north", "a", int64(10)},
			{"south", "a", int64(7)},
			{"north", "b", int64(3)},
			{"east", "b", int64(5)},
		},
	}
}

func render(t *testing.T, code string) *models.Figure {
	t.Helper()
	out, err := createTestHandler(t).Execute(context.Background(), &Input{Result: salesResult(), VizCode: code})
	require.NoError(t, err)
	require.NotNil(t, out.Figure)
	return out.Figure
}

func renderErr(t *testing.T, code string) error {
	t.Helper()
	out, err := createTestHandler(t).Execute(context.Background(), &Input{Result: salesResult(), VizCode: code})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, ErrSandboxFailed))
	return err
}

// ==========================
// Import Stripping Tests
// ==========================

func TestStripImports(t *testing.T) {
	code := "import plotly.express as px\n  from plotly import graph_objects as go\nfig = px.bar(df, x='region', y='total')\nimportant = 1"
	stripped := StripImports(code)
	assert.Equal(t, "fig = px.bar(df, x='region', y='total')\nimportant = 1", stripped)
	assert.Equal(t, stripped, StripImports(stripped))
}

func TestImportStrippingDoesNotChangeFigure(t *testing.T) {
	withImports := render(t, "import plotly.express as px\nfig = px.bar(df, x='region', y='total')")
	without := render(t, "fig = px.bar(df, x='region', y='total')")
	assert.Equal(t, without, withImports)
}

// ==========================
// Express Constructor Tests
// ==========================

func TestRender_ExpressCharts(t *testing.T) {
	tests := []struct {
		name           string
		code           string
		validateFigure func(t *testing.T, fig *models.Figure)
	}{
		{
			name: "bar with labels and title",
			code: "fig = px.bar(df, x='region', y='total', title='Sales', labels={'total': 'Total sales'})",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				require.Len(t, fig.Data, 1)
				tr := fig.Data[0]
				assert.Equal(t, "bar", tr["type"])
				assert.Equal(t, []interface{}{"north", "south", "north", "east"}, tr["x"])
				assert.Equal(t, []interface{}{int64(10), int64(7), int64(3), int64(5)}, tr["y"])
				assert.Equal(t, map[string]interface{}{"text": "Sales"}, fig.Layout["title"])
				assert.Equal(t, map[string]interface{}{"title": map[string]interface{}{"text": "Total sales"}}, fig.Layout["yaxis"])
				assert.Equal(t, "relative", fig.Layout["barmode"])
			},
		},
		{
			name: "color splits traces in first appearance order",
			code: "fig = px.bar(df, x='region', y='total', color='product', barmode='group')",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				require.Len(t, fig.Data, 2)
				assert.Equal(t, "a", fig.Data[0]["name"])
				assert.Equal(t, []interface{}{"north", "south"}, fig.Data[0]["x"])
				assert.Equal(t, "b", fig.Data[1]["name"])
				assert.Equal(t, []interface{}{int64(3), int64(5)}, fig.Data[1]["y"])
				assert.Equal(t, "group", fig.Layout["barmode"])
			},
		},
		{
			name: "line with markers using series arguments",
			code: "fig = px.line(x=df['region'], y=df.total, markers=True)",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				tr := fig.Data[0]
				assert.Equal(t, "scatter", tr["type"])
				assert.Equal(t, "lines+markers", tr["mode"])
				assert.Equal(t, map[string]interface{}{"title": map[string]interface{}{"text": "region"}}, fig.Layout["xaxis"])
			},
		},
		{
			name: "scatter",
			code: "fig = px.scatter(df, 'region', 'total', size='total')",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				assert.Equal(t, "markers", fig.Data[0]["mode"])
				assert.NotNil(t, fig.Data[0]["marker"])
			},
		},
		{
			name: "pie",
			code: "fig = px.pie(df, names='region', values='total', hole=0.4)",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				tr := fig.Data[0]
				assert.Equal(t, "pie", tr["type"])
				assert.Equal(t, []interface{}{"north", "south", "north", "east"}, tr["labels"])
				assert.Equal(t, 0.4, tr["hole"])
				assert.Nil(t, fig.Layout["xaxis"])
			},
		},
		{
			name: "histogram",
			code: "fig = px.histogram(df, x='total', nbins=5)",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				tr := fig.Data[0]
				assert.Equal(t, "histogram", tr["type"])
				assert.Equal(t, int64(5), tr["nbinsx"])
				assert.Nil(t, tr["y"])
				assert.Equal(t, map[string]interface{}{"title": map[string]interface{}{"text": "count"}}, fig.Layout["yaxis"])
			},
		},
		{
			name: "area",
			code: "fig = px.area(df, x='region', y='total')",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				assert.Equal(t, "1", fig.Data[0]["stackgroup"])
			},
		},
		{
			name: "wide form y",
			code: "fig = px.line(df, x='region', y=['total'])",
			validateFigure: func(t *testing.T, fig *models.Figure) {
				require.Len(t, fig.Data, 1)
				assert.Equal(t, "total", fig.Data[0]["name"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validateFigure(t, render(t, tt.code))
		})
	}
}

// ==========================
// Graph Object and Method Tests
// ==========================

func TestRender_GraphObjects(t *testing.T) {
	code := `
fig = go.Figure(
    data=[go.Bar(x=df['region'], y=df['total'], name="Total", marker_color="#336699")],
    layout=dict(title="By region"),
)
fig.add_trace(go.Scatter(x=df.region, y=df.total, mode="lines"))
fig.update_layout(xaxis_title="Region", yaxis_title_text="Total", showlegend=False)
fig.update_traces(opacity=0.5, selector=dict(type="bar"))
fig.update_yaxes(tickformat=",d")
fig.show()
`
	fig := render(t, code)

	require.Len(t, fig.Data, 2)
	bar := fig.Data[0]
	assert.Equal(t, "bar", bar["type"])
	assert.Equal(t, map[string]interface{}{"color": "#336699"}, bar["marker"])
	assert.Equal(t, 0.5, bar["opacity"])
	assert.Nil(t, fig.Data[1]["opacity"])
	assert.Equal(t, "scatter", fig.Data[1]["type"])

	assert.Equal(t, map[string]interface{}{"text": "By region"}, fig.Layout["title"])
	assert.Equal(t, false, fig.Layout["showlegend"])
	assert.Equal(t, map[string]interface{}{"title": map[string]interface{}{"text": "Region"}}, fig.Layout["xaxis"])
	assert.Equal(t, map[string]interface{}{
		"title":      map[string]interface{}{"text": "Total"},
		"tickformat": ",d",
	}, fig.Layout["yaxis"])
}

func TestRender_ChainedUpdates(t *testing.T) {
	fig := render(t, "fig = px.bar(df, x='region', y='total').update_layout(title_text='T', plot_bgcolor='white')")
	assert.Equal(t, map[string]interface{}{"text": "T"}, fig.Layout["title"])
	assert.Equal(t, "white", fig.Layout["plot_bgcolor"])
}

func TestRender_LanguageFeatures(t *testing.T) {
	code := `# totals per region
cols = df.columns
title = "Rows: " + "%d"
n = len(df) * 2 - 1
fig = px.bar(df, x=cols[0], y=cols[-1], title=title, height=100 + n)
`
	fig := render(t, code)
	assert.Equal(t, int64(107), fig.Layout["height"])
	assert.Equal(t, map[string]interface{}{"text": "Rows: %d"}, fig.Layout["title"])
}

func TestRender_Deterministic(t *testing.T) {
	code := "fig = px.bar(df, x='region', y='total', color='product')\nfig.update_layout(title='x', legend_orientation='h')"
	first, err := json.Marshal(render(t, code))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(render(t, code))
		require.NoError(t, err)
		assert.JSONEq(t, string(first), string(again))
	}
}

// ==========================
// Chart Description Tests
// ==========================

func TestRender_ChartSpec(t *testing.T) {
	out, err := createTestHandler(t).Execute(context.Background(), &Input{
		Result:  salesResult(),
		VizCode: `{"kind": "bar", "x": "region", "y": "total", "title": "Sales", "labels": {"total": "Sum"}}`,
	})
	require.NoError(t, err)
	assert.Equal(t, FormSpec, out.Form)
	assert.Equal(t, "bar", out.Figure.Data[0]["type"])
	assert.Equal(t, map[string]interface{}{"title": map[string]interface{}{"text": "Sum"}}, out.Figure.Layout["yaxis"])
}

func TestRender_ChartSpecInvalid(t *testing.T) {
	err := renderErr(t, `{"kind": "radar", "x": "region"}`)
	assert.Contains(t, err.Error(), "kind")

	renderErr(t, `{"kind": "bar", "x": "missing"}`)
	renderErr(t, `{"kind": "bar",`)
}

// ==========================
// Error Handling Tests
// ==========================

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
	}{
		{"no figure", "x = 1", "no figure produced"},
		{"only imports", "import plotly.express as px", "no figure produced"},
		{"fig not a figure", "fig = 3", "fig must be a figure"},
		{"unknown name", "fig = pd.DataFrame()", `name "pd" is not defined`},
		{"builtin escape", "fig = __import__('os')", `name "__import__" is not defined`},
		{"open is unreachable", "open('/etc/passwd')", `name "open" is not defined`},
		{"unknown px function", "fig = px.sunburst(df)", `has no attribute "sunburst"`},
		{"unknown column", "fig = px.bar(df, x='nope', y='total')", `column "nope" not found`},
		{"unknown attribute", "fig = px.bar(df, x=df.nope)", `no column or attribute "nope"`},
		{"unknown kwarg", "fig = px.bar(df, x='region', facet_col='product')", `unexpected keyword argument "facet_col"`},
		{"dunder attribute", "fig = df.__class__", `"__class__"`},
		{"lambda", "f = lambda x: x", "lambda is not supported"},
		{"comprehension", "xs = [c for c in df.columns]", "comprehensions are not supported"},
		{"f-string", "t = f'{df}'", "f-strings are not supported"},
		{"syntax", "fig = px.bar(df,", "unclosed bracket"},
		{"attribute assignment", "fig.layout = 1", "only plain names can be assigned"},
		{"not callable", "fig = df()", "not callable"},
		{"figure method typo", "fig = px.bar(df, x='region')\nfig.update_layouts(title='x')", `"update_layouts"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := renderErr(t, tt.code)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRender_ErrorCarriesLine(t *testing.T) {
	_, err := Render(salesResult(), "fig = px.bar(df, x='region', y='total')\nfig.update_traces(marker=df)")
	require.Error(t, err)

	var se *SnippetError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.Line)
	assert.True(t, strings.Contains(se.Source, "update_traces"))
}

func TestHandler_SnippetTooLarge(t *testing.T) {
	err := renderErr(t, "fig = None\n"+strings.Repeat("x = 1\n", 1000))
	assert.Contains(t, err.Error(), "exceeds")
}

func TestHandler_Failure(t *testing.T) {
	handler := createTestHandler(t)
	_, err := handler.Execute(context.Background(), &Input{Result: salesResult(), VizCode: "x = 1"})
	require.Error(t, err)

	failure := handler.Failure(err, "x = 1", salesResult())
	assert.Equal(t, "no figure produced", failure.Message)
	assert.Equal(t, "x = 1", failure.Code)
	assert.Len(t, failure.Preview, 2)
	assert.Equal(t, "north", failure.Preview[0]["region"])
}
