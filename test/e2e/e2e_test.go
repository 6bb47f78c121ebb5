// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"csv-chat/internal/api"
	"csv-chat/internal/common/config"
	"csv-chat/internal/common/database"
	"csv-chat/internal/common/llm"
	"csv-chat/internal/common/logger"
	"csv-chat/internal/models"
	answerquestion "csv-chat/internal/workers/conversation/answer-question"
	describetable "csv-chat/internal/workers/data-access/describe-table"
	ingestcsv "csv-chat/internal/workers/data-access/ingest-csv"
	runsql "csv-chat/internal/workers/data-access/run-sql"
	buildprompt "csv-chat/internal/workers/planning/build-prompt"
	extractplan "csv-chat/internal/workers/planning/extract-plan"
	generateplan "csv-chat/internal/workers/planning/generate-plan"
	renderchart "csv-chat/internal/workers/visualization/render-chart"
)

const salesCSV = "Region,Product,Units,Price\n" +
	"north,apple,10,1.5\n" +
	"south,apple,4,1.5\n" +
	"north,pear,7,2.25\n" +
	"east,plum,3,0.75\n"

// ==========================
// Fake language model
// ==========================

// fakeLLM speaks the chat-completions protocol and replays queued answers.
type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	prompts []string
}

func (f *fakeLLM) queue(replies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeLLM) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req llm.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, req.Messages[len(req.Messages)-1].Content)
	reply := ""
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"},
		},
	})
}

// ==========================
// Stack setup
// ==========================

type stack struct {
	llm    *fakeLLM
	server *httptest.Server
}

func newStack(t *testing.T, rdbAddr string) *stack {
	t.Helper()
	log := logger.NewTestLogger(t)

	fake := &fakeLLM{}
	llmServer := httptest.NewServer(fake)
	t.Cleanup(llmServer.Close)

	store := database.NewSQLite(filepath.Join(t.TempDir(), "data.db"))
	table := "data"

	llmClient := llm.NewClient(config.LLMConfig{
		BaseURL:   llmServer.URL,
		APIKey:    "e2e-key",
		Model:     "llama-3.1-8b-instant",
		MaxTokens: 512,
		Timeout:   5000,
	}, log)

	planCfg := generateplan.LoadConfig()
	planCfg.Model = llmClient.Model()
	planCfg.CacheTTL = time.Minute
	var redisClient *database.RedisClient
	if rdbAddr != "" {
		redisClient = database.NewRedis(config.RedisConfig{Address: rdbAddr})
		t.Cleanup(func() { _ = redisClient.Close() })
	}

	ingest := ingestcsv.NewHandler(ingestcsv.LoadConfig(), store, log)
	schema := describetable.NewHandler(describetable.LoadConfig(), store, log)

	steps := answerquestion.Steps{
		Schema: schema,
		Prompt: buildprompt.NewHandler(buildprompt.LoadConfig(), log),
		Query:  runsql.NewHandler(runsql.LoadConfig(), store, log),
		Chart:  renderchart.NewHandler(renderchart.LoadConfig(), log),
	}
	extractor := extractplan.NewHandler(extractplan.LoadConfig(), log)
	if redisClient != nil {
		steps.Plan = generateplan.NewHandler(planCfg, llmClient, extractor, redisClient.Client, log)
	} else {
		steps.Plan = generateplan.NewHandler(planCfg, llmClient, extractor, nil, log)
	}

	answerCfg := answerquestion.LoadConfig()
	answerCfg.Table = table
	answerCfg.Dialect = store.Dialect()
	answer := answerquestion.NewHandler(answerCfg, steps, nil, log)

	srv := api.NewServer(&api.Config{UploadMaxBytes: 1 << 20}, api.Services{
		Ingest: ingest,
		Schema: schema,
		Answer: answer,
		Store:  store,
	}, log)
	server := httptest.NewServer(srv)
	t.Cleanup(server.Close)

	return &stack{llm: fake, server: server}
}

func (s *stack) upload(t *testing.T, csv string) *http.Response {
	t.Helper()
	resp, err := http.Post(s.server.URL+"/api/upload?filename=sales.csv", "text/csv", strings.NewReader(csv))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *stack) ask(t *testing.T, question string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"question": question})
	require.NoError(t, err)
	resp, err := http.Post(s.server.URL+"/api/ask", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *stack) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(s.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

type errorBody struct {
	Error struct {
		Code     string                 `json:"code"`
		Details  string                 `json:"details"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"error"`
}

// ==========================
// End-to-end flows
// ==========================

func TestE2E_UploadAskChart(t *testing.T) {
	s := newStack(t, "")

	resp := s.upload(t, salesCSV)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ingested ingestcsv.Output
	decode(t, resp, &ingested)
	assert.Equal(t, 4, ingested.RowCount)
	assert.True(t, ingested.Replaced)
	assert.Equal(t, []models.Column{
		{Name: "region", Type: "TEXT"},
		{Name: "product", Type: "TEXT"},
		{Name: "units", Type: "INTEGER"},
		{Name: "price", Type: "REAL"},
	}, ingested.Columns)

	s.llm.queue("Here is the plan:\n```json\n" +
		`{"sql": "SELECT region, SUM(units) AS total FROM data GROUP BY region ORDER BY total DESC;", ` +
		`"viz_code": "import plotly.express as px\nfig = px.bar(df, x='region', y='total', title='Units by region')"}` +
		"\n```")

	resp = s.ask(t, "total units per region as a bar chart")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var answer answerquestion.Output
	decode(t, resp, &answer)

	assert.Equal(t, 1, s.llm.calls())
	assert.Contains(t, s.llm.lastPrompt(), "- units (INTEGER)")
	assert.Contains(t, s.llm.lastPrompt(), "total units per region as a bar chart")

	assert.Equal(t, "SELECT region, SUM(units) AS total FROM data GROUP BY region ORDER BY total DESC;", answer.Plan.SQL)
	assert.Equal(t, 1, answer.Attempts)
	assert.Equal(t, []string{"region", "total"}, answer.Columns)
	assert.Equal(t, 3, answer.RowCount)
	require.Len(t, answer.Rows, 3)
	assert.Equal(t, "north", answer.Rows[0][0])
	assert.EqualValues(t, 17, answer.Rows[0][1])

	require.NotNil(t, answer.Figure)
	assert.Nil(t, answer.VisualizationError)
	require.Len(t, answer.Figure.Data, 1)
	assert.Equal(t, "bar", answer.Figure.Data[0]["type"])
}

func TestE2E_BareSQLTableOnly(t *testing.T) {
	s := newStack(t, "")
	require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)

	s.llm.queue("SELECT product, price FROM data WHERE units > 5 ORDER BY product")

	resp := s.ask(t, "which products sold more than five units?")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var answer answerquestion.Output
	decode(t, resp, &answer)

	assert.Equal(t, []string{"product", "price"}, answer.Columns)
	assert.Equal(t, 2, answer.RowCount)
	assert.Nil(t, answer.Figure)
	assert.Nil(t, answer.VisualizationError)
}

func TestE2E_RetryThenSuccess(t *testing.T) {
	s := newStack(t, "")
	require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)

	s.llm.queue(
		`{"sql": "SELECT region, SUM(units`,
		`{"sql": "SELECT DISTINCT region FROM data ORDER BY region"}`,
	)

	resp := s.ask(t, "list the regions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var answer answerquestion.Output
	decode(t, resp, &answer)

	assert.Equal(t, 2, s.llm.calls())
	assert.Contains(t, s.llm.lastPrompt(), generateplan.StrictInstruction)
	assert.Equal(t, 2, answer.Attempts)
	assert.Equal(t, 3, answer.RowCount)
}

func TestE2E_RetryExhausted(t *testing.T) {
	s := newStack(t, "")
	require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)

	s.llm.queue("I cannot help with that.", "Still no query for you.")

	resp := s.ask(t, "what is the meaning of life?")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body errorBody
	decode(t, resp, &body)

	assert.Equal(t, "RETRY_EXHAUSTED", body.Error.Code)
	assert.EqualValues(t, 2, body.Error.Metadata["attempts"])
	assert.Contains(t, body.Error.Metadata["lastResponse"], "Still no query")
	assert.Equal(t, 2, s.llm.calls())
}

func TestE2E_UnsafeAndFailingQueries(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		expectStatus int
		expectCode   string
	}{
		{
			name:         "write statement rejected",
			reply:        `{"sql": "DELETE FROM data"}`,
			expectStatus: http.StatusUnprocessableEntity,
			expectCode:   "UNSAFE_QUERY",
		},
		{
			name:         "unknown column",
			reply:        `{"sql": "SELECT revenue FROM data"}`,
			expectStatus: http.StatusUnprocessableEntity,
			expectCode:   "EXECUTION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStack(t, "")
			require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)
			s.llm.queue(tt.reply)

			resp := s.ask(t, "anything")
			assert.Equal(t, tt.expectStatus, resp.StatusCode)
			var body errorBody
			decode(t, resp, &body)
			assert.Equal(t, tt.expectCode, body.Error.Code)
			assert.Equal(t, 1, s.llm.calls())
		})
	}

	t.Run("table intact after rejected write", func(t *testing.T) {
		s := newStack(t, "")
		require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)
		s.llm.queue(`{"sql": "DROP TABLE data"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, s.ask(t, "drop it").StatusCode)

		resp := s.get(t, "/api/debug")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var diag models.TableDiagnostics
		decode(t, resp, &diag)
		assert.EqualValues(t, 4, diag.TotalRows)
	})
}

func TestE2E_ChartFailureKeepsRows(t *testing.T) {
	s := newStack(t, "")
	require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)

	s.llm.queue(`{"sql": "SELECT product, units FROM data", "viz_code": "fig = px.pie(df, names='nope', values='units')"}`)

	resp := s.ask(t, "pie of units by product")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var answer answerquestion.Output
	decode(t, resp, &answer)

	assert.Equal(t, 4, answer.RowCount)
	assert.Nil(t, answer.Figure)
	require.NotNil(t, answer.VisualizationError)
	assert.Contains(t, answer.VisualizationError.Message, "nope")
	assert.NotEmpty(t, answer.VisualizationError.Preview)
}

func TestE2E_SchemaAndDebug(t *testing.T) {
	s := newStack(t, "")

	resp := s.get(t, "/api/schema")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)

	resp = s.get(t, "/api/schema")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var schema describetable.Output
	decode(t, resp, &schema)
	assert.Equal(t, "data", schema.Schema.Table)
	assert.Len(t, schema.Schema.Columns, 4)
	assert.Contains(t, schema.PromptText, "- price (REAL)")

	resp = s.get(t, "/api/debug")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var diag models.TableDiagnostics
	decode(t, resp, &diag)
	assert.EqualValues(t, 4, diag.TotalRows)
	require.Len(t, diag.Columns, 4)
	assert.EqualValues(t, 3, diag.Columns[0].DistinctCount)
}

func TestE2E_ReuploadReplacesTable(t *testing.T) {
	s := newStack(t, "")
	require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)
	require.Equal(t, http.StatusOK, s.upload(t, "City,Population\nlisbon,545000\n").StatusCode)

	resp := s.get(t, "/api/schema")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var schema describetable.Output
	decode(t, resp, &schema)
	assert.Equal(t, []models.Column{
		{Name: "city", Type: "TEXT"},
		{Name: "population", Type: "INTEGER"},
	}, schema.Schema.Columns)
}

func TestE2E_PlanCache(t *testing.T) {
	mr := miniredis.RunT(t)
	s := newStack(t, mr.Addr())
	require.Equal(t, http.StatusOK, s.upload(t, salesCSV).StatusCode)

	s.llm.queue(`{"sql": "SELECT COUNT(*) AS n FROM data"}`)

	var first, second answerquestion.Output
	resp := s.ask(t, "how many rows?")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &first)

	resp = s.ask(t, "how many rows?")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &second)

	assert.Equal(t, 1, s.llm.calls())
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Len(t, mr.Keys(), 1)
}

func TestE2E_HealthAndReady(t *testing.T) {
	s := newStack(t, "")

	resp := s.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.get(t, "/ready")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
