package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reportsummary/reportsummary/internal/reports"
	"github.com/reportsummary/reportsummary/internal/reports/repository"
	"github.com/reportsummary/reportsummary/internal/reports/service"
	"github.com/reportsummary/reportsummary/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, maxBodyMB int) (*gin.Engine, *repository.MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()
	h := NewSummaryHandler(service.NewEngine(repo), service.NewIngestor(repo), maxBodyMB)
	g := gin.New()
	h.Register(g)
	return g, repo
}

func do(g *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	g.ServeHTTP(w, req)
	return w
}

func TestWebhookThenSummary(t *testing.T) {
	g, repo := newTestEngine(t, 1)

	// WEBHOOK
	w := do(g, http.MethodPost, "/integration/webhook", `{
		"queries": [{"status":"Open"},{"status":"Open"},{"status":"Closed"}],
		"invoices": [
			{"created":"2024-01-05T00:00:00Z","total":100,"status":"paid"},
			{"created":"2024-01-06T00:00:00Z","total":50.5,"status":"draft","removed":false},
			{"created":"2024-01-07T00:00:00Z","total":999,"status":"paid","removed":true}
		],
		"clients": [
			{"created":"2023-11-01","enabled":true},
			{"created":{"date":"2023-11-15T00:00:00Z"},"enabled":false,"removed":true},
			{"created":["2023-11-01"],"enabled":true}
		],
		"bar": "not-an-array"
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var wr struct {
		Result map[string]reports.InsertResult
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &wr))
	require.Equal(t, map[string]reports.InsertResult{
		"queries":  {InsertedCount: 3},
		"invoices": {InsertedCount: 3},
		"clients":  {InsertedCount: 3},
	}, wr.Result)
	require.Empty(t, repo.Documents("bar"))

	// SUMMARY
	w = do(g, http.MethodGet, "/integration/reports/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sr struct {
		Result struct {
			Query   []map[string]interface{} `json:"query"`
			Invoice []map[string]interface{} `json:"invoice"`
		}
		Message string
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sr))
	assert.Equal(t, "Summary data fetched successfully", sr.Message)
	counts := map[string]float64{}
	for _, q := range sr.Result.Query {
		counts[q["status"].(string)] = q["count"].(float64)
	}
	assert.Equal(t, map[string]float64{"Open": 2, "Closed": 1}, counts)

	require.Len(t, sr.Result.Invoice, 3)
	assert.NotContains(t, sr.Result.Invoice[0], "status")
	assert.Equal(t, 150.5, sr.Result.Invoice[0]["totalAmount"])
	assert.Equal(t, float64(2), sr.Result.Invoice[0]["invoiceCount"])
	assert.Equal(t, "draft", sr.Result.Invoice[1]["status"])
	assert.Equal(t, "paid", sr.Result.Invoice[2]["status"])

	// CUSTOMERS
	w = do(g, http.MethodGet, "/summary/customers", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cr struct {
		Result  []reports.CustomerCohort
		Message string
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cr))
	assert.Equal(t, "Customers fetched successfully", cr.Message)
	assert.Equal(t, []reports.CustomerCohort{{Year: 2023, Month: 11, EnabledCount: 1, RemovedCount: 1, TotalCount: 2}}, cr.Result)
}

func TestWebhookRejectsBadShapes(t *testing.T) {
	g, _ := newTestEngine(t, 1)
	for _, body := range []string{`[{"a":1}]`, `"scalar"`, `null`, `{not json`, `{"queries":[]} garbage`} {
		w := do(g, http.MethodPost, "/integration/webhook", body)
		require.Equal(t, http.StatusInternalServerError, w.Code, body)
		require.JSONEq(t, `{"error":"Invalid webhook data format"}`, w.Body.String(), body)
	}
}

func TestWebhookBodyLimit(t *testing.T) {
	g, _ := newTestEngine(t, 1)
	big := fmt.Sprintf(`{"foo":[{"blob":"%s"}]}`, strings.Repeat("x", 1024*1024))
	w := do(g, http.MethodPost, "/integration/webhook", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestWebhookKeepsIntegers(t *testing.T) {
	g, repo := newTestEngine(t, 1)
	w := do(g, http.MethodPost, "/integration/webhook", `{"invoices":[{"created":"2024-01-01","total":7}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	docs := repo.Documents("invoices")
	require.Len(t, docs, 1)
	require.Equal(t, json.Number("7"), docs[0]["total"])
	_, isTime := docs[0]["updated"].(time.Time)
	require.True(t, isTime)
}

type brokenReporter struct{ err error }

func (b brokenReporter) CustomerGrowth(context.Context) ([]reports.CustomerCohort, error) {
	return nil, b.err
}

func (b brokenReporter) Summary(context.Context) (*reports.Summary, error) { return nil, b.err }

func (b brokenReporter) QueryOverview(context.Context) (*reports.QueryOverview, error) {
	return nil, b.err
}

func TestAggregationErrorsAre500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	err := fmt.Errorf("%w: customer_cohorts: %w", reports.ErrAggregation, reports.ErrConnection)
	h := NewSummaryHandler(brokenReporter{err: err}, service.NewIngestor(repository.NewMemoryRepo()), 1)
	g := gin.New()
	h.Register(g)

	for _, path := range []string{"/summary/customers", "/integration/reports/summary", "/summary/queries"} {
		w := do(g, http.MethodGet, path, "")
		require.Equal(t, http.StatusInternalServerError, w.Code, path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, err.Error(), body["error"])
	}
}

func TestQueryOverviewRoute(t *testing.T) {
	g, _ := newTestEngine(t, 1)
	w := do(g, http.MethodPost, "/integration/webhook", `{"queries":[{"status":"Open","priority":"High","removed":false}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(g, http.MethodGet, "/summary/queries", "")
	require.Equal(t, http.StatusOK, w.Code)
	var r struct {
		Result reports.QueryOverview
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	require.Equal(t, int64(1), r.Result.OpenQueries)
	require.Equal(t, int64(1), r.Result.HighPriorityQueries)
}

func TestWebhookMiddlewareRunsFirst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()
	h := NewSummaryHandler(service.NewEngine(repo), service.NewIngestor(repo), 1)
	g := gin.New()
	h.Register(g, func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
	})

	w := do(g, http.MethodPost, "/integration/webhook", `{"queries":[{"status":"Open"}]}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Empty(t, repo.Documents("queries"))

	w = do(g, http.MethodGet, "/summary/customers", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSummaryNumericStatuses(t *testing.T) {
	g, _ := newTestEngine(t, 1)
	w := do(g, http.MethodPost, "/integration/webhook", `{
		"invoices": [
			{"created":"2024-03-01T00:00:00Z","total":5,"status":"paid"},
			{"created":"2024-03-02T00:00:00Z","total":10,"status":2},
			{"created":"2024-03-03T00:00:00Z","total":20,"status":2.0}
		],
		"queries": [{"status":2},{"status":2.0},{"status":"Open"}]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(g, http.MethodGet, "/integration/reports/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	var sr struct {
		Result struct {
			Query   []map[string]interface{} `json:"query"`
			Invoice []map[string]interface{} `json:"invoice"`
		}
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sr))

	require.Len(t, sr.Result.Invoice, 3)
	assert.NotContains(t, sr.Result.Invoice[0], "status")
	assert.Equal(t, float64(3), sr.Result.Invoice[0]["invoiceCount"])
	assert.Equal(t, float64(2), sr.Result.Invoice[1]["status"])
	assert.Equal(t, float64(2), sr.Result.Invoice[1]["invoiceCount"])
	assert.Equal(t, float64(30), sr.Result.Invoice[1]["totalAmount"])
	assert.Equal(t, "paid", sr.Result.Invoice[2]["status"])

	require.Len(t, sr.Result.Query, 2)
	assert.Equal(t, float64(2), sr.Result.Query[0]["status"])
	assert.Equal(t, float64(2), sr.Result.Query[0]["count"])
}

func TestHandlerLogsCarryRequestID(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.SetOutput(&buf)
	defer logger.SetOutput(prev.Writer())

	gin.SetMode(gin.TestMode)
	h := NewSummaryHandler(brokenReporter{err: reports.ErrAggregation}, service.NewIngestor(repository.NewMemoryRepo()), 1)
	g := gin.New()
	g.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	h.Register(g)

	w := do(g, http.MethodGet, "/summary/customers", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "[SummaryHandler] [req=req-42] Error fetching customers")
}

func TestRegisterLeavesCallerSliceAlone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := repository.NewMemoryRepo()
	h := NewSummaryHandler(service.NewEngine(repo), service.NewIngestor(repo), 1)

	mw := make([]gin.HandlerFunc, 1, 4)
	mw[0] = func(c *gin.Context) { c.Next() }
	h.Register(gin.New(), mw...)

	require.Nil(t, mw[:cap(mw)][1])
}
