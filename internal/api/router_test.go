package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicestatus/servicestatus/internal/api"
	"github.com/servicestatus/servicestatus/internal/api/models"
	"github.com/servicestatus/servicestatus/internal/auth"
	"github.com/servicestatus/servicestatus/internal/provider/resilience"
	"github.com/servicestatus/servicestatus/internal/statuspage"
	"github.com/servicestatus/servicestatus/internal/worker"
)

const testSigningKey = "test-secret-key-for-testing-only"

const githubComponents = `{
  "page": {"id":"kctbh9vrtdwd","name":"GitHub","url":"https://www.githubstatus.com","time_zone":"Etc/UTC","updated_at":"2024-05-01T10:00:00.000Z"},
  "components": [
    {"id":"c1","name":"Git Operations","status":"operational","position":1,"created_at":"2017-01-31T20:05:05.370Z","updated_at":"2024-05-01T09:00:00.000Z","page_id":"kctbh9vrtdwd"},
    {"id":"c2","name":"API Requests","status":"degraded_performance","position":2,"created_at":"2017-01-31T20:01:46.638Z","updated_at":"2024-05-01T09:30:00.000Z","page_id":"kctbh9vrtdwd"}
  ]
}`

// fakeFetcher serves canned bodies keyed by URL and counts requests.
// URLs in hang block until the request context ends.
type fakeFetcher struct {
	bodies map[string]string
	errs   map[string]error
	hang   map[string]bool
	calls  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (json.RawMessage, error) {
	f.calls.Add(1)
	if f.hang[url] {
		<-ctx.Done()
		return nil, &statuspage.TransportError{URL: url, Err: ctx.Err()}
	}
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.bodies[url]; ok {
		return json.RawMessage(body), nil
	}
	return nil, &statuspage.TransportError{URL: url, StatusCode: http.StatusNotFound}
}

type testEnv struct {
	router  http.Handler
	fetcher *fakeFetcher
	health  *resilience.Registry
	tokens  *auth.TokenService
}

func newTestEnv(t *testing.T, opts ...func(*api.RouterConfig)) *testEnv {
	t.Helper()

	registry, err := statuspage.NewRegistry([]statuspage.Service{
		{Name: "Github", Hostname: "www.githubstatus.com"},
		{Name: "OpenAI", Hostname: "status.openai.com"},
		{Name: "Broken", Hostname: "status.broken.example"},
	})
	require.NoError(t, err)

	fetcher := &fakeFetcher{
		bodies: map[string]string{
			"https://www.githubstatus.com/api/v2/components.json": githubComponents,
			"https://status.openai.com/api/v2/components.json":    `{"components":[]}`,
		},
		errs: map[string]error{
			"https://status.broken.example/api/v2/components.json": &statuspage.FormatError{Detail: "components[0].name: missing"},
		},
	}

	checker := statuspage.NewChecker(statuspage.CheckerConfig{
		Registry: registry,
		Fetcher:  fetcher,
		Logger:   zerolog.Nop(),
	})

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		SigningKey: testSigningKey,
		Issuer:     "servicestatus",
		Audience:   "servicestatus-api",
	})
	require.NoError(t, err)

	health := resilience.NewRegistry()
	sweep := worker.NewSweepJob(worker.SweepJobConfig{
		Config: worker.SweepConfig{Concurrency: 2},
		Status: checker,
		Logger: zerolog.Nop(),
	})

	cfg := api.RouterConfig{
		Version:        "test",
		BuildTime:      "2024-01-01T00:00:00Z",
		Logger:         zerolog.New(io.Discard),
		TokenValidator: tokens,
		Checker:        checker,
		Health:         health,
		Sweeper:        sweep,
		DefaultService: "Github",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	router := api.NewRouter(cfg)

	return &testEnv{router: router, fetcher: fetcher, health: health, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// addAuthHeader adds a bearer token granting scopes, or every operator
// scope when none are given.
func (e *testEnv) addAuthHeader(t *testing.T, req *http.Request, scopes ...string) {
	t.Helper()
	if len(scopes) == 0 {
		scopes = []string{auth.ScopeRead, auth.ScopeSweep}
	}
	tok, err := e.tokens.Issue("ops@servicestatus", scopes...)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	return problem
}

// tableBody mirrors the wire form of a rendered table.
type tableBody struct {
	Type    string              `json:"type"`
	Columns []string            `json:"columns"`
	Rows    [][]json.RawMessage `json:"rows"`
}

func TestRouter_HealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.EqualValues(t, 3, health.Details["services"])
}

func TestRouter_SystemStatus_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	problem := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeUnauthorized, problem.Type)
}

func TestRouter_SystemStatus(t *testing.T) {
	env := newTestEnv(t)
	for _, host := range []string{"www.githubstatus.com", "status.broken.example"} {
		env.health.ClientFor(host, func() *resilience.Client {
			return resilience.NewClient(resilience.DefaultClientConfig(host))
		})
	}
	env.health.RecordSuccess("www.githubstatus.com")
	env.health.RecordFailure("status.broken.example", &statuspage.FormatError{Detail: "bad"})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody)
	env.addAuthHeader(t, req)
	rec := env.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	assert.Equal(t, 3, status.Services)
	require.Len(t, status.Hosts, 2)

	// Sorted by host name.
	assert.Equal(t, "status.broken.example", status.Hosts[0].Host)
	assert.Equal(t, models.HealthStatusDegraded, status.Hosts[0].Status)
	assert.NotEmpty(t, status.Hosts[0].LastError)
	assert.Equal(t, "www.githubstatus.com", status.Hosts[1].Host)
	assert.Equal(t, models.HealthStatusOK, status.Hosts[1].Status)
}

func TestRouter_ListServices(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/services", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int       `json:"count"`
		Table tableBody `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Count)
	assert.Equal(t, "Table", body.Table.Type)
	require.Len(t, body.Table.Rows, 3)
	assert.Zero(t, env.fetcher.calls.Load(), "listing services makes no requests")
}

func TestRouter_GetServiceStatus(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/services/Github/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Service string              `json:"service"`
		Page    statuspage.PageInfo `json:"page"`
		Table   tableBody           `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Github", body.Service)
	assert.Equal(t, "kctbh9vrtdwd", body.Page.ID)
	assert.Equal(t, []string{"Name", "Status", "Updated"}, body.Table.Columns)
	require.Len(t, body.Table.Rows, 2)
	assert.JSONEq(t, `"Git Operations"`, string(body.Table.Rows[0][0]))
}

func TestRouter_GetServiceStatus_EscapedName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/services/Git%20hub/status", `Unknown service "Git hub"`},
		{"/v1/services/Git%2Fhub/status", `Unknown service "Git/hub"`},
		// A literal percent sign stays in the name.
		{"/v1/services/Digital%2520Ocean/status", `Unknown service "Digital%20Ocean"`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.do(t, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.Equal(t, http.StatusNotFound, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, tt.want, problem.Detail)
			assert.Zero(t, env.fetcher.calls.Load())
		})
	}
}

func TestRouter_GetServiceStatus_UnknownService(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/services/Nope/status", http.NoBody))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
	assert.Equal(t, `Unknown service "Nope"`, problem.Detail)
	assert.NotEmpty(t, problem.TraceID)
	assert.Zero(t, env.fetcher.calls.Load(), "unknown services make no requests")
}

func TestRouter_GetServiceStatus_FormatError(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/services/Broken/status", http.NoBody))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, models.ProblemTypeUpstream, problem.Type)
	assert.Equal(t, "Response Format Error", problem.Detail)
	assert.NotContains(t, rec.Body.String(), "components[0]")
}

func TestRouter_GetServiceStatus_TransportError(t *testing.T) {
	env := newTestEnv(t)
	delete(env.fetcher.bodies, "https://status.openai.com/api/v2/components.json")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/services/OpenAI/status", http.NoBody))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t,
		"Service Status Request Error: https://status.openai.com/api/v2/components.json returned 404",
		problem.Detail)
}

func TestRouter_GetStatus_DefaultService(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Service string `json:"service"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Github", body.Service)
}

func TestRouter_GetStatus_NamedService(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/status?service=OpenAI", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Service string              `json:"service"`
		Page    statuspage.PageInfo `json:"page"`
		Table   tableBody           `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OpenAI", body.Service)
	assert.Equal(t, statuspage.UnknownValue, body.Page.ID)
	assert.Equal(t, "OpenAI", body.Page.Name)
	assert.NotNil(t, body.Table.Rows)
	assert.Empty(t, body.Table.Rows)
}

func TestRouter_ListTools(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/tools", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var tools models.ToolList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	require.Len(t, tools.Tools, 2)
	assert.Contains(t, tools.Tools[0].Examples, "is github up?")
	assert.Contains(t, tools.Tools[1].Examples, "Show all Services")
}

func TestRouter_Sweep(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ops/sweep", http.NoBody)
	env.addAuthHeader(t, req)
	rec := env.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Total         int                    `json:"total"`
		Successful    int                    `json:"successful"`
		FormatErrors  int                    `json:"formatErrors"`
		RequestErrors int                    `json:"requestErrors"`
		Results       []worker.ServiceResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Successful)
	assert.Equal(t, 1, report.FormatErrors)
	require.Len(t, report.Results, 3)

	// Registry order.
	assert.Equal(t, "Github", report.Results[0].Service)
	assert.Equal(t, 2, report.Results[0].Components)
	assert.Equal(t, "OpenAI", report.Results[1].Service)
	assert.Equal(t, "Broken", report.Results[2].Service)
	assert.Equal(t, worker.OutcomeFormatError, report.Results[2].Outcome)
}

func TestRouter_Sweep_BudgetBoundsHangingPages(t *testing.T) {
	env := newTestEnv(t, func(cfg *api.RouterConfig) {
		cfg.SweepBudget = 50 * time.Millisecond
	})
	env.fetcher.hang = map[string]bool{
		"https://www.githubstatus.com/api/v2/components.json": true,
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/ops/sweep", http.NoBody)
	env.addAuthHeader(t, req)

	start := time.Now()
	rec := env.do(t, req)
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, elapsed, 5*time.Second, "the per-service timeout alone would wait 15s")

	var report struct {
		Total         int                    `json:"total"`
		Successful    int                    `json:"successful"`
		RequestErrors int                    `json:"requestErrors"`
		Results       []worker.ServiceResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Successful)
	assert.Equal(t, 1, report.RequestErrors)
	require.Len(t, report.Results, 3)
	assert.Equal(t, worker.OutcomeRequestError, report.Results[0].Outcome)
	assert.Contains(t, report.Results[0].Message, "www.githubstatus.com")
	assert.Equal(t, worker.OutcomeOK, report.Results[1].Outcome)
}

func TestRouter_Sweep_SelectedServices(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ops/sweep", strings.NewReader(`{"services":["OpenAI"]}`))
	req.Header.Set("Content-Type", "application/json")
	env.addAuthHeader(t, req)
	rec := env.do(t, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report worker.SweepResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, int32(1), env.fetcher.calls.Load())
}

func TestRouter_Sweep_UnknownService(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ops/sweep", strings.NewReader(`{"services":["Github","Nope"]}`))
	env.addAuthHeader(t, req)
	rec := env.do(t, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	problem := decodeProblem(t, rec)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "UNKNOWN_SERVICE", problem.Errors[0].Code)
	assert.Zero(t, env.fetcher.calls.Load())
}

func TestRouter_Sweep_RejectsNonJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/ops/sweep", strings.NewReader("services=Github"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.addAuthHeader(t, req)
	rec := env.do(t, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_Sweep_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/v1/ops/sweep", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.fetcher.calls.Load())
}

func TestRouter_OpsScopes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		scope  string
		want   int
	}{
		{"sweep with read scope", http.MethodPost, "/v1/ops/sweep", `{}`, auth.ScopeRead, http.StatusForbidden},
		{"status with sweep scope", http.MethodGet, "/v1/ops/status", "", auth.ScopeSweep, http.StatusForbidden},
		{"status with read scope", http.MethodGet, "/v1/ops/status", "", auth.ScopeRead, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			env.addAuthHeader(t, req, tt.scope)
			rec := env.do(t, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				problem := decodeProblem(t, rec)
				assert.Equal(t, models.ProblemTypeForbidden, problem.Type)
				assert.Contains(t, problem.Detail, "token lacks scope")
				assert.Zero(t, env.fetcher.calls.Load())
			}
		})
	}
}

func TestRouter_RequestID_Generated(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "client-request-123")
	rec := env.do(t, req)

	assert.Equal(t, "client-request-123", rec.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
