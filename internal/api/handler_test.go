package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vidmetrics/vidmetrics/internal/auth"
	"github.com/vidmetrics/vidmetrics/internal/config"
	"github.com/vidmetrics/vidmetrics/internal/pipeline"
)

type answererFunc func(ctx context.Context, question string) (int64, error)

func (f answererFunc) Answer(ctx context.Context, question string) (int64, error) {
	return f(ctx, question)
}

func TestHealthEndpoint(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "vidmetrics-api" {
		t.Fatalf("service = %v", body["service"])
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})

	h := NewHandler(cfg, Dependencies{
		Readiness: func(rctx context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NOT_READY" || body["retryable"] != true {
		t.Fatalf("body = %#v", body)
	}
}

func TestAnswerReturnsValueAndRequestID(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	var gotQuestion string
	h := NewHandler(cfg, Dependencies{
		Answerer: answererFunc(func(_ context.Context, question string) (int64, error) {
			gotQuestion = question
			return 42, nil
		}),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"question":"Сколько всего видео есть в системе?"}`))
	req.Header.Set("X-Trace-ID", "trace-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	if gotQuestion != "Сколько всего видео есть в системе?" {
		t.Fatalf("question = %q", gotQuestion)
	}
	var response answerResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if response.Value != 42 || response.RequestID != "trace-123" {
		t.Fatalf("response = %#v", response)
	}
}

func TestAnswerFailureHidesDetails(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{
		Answerer: answererFunc(func(_ context.Context, _ string) (int64, error) {
			return 0, &pipeline.Error{
				Stage:     pipeline.StageExecution,
				RequestID: "req-9",
				Statement: "SELECT broken FROM videos;",
				Err:       errors.New(`column "broken" does not exist`),
			}
		}),
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"question":"что-то"}`)))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "broken") {
		t.Fatalf("response leaks statement: %s", rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "ANSWER_FAILED" || body["message"] != pipeline.UserMessage {
		t.Fatalf("body = %#v", body)
	}
	extra, _ := body["context"].(map[string]any)
	if extra["request_id"] != "req-9" {
		t.Fatalf("context = %#v", body["context"])
	}
}

func TestAnswerRejectsBadRequests(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	called := false
	h := NewHandler(cfg, Dependencies{
		Answerer: answererFunc(func(_ context.Context, _ string) (int64, error) {
			called = true
			return 0, nil
		}),
	})

	cases := []struct {
		name string
		body string
		code string
	}{
		{name: "malformed", body: `{"question":`, code: "INVALID_JSON"},
		{name: "unknown field", body: `{"q":"x"}`, code: "INVALID_JSON"},
		{name: "empty question", body: `{"question":"   "}`, code: "QUESTION_REQUIRED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(tc.body)))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rr.Code)
			}
			if body := decodeBody(t, rr); body["error_code"] != tc.code {
				t.Fatalf("error_code = %v", body["error_code"])
			}
		})
	}
	if called {
		t.Fatal("answerer should not be called for bad requests")
	}
}

func TestAnswerWithoutPipelineIsNotImplemented(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"question":"x"}`)))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"VIDMETRICS_AUTH_REQUIRED": "true",
	})
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:answer_reader,k2:ops:operator")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Answerer: answererFunc(func(_ context.Context, _ string) (int64, error) {
			return 7, nil
		}),
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"question":"x"}`)))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	wrongRole := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"question":"x"}`))
	wrongRole.Header.Set("X-API-Key", "k2")
	wrongRoleResp := httptest.NewRecorder()
	h.ServeHTTP(wrongRoleResp, wrongRole)
	if wrongRoleResp.Code != http.StatusForbidden {
		t.Fatalf("wrong role status = %d", wrongRoleResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodPost, "/v1/answer", strings.NewReader(`{"question":"x"}`))
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d, body=%s", authResp.Code, authResp.Body.String())
	}
}

func TestStatusRequiresOperator(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"VIDMETRICS_AUTH_REQUIRED":              "true",
		"VIDMETRICS_AUTH_STATIC_KEYS":           "k1:analyst:answer_reader,k2:ops:operator",
		"VIDMETRICS_COMPLETION_API_KEY":         "secret-llm-key",
		"VIDMETRICS_ENGINE":                     "duckdb",
		"VIDMETRICS_SQL_REJECT_MULTI_STATEMENT": "true",
	})
	validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	h := NewHandler(cfg, Dependencies{AuthMiddleware: auth.Middleware(nil, validator)})

	reader := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	reader.Header.Set("X-API-Key", "k1")
	readerResp := httptest.NewRecorder()
	h.ServeHTTP(readerResp, reader)
	if readerResp.Code != http.StatusForbidden {
		t.Fatalf("answer_reader status = %d", readerResp.Code)
	}

	operator := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	operator.Header.Set("X-API-Key", "k2")
	operatorResp := httptest.NewRecorder()
	h.ServeHTTP(operatorResp, operator)
	if operatorResp.Code != http.StatusOK {
		t.Fatalf("operator status = %d, body=%s", operatorResp.Code, operatorResp.Body.String())
	}
	if strings.Contains(operatorResp.Body.String(), "secret-llm-key") || strings.Contains(operatorResp.Body.String(), "postgres://") {
		t.Fatalf("status leaks credentials: %s", operatorResp.Body.String())
	}
	body := decodeBody(t, operatorResp)
	if body["engine"] != "duckdb" || body["parquet_prefix"] != "exports/latest" || body["reject_multi_statement"] != true {
		t.Fatalf("status body = %+v", body)
	}
	if body["completion_provider"] != "yandex" || body["completion_timeout"] != "30s" {
		t.Fatalf("status body = %+v", body)
	}
}

func TestAuthRequiredWithoutMiddleware(t *testing.T) {
	cfg := loadConfig(t, map[string]string{
		"VIDMETRICS_AUTH_REQUIRED": "true",
	})
	h := NewHandler(cfg, Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/examples", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error_code"] != "AUTH_MIDDLEWARE_MISSING" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestExamplesEndpoint(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/examples", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var body struct {
		Examples []string `json:"examples"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(body.Examples) != len(Examples) || body.Examples[1] != Examples[1] {
		t.Fatalf("examples = %#v", body.Examples)
	}
}

func TestMetricsEndpointExposesHTTPMetrics(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	raw, err := io.ReadAll(rr.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(raw), "vidmetrics_http_requests_total") {
		t.Fatalf("metrics body missing http counter:\n%s", raw)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestConfigReadinessChecks(t *testing.T) {
	cfg := loadConfig(t, map[string]string{})
	if err := CheckStoreDSN(cfg)(context.Background()); err != nil {
		t.Fatalf("store dsn check: %v", err)
	}
	cfg.Store.DSN = ""
	if err := CheckStoreDSN(cfg)(context.Background()); err == nil {
		t.Fatal("expected empty dsn to fail")
	}
	cfg.ObjectStore.Bucket = ""
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err == nil {
		t.Fatal("expected empty bucket to fail")
	}
}

func loadConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("vidmetrics-api", mapLookup(values))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v (%s)", err, rr.Body.String())
	}
	return body
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
