package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nlquery/nlquery/internal/auth"
	"github.com/nlquery/nlquery/internal/config"
)

func TestHealthEndpoint(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{})

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{})

	h := NewHandler(cfg, Dependencies{
		Readiness: func(context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "dependency down") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestMetricsEndpointExposesGenerateCounter(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{})

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/generate_sql", strings.NewReader(`{}`)))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "nlquery_generate_requests_total") {
		t.Fatal("expected generate counter in metrics output")
	}
}

func TestGenerateRouteRequiresAuthWhenConfigured(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"NLQUERY_AUTH_REQUIRED": "true",
	})
	validator, err := auth.NewStaticAPIKeyValidator("k1:console")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator, nil),
		Translator:     &fakeTranslator{sql: "SELECT 1"},
		Executor:       &fakeExecutor{},
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodPost, "/generate_sql", strings.NewReader(`{"query":"q"}`)))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodPost, "/generate_sql", strings.NewReader(`{"query":"q"}`))
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d body=%s", authResp.Code, authResp.Body.String())
	}

	healthResp := httptest.NewRecorder()
	h.ServeHTTP(healthResp, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if healthResp.Code != http.StatusOK {
		t.Fatalf("health status = %d", healthResp.Code)
	}
}

func TestGenerateRouteFailsClosedWithoutAuthMiddleware(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"NLQUERY_AUTH_REQUIRED": "true",
	})
	h := NewHandler(cfg, Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/generate_sql", strings.NewReader(`{"query":"q"}`)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCORSPreflightAndHeaders(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{})
	h := NewHandler(cfg, Dependencies{})

	preflight := httptest.NewRequest(http.MethodOptions, "/generate_sql", nil)
	preflight.Header.Set("Origin", "http://localhost:8080")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, preflight)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Headers"), "Content-Type") {
		t.Fatalf("allow headers = %q", rr.Header().Get("Access-Control-Allow-Headers"))
	}

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if health.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header on simple request")
	}
}

func TestCORSMiddlewareOriginList(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CORSMiddleware("http://a.example, http://b.example")(next)

	allowed := httptest.NewRequest(http.MethodGet, "/", nil)
	allowed.Header.Set("Origin", "http://b.example")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, allowed)
	if rr.Header().Get("Access-Control-Allow-Origin") != "http://b.example" {
		t.Fatalf("allow origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}

	denied := httptest.NewRequest(http.MethodGet, "/", nil)
	denied.Header.Set("Origin", "http://c.example")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, denied)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unexpected allow origin for unknown origin")
	}

	disabled := CORSMiddleware("")(next)
	rr = httptest.NewRecorder()
	disabled.ServeHTTP(rr, allowed)
	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("expected no CORS headers when disabled")
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

func TestCheckDatabaseAndObjectStore(t *testing.T) {
	if err := CheckDatabase(nil)(context.Background()); err == nil {
		t.Fatal("expected error for missing database")
	}
	if err := CheckDatabase(pingerFunc(func(context.Context) error { return nil }))(context.Background()); err != nil {
		t.Fatalf("CheckDatabase() error = %v", err)
	}
	err := CheckObjectStore(pingerFunc(func(context.Context) error { return errors.New("refused") }))(context.Background())
	if err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("CheckObjectStore() error = %v", err)
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func loadTestConfig(t *testing.T, values map[string]string) config.Config {
	t.Helper()
	cfg, err := config.Load("nlquery-api", mapLookup(values))
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
