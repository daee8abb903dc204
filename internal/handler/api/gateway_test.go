package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"SolGate/internal/domain/models"
	"SolGate/internal/ingest"
	"SolGate/internal/publish"
	"SolGate/internal/registry"
	"SolGate/internal/router"
	svccache "SolGate/internal/service/cache"
	"SolGate/internal/usage"
	"SolGate/internal/usecase"
	pkgcache "SolGate/pkg/cache"
	"SolGate/pkg/config"
	"SolGate/pkg/logger"
)

const hookToken = "hook-secret"

type nopMetrics struct{}

func (nopMetrics) RecordRPCCall(string, string, string) {}
func (nopMetrics) RecordRPCLatency(string, float64)     {}
func (nopMetrics) RecordFailover(string, string)        {}
func (nopMetrics) RecordCacheHit(string)                {}
func (nopMetrics) RecordCacheMiss(string)               {}
func (nopMetrics) RecordBatchDispatch(string, int)      {}
func (nopMetrics) RecordWebhook(string, string)         {}
func (nopMetrics) RecordSignal(string)                  {}
func (nopMetrics) RecordPublish(string, string)         {}
func (nopMetrics) RecordError(string)                   {}

// testHarness wires a full handler against one fake upstream RPC server.
type testHarness struct {
	e        *echo.Echo
	upstream *httptest.Server
	calls    int32
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	h := &testHarness{}

	h.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&h.calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":123}`))
	}))
	t.Cleanup(h.upstream.Close)

	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	m := nopMetrics{}

	reg, err := registry.FromConfig([]config.ProviderConfig{
		{Name: "helius", MainnetURL: h.upstream.URL, Auth: "none", MonthlyQuota: 100000, Priority: 9, Enabled: true},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	tracker := usage.NewTracker(reg, nil, lgr, 0.99, time.Hour)
	client := router.NewRPCClient(models.NetworkMainnet, 5*time.Second)
	rtr := router.New(reg, tracker, client, m, lgr, router.Options{Policy: models.PolicyCostOptimized})

	store := svccache.NewStore(pkgcache.NewMemoryCache(), m, lgr, svccache.TTLs{
		Hot: 5 * time.Second, Warm: 30 * time.Second, Cold: 5 * time.Minute, Frozen: 24 * time.Hour,
	})
	gw := usecase.NewGateway(store, rtr, m, lgr, 100, 20*time.Millisecond)

	extractor := ingest.NewExtractor(ingest.ExtractorConfig{
		LargeAmount: 10000, StrengthScale: 100000, HighFee: 100000, MintSeenTTL: time.Hour,
	})
	ingestor := ingest.NewIngestor(hookToken, 120, extractor, m, lgr)
	publisher := publish.New(m, lgr)

	handler := NewGatewayHandler(lgr, gw, ingestor, publisher, reg,
		models.PolicyCostOptimized, models.NetworkMainnet, false)

	h.e = echo.New()
	handler.RegisterRoutes(h.e)
	return h
}

func (h *testHarness) do(method, path, auth, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func TestRPCProxiesUpstream(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/rpc", "", `{"method":"getSlot"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"result":123`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if atomic.LoadInt32(&h.calls) != 1 {
		t.Fatalf("upstream calls = %d, want 1", h.calls)
	}
}

func TestRPCSecondCallServedFromCache(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 2; i++ {
		rec := h.do(http.MethodPost, "/rpc", "", `{"method":"getSlot"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: status = %d", i, rec.Code)
		}
	}
	if atomic.LoadInt32(&h.calls) != 1 {
		t.Fatalf("upstream calls = %d, want 1 (second served from cache)", h.calls)
	}
}

func TestRPCRejectsMissingMethod(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/rpc", "", `{"params":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookRequiresAuth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/webhooks/helius", "", `{"events":[]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestWebhookWrongTokenRejectedOnTheWire(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/webhooks/helius", "Bearer wrong", `{"events":[]}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("transport status = %d, want 401", rec.Code)
	}
	// Redelivery keys off the wire status, so the envelope must not hide a
	// different code behind a 200.
	if !strings.Contains(rec.Body.String(), `"status":401`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestWebhookProcessesDelivery(t *testing.T) {
	h := newHarness(t)

	body := `{"transaction_types":["TOKEN_MINT"],` +
		`"events":[{"transaction":{"signature":"sig1","fee":5000},` +
		`"token_transfers":[{"from_user_account":"a","to_user_account":"b","token_amount":50000,"mint":"MintZ"}]}]}`

	rec := h.do(http.MethodPost, "/webhooks/helius", "Bearer "+hookToken, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := rec.Body.String()
	if !strings.Contains(got, `"events_seen":1`) || !strings.Contains(got, `"signals":2`) {
		t.Fatalf("body = %s", got)
	}
}

func TestWebhookMalformedRejectedWithoutAck(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/webhooks/helius", "Bearer "+hookToken, `{nope`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestWebhookMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	if rec := h.do(http.MethodPost, "/webhooks/helius", "Bearer "+hookToken, `{"events":[]}`); rec.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", rec.Code)
	}

	rec := h.do(http.MethodGet, "/webhooks/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"webhooks_received":1`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestProvidersEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/providers", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := rec.Body.String()
	if !strings.Contains(got, `"helius"`) || !strings.Contains(got, `"cost_optimized"`) {
		t.Fatalf("body = %s", got)
	}
}

func TestUsageEndpoint(t *testing.T) {
	h := newHarness(t)

	if rec := h.do(http.MethodPost, "/rpc", "", `{"method":"getSlot"}`); rec.Code != http.StatusOK {
		t.Fatalf("rpc status = %d", rec.Code)
	}

	rec := h.do(http.MethodGet, "/api/usage", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := rec.Body.String()
	if !strings.Contains(got, `"calls":1`) || !strings.Contains(got, `"quota":100000`) {
		t.Fatalf("body = %s", got)
	}
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"providers":1`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
