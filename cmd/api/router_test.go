package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bakery/internal/app"
	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/config"
	"github.com/noah-isme/backend-bakery/internal/storefront"
	"github.com/noah-isme/backend-bakery/internal/submission"
)

type recordingSubmitter struct {
	got []submission.Payload
}

func (r *recordingSubmitter) Submit(_ context.Context, p submission.Payload) (string, error) {
	r.got = append(r.got, p)
	return p.SubmissionID, nil
}

func testRouter(t *testing.T, cfg *config.Config) (http.Handler, *recordingSubmitter) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	deps := &app.Dependencies{
		Redis:           client,
		Validator:       storefront.NewValidator(),
		Catalog:         catalog.Default(),
		MetricsRegistry: prometheus.NewRegistry(),
	}
	sessions := newSessions(cfg, deps, zerolog.Nop())
	t.Cleanup(sessions.Close)
	sub := &recordingSubmitter{}
	return newRouter(cfg, deps, sessions, sub, zerolog.Nop()), sub
}

func baseConfig() *config.Config {
	return &config.Config{
		AppEnv:                 "test",
		CartKeyPrefix:          "cart:",
		CartTTL:                time.Hour,
		CartWriteTimeout:       time.Second,
		LoafPairDiscount:       400,
		CurrencyCode:           "USD",
		CheckoutLockTTL:        time.Second,
		LockRetryBackoff:       5 * time.Millisecond,
		LockMaxWait:            50 * time.Millisecond,
		IdempotencyTTL:         time.Hour,
		RateLimitCartMax:       100,
		RateLimitCartWindow:    time.Minute,
		BodyLimitBytes:         1 << 10,
		SecurityHeadersEnabled: true,
		MetricsNamespace:       "bakery",
	}
}

func send(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesHealthCatalogAndMetrics(t *testing.T) {
	h, _ := testRouter(t, baseConfig())

	rec := send(h, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = send(h, http.MethodGet, "/api/v1/catalog/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sourdough-loaf")
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = send(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "bakery_http_requests_total")
}

func TestRouterCheckoutHonoursIdempotencyKey(t *testing.T) {
	h, sub := testRouter(t, baseConfig())

	for i := 0; i < 2; i++ {
		rec := send(h, http.MethodPost, "/api/v1/carts/sess-1/items", `{"productId":"sourdough-loaf"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	key := map[string]string{"Idempotency-Key": "abc"}
	rec := send(h, http.MethodPost, "/api/v1/carts/sess-1/checkout", "", key)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, sub.got, 1)
	require.EqualValues(t, 2000, sub.got[0].Pricing.Total)

	rec = send(h, http.MethodPost, "/api/v1/carts/sess-1/checkout", "", key)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IDEMPOTENT_REPLAY")
	require.Len(t, sub.got, 1)
}

func TestRouterRateLimitsCartMutations(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimitCartMax = 2
	h, _ := testRouter(t, cfg)

	for i := 0; i < 2; i++ {
		rec := send(h, http.MethodPost, "/api/v1/carts/sess-2/items", `{"productId":"rye-loaf"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := send(h, http.MethodPost, "/api/v1/carts/sess-2/items", `{"productId":"rye-loaf"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = send(h, http.MethodGet, "/api/v1/carts/sess-2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	cfg := baseConfig()
	cfg.BodyLimitBytes = 16
	h, _ := testRouter(t, cfg)

	rec := send(h, http.MethodPost, "/api/v1/boxes/quote", `{"productId":"dozen-bagels","toppingIds":["cheddar"]}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
