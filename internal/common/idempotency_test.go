package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestIdemBlocksReplayOfSuccessfulRequest(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	calls := 0
	status := http.StatusAccepted
	h := Idem{R: client, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	send := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/s/checkout", nil)
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusAccepted, send("k1"))
	require.Equal(t, http.StatusConflict, send("k1"))
	require.Equal(t, 1, calls)

	status = http.StatusConflict
	require.Equal(t, http.StatusConflict, send("k2"))
	status = http.StatusAccepted
	require.Equal(t, http.StatusAccepted, send("k2"), "failed attempts release the key")
	require.Equal(t, 3, calls)

	require.Equal(t, http.StatusAccepted, send(""))
	require.Equal(t, http.StatusAccepted, send(""))
	require.Equal(t, 5, calls)
}

func TestIdemReportsStoreErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer func() { _ = client.Close() }()
	h := Idem{R: client}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts/s/checkout", nil)
	req.Header.Set("Idempotency-Key", "k")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
