package cart_test

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bakery/internal/cart"
	"github.com/noah-isme/backend-bakery/internal/common"
)

func TestManagerRejectsInvalidSessionIDs(t *testing.T) {
	m := cart.NewManager(cart.ManagerConfig{Logger: zerolog.Nop()})
	t.Cleanup(m.Close)

	for _, id := range []string{"", "has space", "slash/id", strings.Repeat("a", 129)} {
		_, err := m.Session(context.Background(), id)
		var appErr *common.AppError
		require.ErrorAs(t, err, &appErr, id)
		require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	}
}

func TestManagerReusesStorePerSession(t *testing.T) {
	_, client := newRedis(t)
	m := cart.NewManager(cart.ManagerConfig{
		Storage:   cart.NewRedisStorage(client, 0),
		KeyPrefix: "bakery:cart:",
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(m.Close)

	var wg sync.WaitGroup
	stores := make([]*cart.Store, 8)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.Session(context.Background(), "session-1")
			require.NoError(t, err)
			stores[i] = s
		}(i)
	}
	wg.Wait()
	for _, s := range stores[1:] {
		require.Same(t, stores[0], s)
	}

	other, err := m.Session(context.Background(), "session-2")
	require.NoError(t, err)
	require.NotSame(t, stores[0], other)
	require.Equal(t, "bakery:cart:session-2", m.Key("session-2"))
}

func TestManagerCloseFlushesStores(t *testing.T) {
	mr, client := newRedis(t)
	m := cart.NewManager(cart.ManagerConfig{
		Storage: cart.NewRedisStorage(client, 0),
		Logger:  zerolog.Nop(),
	})

	s, err := m.Session(context.Background(), "flush_me")
	require.NoError(t, err)
	_, err = s.AddSimple("dozen-cookies")
	require.NoError(t, err)
	m.Close()

	require.True(t, mr.Exists("cart:flush_me"))

	m2 := cart.NewManager(cart.ManagerConfig{Storage: cart.NewRedisStorage(client, 0), Logger: zerolog.Nop()})
	t.Cleanup(m2.Close)
	reloaded, err := m2.Session(context.Background(), "flush_me")
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestManagerEvictsIdleSessions(t *testing.T) {
	_, client := newRedis(t)
	clock := &fakeClock{now: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)}
	m := cart.NewManager(cart.ManagerConfig{
		Storage:       cart.NewRedisStorage(client, 0),
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Hour,
		Logger:        zerolog.Nop(),
		Now:           clock.Now,
	})
	t.Cleanup(m.Close)

	for i := 0; i < 50; i++ {
		_, err := m.Session(context.Background(), fmt.Sprintf("idle-%d", i))
		require.NoError(t, err)
	}
	s, err := m.Session(context.Background(), "busy")
	require.NoError(t, err)
	_, err = s.AddSimple("rye-loaf")
	require.NoError(t, err)
	require.Equal(t, 51, m.Len())

	clock.Advance(20 * time.Minute)
	_, err = m.Session(context.Background(), "busy")
	require.NoError(t, err)
	require.Zero(t, m.Evict(clock.Now()))

	clock.Advance(15 * time.Minute)
	require.Equal(t, 50, m.Evict(clock.Now()))
	require.Equal(t, 1, m.Len())

	clock.Advance(30 * time.Minute)
	require.Equal(t, 1, m.Evict(clock.Now()))
	require.Zero(t, m.Len())

	reopened, err := m.Session(context.Background(), "busy")
	require.NoError(t, err)
	require.NotSame(t, s, reopened)
	require.Equal(t, 1, reopened.Len())
	require.Equal(t, "rye-loaf", reopened.Items()[0].ProductID)
}

func TestManagerWithoutIdleTTLKeepsSessions(t *testing.T) {
	m := cart.NewManager(cart.ManagerConfig{Logger: zerolog.Nop()})
	t.Cleanup(m.Close)

	_, err := m.Session(context.Background(), "kept")
	require.NoError(t, err)
	require.Zero(t, m.Evict(time.Now().Add(24*time.Hour)))
	require.Equal(t, 1, m.Len())
}

func TestManagerSnapshotDoesNotOpenSessions(t *testing.T) {
	_, client := newRedis(t)
	storage := cart.NewRedisStorage(client, 0)
	m := cart.NewManager(cart.ManagerConfig{Storage: storage, Logger: zerolog.Nop()})
	t.Cleanup(m.Close)

	for i := 0; i < 100; i++ {
		items, err := m.Snapshot(context.Background(), fmt.Sprintf("reader-%d", i))
		require.NoError(t, err)
		require.Empty(t, items)
	}
	require.Zero(t, m.Len())

	s, err := m.Session(context.Background(), "writer")
	require.NoError(t, err)
	_, err = s.AddSimple("dozen-cookies")
	require.NoError(t, err)
	items, err := m.Snapshot(context.Background(), "writer")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, m.Len())

	_, err = m.Snapshot(context.Background(), "bad id")
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestManagerSnapshotReadsStoredCart(t *testing.T) {
	_, client := newRedis(t)
	storage := cart.NewRedisStorage(client, 0)
	first := cart.NewManager(cart.ManagerConfig{Storage: storage, Logger: zerolog.Nop()})
	s, err := first.Session(context.Background(), "stored")
	require.NoError(t, err)
	_, err = s.AddSimple("sourdough-loaf")
	require.NoError(t, err)
	first.Close()

	second := cart.NewManager(cart.ManagerConfig{Storage: storage, Logger: zerolog.Nop()})
	t.Cleanup(second.Close)
	items, err := second.Snapshot(context.Background(), "stored")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "sourdough-loaf", items[0].ProductID)
	require.Zero(t, second.Len())
}
