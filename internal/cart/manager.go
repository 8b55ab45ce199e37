package cart

import (
	"context"
	"net/http"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/backend-bakery/internal/catalog"
	"github.com/noah-isme/backend-bakery/internal/common"
	"github.com/noah-isme/backend-bakery/internal/obs"
	"github.com/noah-isme/backend-bakery/internal/pricing"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ManagerConfig wires the dependencies shared by every session store.
// IdleTTL closes and drops a store nobody has used for that long; zero keeps
// stores open until Close.
type ManagerConfig struct {
	Catalog       catalog.Lookup
	Storage       Storage
	KeyPrefix     string
	Discount      pricing.PairDiscount
	WriteTimeout  time.Duration
	IdleTTL       time.Duration
	SweepInterval time.Duration
	Logger        zerolog.Logger
	NewID         func() string
	Now           func() time.Time
}

type session struct {
	store    *Store
	lastUsed atomic.Int64
}

func (s *session) touch(now time.Time) { s.lastUsed.Store(now.UnixNano()) }

// Manager hands out one Store per session and keeps it open for reuse until
// it goes idle. An evicted session is reloaded from storage on its next use,
// so the in-memory store is only authoritative while it is open.
type Manager struct {
	cfg      ManagerConfig
	mu       sync.RWMutex
	sessions map[string]*session
	group    singleflight.Group
	stop     chan struct{}
	stopOnce sync.Once
	sweeper  sync.WaitGroup
}

// NewManager constructs a Manager and, when IdleTTL is set, starts the
// background sweep that evicts idle sessions.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "cart:"
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Manager{cfg: cfg, sessions: make(map[string]*session), stop: make(chan struct{})}
	if cfg.IdleTTL > 0 {
		interval := cfg.SweepInterval
		if interval <= 0 {
			interval = min(cfg.IdleTTL, time.Minute)
		}
		m.sweeper.Add(1)
		go m.sweep(interval)
	}
	return m
}

// ValidSessionID reports whether id can name a cart.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// Key returns the storage key for a session's cart.
func (m *Manager) Key(sessionID string) string {
	return m.cfg.KeyPrefix + sessionID
}

func invalidSession() error {
	return common.NewAppError(common.CodeBadRequest, "invalid session id", http.StatusBadRequest, nil)
}

func (m *Manager) lookup(sessionID string) (*session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	return sess, ok
}

// Session returns the store for sessionID, loading it from storage on first
// use. Concurrent first requests for the same session share one load.
func (m *Manager) Session(ctx context.Context, sessionID string) (*Store, error) {
	if !ValidSessionID(sessionID) {
		return nil, invalidSession()
	}
	if sess, ok := m.lookup(sessionID); ok {
		sess.touch(m.cfg.Now())
		return sess.store, nil
	}

	v, _, _ := m.group.Do(sessionID, func() (any, error) {
		if existing, ok := m.lookup(sessionID); ok {
			return existing, nil
		}
		sess := &session{store: Open(context.WithoutCancel(ctx), Options{
			Catalog:      m.cfg.Catalog,
			Storage:      m.cfg.Storage,
			Key:          m.Key(sessionID),
			Discount:     m.cfg.Discount,
			WriteTimeout: m.cfg.WriteTimeout,
			Logger:       m.cfg.Logger.With().Str("session_id", sessionID).Logger(),
			NewID:        m.cfg.NewID,
		})}
		sess.touch(m.cfg.Now())
		m.mu.Lock()
		m.sessions[sessionID] = sess
		m.mu.Unlock()
		return sess, nil
	})
	sess := v.(*session)
	sess.touch(m.cfg.Now())
	return sess.store, nil
}

// Snapshot returns the session's line items without opening a store. An open
// store answers directly; otherwise the cart is read from storage.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) ([]LineItem, error) {
	if !ValidSessionID(sessionID) {
		return nil, invalidSession()
	}
	if sess, ok := m.lookup(sessionID); ok {
		sess.touch(m.cfg.Now())
		return sess.store.Items(), nil
	}
	items, err := loadItems(ctx, m.cfg.Storage, m.Key(sessionID))
	if err != nil {
		obs.ObserveCartStorageFailure("load")
		m.cfg.Logger.Warn().Err(err).Str("session_id", sessionID).Msg("cart read as empty")
		return []LineItem{}, nil
	}
	if items == nil {
		items = []LineItem{}
	}
	return items, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Evict closes and drops every session idle for at least IdleTTL as of now
// and returns how many were dropped. Closing flushes pending writes.
func (m *Manager) Evict(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.cfg.IdleTTL).UnixNano()
	var idle []*session
	m.mu.Lock()
	for id, sess := range m.sessions {
		if sess.lastUsed.Load() <= cutoff {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, sess := range idle {
		sess.store.Close()
	}
	if len(idle) > 0 {
		m.cfg.Logger.Debug().Int("evicted", len(idle)).Msg("idle carts closed")
	}
	return len(idle)
}

func (m *Manager) sweep(interval time.Duration) {
	defer m.sweeper.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Evict(m.cfg.Now())
		}
	}
}

// Close stops the sweep and flushes and closes every open store.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.sweeper.Wait()
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()
	for _, sess := range sessions {
		sess.store.Close()
	}
}
