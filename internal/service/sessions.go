// Path: internal/service/sessions.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-search/internal/domain"
	"media-search/internal/events"
	"media-search/internal/logging"
	"media-search/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrSessionNotFound is returned when a session id is neither live nor stored.
var ErrSessionNotFound = errors.New("session not found")

const persistTimeout = 5 * time.Second

// ManagerConfig holds the defaults for new sessions.
type ManagerConfig struct {
	DefaultQuery domain.Query
	PageSizes    []int
	// IdleTTL evicts live sessions unused for this long. Zero disables eviction.
	IdleTTL time.Duration
	// StoreTTL drops stored sessions not updated for this long, when the
	// storage supports it. Zero keeps them forever.
	StoreTTL time.Duration
}

type session struct {
	ctrl     *Controller
	lastUsed time.Time
}

// Manager is the central orchestrator of search sessions. It creates
// controllers, restores them from storage and evicts idle ones.
type Manager struct {
	cfg      ManagerConfig
	searcher Searcher
	storage  SessionStorage
	broker   *events.Broker
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	saves    sync.WaitGroup
}

// NewManager creates a new session manager. storage and broker may be nil.
func NewManager(cfg ManagerConfig, searcher Searcher, storage SessionStorage, broker *events.Broker) *Manager {
	return &Manager{
		cfg:      cfg,
		searcher: searcher,
		storage:  storage,
		broker:   broker,
		logger:   logging.Component("sessions"),
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Create starts a new session with the default query and loads its first page.
func (m *Manager) Create(ctx context.Context) (*Controller, error) {
	id := uuid.New().String()
	ctrl := m.newController(id, m.cfg.DefaultQuery, nil)

	m.mu.Lock()
	m.sessions[id] = &session{ctrl: ctrl, lastUsed: m.now()}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	logging.Ctx(ctx).Info().Str("session", id).Msg("session created")
	ctrl.Mount()
	return ctrl, nil
}

// Get returns a live session or restores it from storage. A restored
// session re-fetches the page its history points at.
func (m *Manager) Get(ctx context.Context, id string) (*Controller, error) {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		s.lastUsed = m.now()
		m.mu.Unlock()
		return s.ctrl, nil
	}
	m.mu.Unlock()

	if m.storage == nil {
		return nil, ErrSessionNotFound
	}
	doc, err := m.storage.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if doc == nil {
		return nil, ErrSessionNotFound
	}

	ctrl := m.newController(id, doc.Query, doc.History)

	m.mu.Lock()
	// Another request may have restored it meanwhile.
	if s, ok := m.sessions[id]; ok {
		s.lastUsed = m.now()
		m.mu.Unlock()
		ctrl.Close()
		return s.ctrl, nil
	}
	m.sessions[id] = &session{ctrl: ctrl, lastUsed: m.now()}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	logging.Ctx(ctx).Info().Str("session", id).Int("page", len(doc.History)-1).Msg("session restored")
	ctrl.Mount()
	return ctrl, nil
}

// Delete closes the session and removes it from storage.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if ok {
		s.ctrl.Close()
		m.publishClosed(id)
	}
	if m.storage != nil {
		if err := m.storage.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", id, err)
		}
	} else if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Sweep closes live sessions idle for longer than IdleTTL. Their stored
// state is kept so Get can restore them later. It returns the number evicted.
func (m *Manager) Sweep() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	var evicted []*session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			evicted = append(evicted, s)
			delete(m.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range evicted {
		s.ctrl.Close()
		m.publishClosed(s.ctrl.ID())
	}
	if len(evicted) > 0 {
		m.logger.Info().Int("evicted", len(evicted)).Msg("idle sessions evicted")
	}
	return len(evicted)
}

// Purge removes stored sessions older than StoreTTL.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	store, ok := m.storage.(ExpiringStorage)
	if !ok || m.cfg.StoreTTL <= 0 {
		return 0, nil
	}
	n, err := store.DeleteOlderThan(ctx, m.now().Add(-m.cfg.StoreTTL))
	if err != nil {
		return 0, fmt.Errorf("purging stored sessions: %w", err)
	}
	if n > 0 {
		m.logger.Info().Int64("deleted", n).Msg("expired sessions purged")
	}
	return n, nil
}

// Run sweeps idle sessions and purges expired stored ones periodically
// until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.IdleTTL / 2
	if interval <= 0 || (m.cfg.StoreTTL > 0 && m.cfg.StoreTTL/2 < interval) {
		interval = m.cfg.StoreTTL / 2
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
			if _, err := m.Purge(ctx); err != nil {
				m.logger.Warn().Err(err).Msg("session purge failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every live session and waits for pending saves.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	live := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		live = append(live, s)
		delete(m.sessions, id)
	}
	metrics.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range live {
		s.ctrl.Close()
	}
	m.saves.Wait()
}

func (m *Manager) newController(id string, q domain.Query, history []domain.Cursor) *Controller {
	opts := []Option{
		WithQuery(q),
		WithHistory(history),
		WithPageSizes(m.cfg.PageSizes),
		WithCommitHook(m.persist),
	}
	if m.broker != nil {
		opts = append(opts, WithPublisher(m.broker))
	}
	return NewController(id, m.searcher, opts...)
}

// persist saves the committed state of a session.
func (m *Manager) persist(doc domain.SessionDocument) {
	if m.storage == nil {
		return
	}
	m.saves.Add(1)
	defer m.saves.Done()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.storage.Save(ctx, doc); err != nil {
		m.logger.Warn().Err(err).Str("session", doc.ID).Msg("failed to persist session")
	}
}

func (m *Manager) publishClosed(id string) {
	if m.broker != nil {
		m.broker.Publish(events.TopicSessionClosed, id)
	}
}
