package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"mimic-assistant/internal/domain"
)

var (
	ErrSessionNotFound = errors.New("conversation: session not found")
	ErrPersist         = errors.New("conversation: persist turn")
)

// Store persists completed turns so a session survives process restarts.
// LoadLog returns an empty log and no error for unknown conversations.
type Store interface {
	LoadLog(ctx context.Context, conversationID string) ([]domain.Message, error)
	SaveTurn(ctx context.Context, turn domain.CompletedTurn) error
}

// Result is what a submit hands back to the transport layer.
type Result struct {
	Reply    domain.Message
	Snapshot Snapshot
}

const (
	DefaultCacheSize = 1024
	DefaultIdleTTL   = time.Hour
)

// Manager is the registry of live sessions, keyed by conversation ID. The
// registry is a bounded LRU cache; sessions idle for longer than the idle TTL
// are dropped and rebuilt from the store on next use.
type Manager struct {
	dispatcher  Dispatcher
	store       Store
	logger      *slog.Logger
	sessionOpts []SessionOption
	cacheSize   int
	idleTTL     time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions *lru.Cache[string, *cacheEntry]
}

type cacheEntry struct {
	session *Session
	touched time.Time
}

type ManagerOption func(*Manager)

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithSessionOptions(opts ...SessionOption) ManagerOption {
	return func(m *Manager) {
		m.sessionOpts = append(m.sessionOpts, opts...)
	}
}

// WithCacheSize bounds the number of live sessions kept in memory.
func WithCacheSize(n int) ManagerOption {
	return func(m *Manager) {
		m.cacheSize = n
	}
}

// WithIdleTTL sets how long an untouched session stays cached. Zero keeps
// sessions until the LRU bound evicts them.
func WithIdleTTL(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idleTTL = d
	}
}

func NewManager(d Dispatcher, s Store, opts ...ManagerOption) (*Manager, error) {
	if d == nil {
		return nil, errors.New("conversation: dispatcher must not be nil")
	}
	if s == nil {
		return nil, errors.New("conversation: store must not be nil")
	}
	m := &Manager{
		dispatcher: d,
		store:      s,
		logger:     slog.Default(),
		cacheSize:  DefaultCacheSize,
		idleTTL:    DefaultIdleTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idleTTL < 0 {
		return nil, errors.New("conversation: idle ttl must not be negative")
	}
	sessions, err := lru.New[string, *cacheEntry](m.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("conversation: session cache: %w", err)
	}
	m.sessions = sessions
	return m, nil
}

// Open returns the live session for id, restoring it from the store when it
// is not in memory. An empty id starts a new conversation. A cached session
// is rebuilt when the store holds more turns than it does, which happens when
// another process served the conversation in between.
func (m *Manager) Open(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = newUUID()
	}
	log, err := m.store.LoadLog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("conversation: load %s: %w", id, err)
	}
	return m.open(id, log)
}

func (m *Manager) open(id string, log []domain.Message) (*Session, error) {
	cached := m.lookup(id)
	if cached != nil && !m.isBehind(cached, log) {
		return cached, nil
	}

	restored, err := RestoreSession(id, m.dispatcher, log, m.sessionOpts...)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		m.logger.Info("conversation: refreshing stale session", "conversationId", id,
			"cachedTurns", cached.Turns(), "storedTurns", countUserTurns(log))
	}
	return m.install(id, restored, cached), nil
}

// isBehind reports whether the store has turns the cached session lacks. A
// session with a reply in flight is never replaced; the submit it is serving
// is answered from it.
func (m *Manager) isBehind(s *Session, stored []domain.Message) bool {
	return !s.Pending() && countUserTurns(stored) > s.Turns()
}

// Get returns an existing session, from memory or the store, and
// ErrSessionNotFound when neither knows id.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrSessionNotFound
	}
	log, err := m.store.LoadLog(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("conversation: load %s: %w", id, err)
	}
	if len(log) == 0 && m.lookup(id) == nil {
		return nil, ErrSessionNotFound
	}
	return m.open(id, log)
}

// Submit routes text to the session for id and persists the exchange. A
// persistence failure is returned wrapped in ErrPersist alongside a valid
// Result: the visitor still sees the reply. When the store reports
// domain.ErrTurnConflict the session is evicted so the next call starts from
// the stored transcript.
func (m *Manager) Submit(ctx context.Context, id, text string) (Result, error) {
	s, err := m.Open(ctx, id)
	if err != nil {
		return Result{}, err
	}
	ex, err := s.Submit(ctx, text)
	if err != nil {
		return Result{}, err
	}

	res := Result{Reply: ex.Reply, Snapshot: s.Snapshot()}
	saveErr := m.store.SaveTurn(ctx, domain.CompletedTurn{
		ConversationID: s.ID(),
		User:           ex.User,
		Reply:          ex.Reply,
		Privileged:     ex.Privileged,
		Turns:          ex.Turns,
	})
	if saveErr != nil {
		if errors.Is(saveErr, domain.ErrTurnConflict) {
			m.evict(s.ID(), s)
		}
		m.logger.Error("conversation: failed to persist turn", "conversationId", s.ID(), "turn", ex.Turns, "err", saveErr)
		return res, fmt.Errorf("%w: %w", ErrPersist, saveErr)
	}
	return res, nil
}

// lookup returns the cached session for id, dropping it when it has been idle
// past the TTL.
func (m *Manager) lookup(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions.Get(id)
	if !ok {
		return nil
	}
	now := m.now()
	if m.idleTTL > 0 && now.Sub(e.touched) > m.idleTTL && !e.session.Pending() {
		m.sessions.Remove(id)
		return nil
	}
	e.touched = now
	return e.session
}

// install caches s under id unless another session got there first. prev is
// the stale session s replaces, if any.
func (m *Manager) install(id string, s, prev *Session) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions.Peek(id); ok && e.session != prev {
		e.touched = m.now()
		return e.session
	}
	m.sessions.Add(id, &cacheEntry{session: s, touched: m.now()})
	return s
}

func (m *Manager) evict(id string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions.Peek(id); ok && e.session == s {
		m.sessions.Remove(id)
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
