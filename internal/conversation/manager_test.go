package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mimic-assistant/internal/domain"
	"mimic-assistant/internal/repository/memory"
)

type fakeStore struct {
	mu      sync.Mutex
	logs    map[string][]domain.Message
	saved   []domain.CompletedTurn
	loadErr error
	saveErr error
	loads   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{logs: make(map[string][]domain.Message)}
}

func (f *fakeStore) LoadLog(_ context.Context, id string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return domain.CloneLog(f.logs[id]), nil
}

func (f *fakeStore) SaveTurn(_ context.Context, turn domain.CompletedTurn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, turn)
	return f.saveErr
}

func newTestManager(t *testing.T, d Dispatcher, s Store) *Manager {
	t.Helper()
	m, err := NewManager(d, s, WithSessionOptions(WithClock(clock)))
	require.NoError(t, err)
	return m
}

func TestNewManager_Validates(t *testing.T) {
	_, err := NewManager(nil, newFakeStore())
	require.Error(t, err)

	_, err = NewManager(&fakeDispatcher{}, nil)
	require.Error(t, err)

	_, err = NewManager(&fakeDispatcher{}, newFakeStore(), WithCacheSize(0))
	require.Error(t, err)

	_, err = NewManager(&fakeDispatcher{}, newFakeStore(), WithIdleTTL(-time.Second))
	require.Error(t, err)
}

func TestManager_Open_GeneratesID(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "generated-id" }
	t.Cleanup(func() { newUUID = orig })

	m := newTestManager(t, &fakeDispatcher{}, newFakeStore())
	s, err := m.Open(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "generated-id", s.ID())
}

func TestManager_Open_ReusesLiveSession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, &fakeDispatcher{}, store)

	a, err := m.Open(context.Background(), "conv-1")
	require.NoError(t, err)
	b, err := m.Open(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, 2, store.loads)
}

func TestManager_Submit_PersistsTurn(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, &fakeDispatcher{reply: "Hi."}, store)

	res, err := m.Submit(context.Background(), "conv-1", "hello")
	require.NoError(t, err)
	require.Equal(t, "Hi.", res.Reply.Content)
	require.Equal(t, "conv-1", res.Snapshot.ID)
	require.Len(t, res.Snapshot.Log, 3)
	require.False(t, res.Snapshot.Pending)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	require.Equal(t, "conv-1", saved.ConversationID)
	require.Equal(t, "hello", saved.User.Content)
	require.Equal(t, "Hi.", saved.Reply.Content)
	require.Equal(t, 1, saved.Turns)
	require.False(t, saved.Privileged)
}

func TestManager_Submit_RestoredSessionStaysPrivileged(t *testing.T) {
	store := newFakeStore()
	store.logs["conv-7"] = []domain.Message{
		domain.NewMessage(domain.RoleAssistant, Greeting, fixedNow),
		domain.NewMessage(domain.RoleUser, "I always come back", fixedNow),
		domain.NewMessage(domain.RoleAssistant, "Welcome back, William.", fixedNow),
	}
	d := &fakeDispatcher{reply: "All systems nominal, Sir."}
	m := newTestManager(t, d, store)

	res, err := m.Submit(context.Background(), "conv-7", "status?")
	require.NoError(t, err)
	require.True(t, res.Snapshot.Privileged)
	require.True(t, d.lastCall(t).privileged)
	require.Equal(t, 2, store.saved[0].Turns)
	require.True(t, store.saved[0].Privileged)
}

func TestManager_Submit_RejectionsSkipPersistence(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, &fakeDispatcher{reply: "x"}, store)

	_, err := m.Submit(context.Background(), "conv-1", "   ")
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.Empty(t, store.saved)
}

func TestManager_Submit_PersistFailureStillReturnsReply(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("dynamodb down")
	m := newTestManager(t, &fakeDispatcher{reply: "Hi."}, store)

	res, err := m.Submit(context.Background(), "conv-1", "hello")
	require.ErrorIs(t, err, ErrPersist)
	require.ErrorContains(t, err, "dynamodb down")
	require.Equal(t, "Hi.", res.Reply.Content)
}

func TestManager_LoadFailure(t *testing.T) {
	store := newFakeStore()
	store.loadErr = errors.New("redis unreachable")
	m := newTestManager(t, &fakeDispatcher{}, store)

	_, err := m.Submit(context.Background(), "conv-1", "hello")
	require.ErrorContains(t, err, "redis unreachable")
}

func TestManager_Get(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, &fakeDispatcher{reply: "ok"}, store)

	_, err := m.Get(context.Background(), "")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Get(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrSessionNotFound)

	store.logs["stored"] = []domain.Message{domain.NewMessage(domain.RoleAssistant, Greeting, fixedNow)}
	s, err := m.Get(context.Background(), "stored")
	require.NoError(t, err)
	require.Equal(t, "stored", s.ID())

	_, err = m.Submit(context.Background(), "live", "hello")
	require.NoError(t, err)
	s, err = m.Get(context.Background(), "live")
	require.NoError(t, err)
	require.Len(t, s.Log(), 3)
}

func TestManager_Open_RefreshesSessionAdvancedElsewhere(t *testing.T) {
	store := memory.New()
	d := &fakeDispatcher{reply: "ok"}
	a := newTestManager(t, d, store)
	b := newTestManager(t, d, store)
	ctx := context.Background()

	_, err := a.Submit(ctx, "conv-1", "hello")
	require.NoError(t, err)
	res, err := b.Submit(ctx, "conv-1", "I always come back")
	require.NoError(t, err)
	require.True(t, res.Snapshot.Privileged)

	res, err = a.Submit(ctx, "conv-1", "status?")
	require.NoError(t, err)
	require.True(t, res.Snapshot.Privileged)
	require.True(t, d.lastCall(t).privileged)
	require.Len(t, res.Snapshot.Log, 7)

	log, err := store.LoadLog(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, log, 6)
	require.Equal(t, "status?", log[4].Content)
}

func TestManager_Submit_TurnConflictEvictsSession(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(t, &fakeDispatcher{reply: "Hi."}, store)
	ctx := context.Background()

	first, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)

	store.saveErr = fmt.Errorf("stored turn 1 already: %w", domain.ErrTurnConflict)
	_, err = m.Submit(ctx, "conv-1", "hello")
	require.ErrorIs(t, err, ErrPersist)
	require.ErrorIs(t, err, domain.ErrTurnConflict)

	store.saveErr = nil
	again, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)
	require.NotSame(t, first, again)
	require.Len(t, again.Log(), 1)
}

func TestManager_Open_PendingSessionIsNotReplaced(t *testing.T) {
	store := memory.New()
	d := &fakeDispatcher{reply: "ok", entered: make(chan struct{}), release: make(chan struct{})}
	m := newTestManager(t, d, store)
	ctx := context.Background()

	s, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "hello")
		done <- err
	}()
	<-d.entered

	require.NoError(t, store.SaveTurn(ctx, domain.CompletedTurn{
		ConversationID: "conv-1",
		User:           domain.NewMessage(domain.RoleUser, "from elsewhere", fixedNow),
		Reply:          domain.NewMessage(domain.RoleAssistant, "ok", fixedNow),
		Turns:          1,
	}))
	again, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)
	require.Same(t, s, again)

	close(d.release)
	require.NoError(t, <-done)
}

func TestManager_CacheIsBounded(t *testing.T) {
	store := newFakeStore()
	m, err := NewManager(&fakeDispatcher{}, store, WithCacheSize(2), WithSessionOptions(WithClock(clock)))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)
	_, err = m.Open(ctx, "conv-2")
	require.NoError(t, err)
	_, err = m.Open(ctx, "conv-3")
	require.NoError(t, err)
	require.Equal(t, 2, m.sessions.Len())

	again, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)
	require.NotSame(t, first, again)
}

func TestManager_IdleSessionsExpire(t *testing.T) {
	now := fixedNow
	m, err := NewManager(&fakeDispatcher{}, newFakeStore(), WithIdleTTL(time.Minute), WithSessionOptions(WithClock(clock)))
	require.NoError(t, err)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	first, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	kept, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)
	require.Same(t, first, kept)

	now = now.Add(2 * time.Minute)
	expired, err := m.Open(ctx, "conv-1")
	require.NoError(t, err)
	require.NotSame(t, first, expired)
}
