// Package conversation owns the chat transcript of one open widget and the
// registry of live sessions.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"mimic-assistant/internal/domain"
)

// Greeting seeds every new transcript.
const Greeting = "Welcome to Afton Industries. I am the Mimic1 assistant. How can I help you today?"

var (
	ErrEmptyMessage  = errors.New("conversation: message is empty")
	ErrSubmitPending = errors.New("conversation: a reply is already pending")
)

// Dispatcher produces the assistant's reply for a transcript. It must not fail.
type Dispatcher interface {
	Dispatch(ctx context.Context, log []domain.Message, privileged bool) string
}

// Exchange is one accepted user message and the reply appended for it.
type Exchange struct {
	User       domain.Message
	Reply      domain.Message
	Privileged bool
	// Turns is the number of user messages in the transcript after this exchange.
	Turns int
}

// Snapshot is the state the UI renders.
type Snapshot struct {
	ID         string           `json:"conversationId"`
	Log        []domain.Message `json:"log"`
	Pending    bool             `json:"pending"`
	Privileged bool             `json:"privileged"`
}

type Session struct {
	id         string
	dispatcher Dispatcher
	now        func() time.Time

	mu      sync.Mutex
	log     []domain.Message
	pending bool
}

type SessionOption func(*Session)

// WithClock overrides the timestamp source for new messages.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSession(id string, d Dispatcher, opts ...SessionOption) (*Session, error) {
	return RestoreSession(id, d, nil, opts...)
}

// RestoreSession rebuilds a session from a stored transcript. A transcript
// that does not open with the assistant greeting gets one prepended.
func RestoreSession(id string, d Dispatcher, log []domain.Message, opts ...SessionOption) (*Session, error) {
	if d == nil {
		return nil, errors.New("conversation: dispatcher must not be nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("conversation: session id must not be empty")
	}
	s := &Session{id: id, dispatcher: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if len(log) == 0 || log[0].Role != domain.RoleAssistant {
		at := s.now()
		if len(log) > 0 {
			at = log[0].SentAt
		}
		s.log = append(s.log, domain.NewMessage(domain.RoleAssistant, Greeting, at))
	}
	s.log = append(s.log, log...)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Submit appends text as a user turn, dispatches the transcript and appends
// the reply. Empty text and submissions while a reply is pending are
// rejected without touching the session. If Dispatch panics the user turn is
// rolled back and the session accepts input again before the panic
// propagates.
func (s *Session) Submit(ctx context.Context, text string) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return Exchange{}, ErrSubmitPending
	}
	userMsg := domain.NewMessage(domain.RoleUser, text, s.now())
	base := len(s.log)
	s.log = append(s.log, userMsg)
	s.pending = true
	snapshot := domain.CloneLog(s.log)
	s.mu.Unlock()

	answered := false
	defer func() {
		if answered {
			return
		}
		s.mu.Lock()
		s.log = s.log[:base]
		s.pending = false
		s.mu.Unlock()
	}()

	// The trigger is evaluated on the log that already holds userMsg, so the
	// message that unlocks creator mode is answered in that mode.
	privileged := domain.LogHasTrigger(snapshot)
	replyText := s.dispatcher.Dispatch(ctx, snapshot, privileged)

	s.mu.Lock()
	defer s.mu.Unlock()
	reply := domain.NewMessage(domain.RoleAssistant, replyText, s.now())
	s.log = append(s.log, reply)
	s.pending = false
	answered = true
	return Exchange{User: userMsg, Reply: reply, Privileged: privileged, Turns: countUserTurns(s.log)}, nil
}

// Log returns a copy of the transcript.
func (s *Session) Log() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneLog(s.log)
}

// Turns is the number of user messages in the transcript.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countUserTurns(s.log)
}

func (s *Session) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// PrivilegedMode is derived from the transcript, which only grows, so once
// true it stays true.
func (s *Session) PrivilegedMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.LogHasTrigger(s.log)
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:         s.id,
		Log:        domain.CloneLog(s.log),
		Pending:    s.pending,
		Privileged: domain.LogHasTrigger(s.log),
	}
}

func countUserTurns(log []domain.Message) int {
	n := 0
	for _, m := range log {
		if m.Role == domain.RoleUser {
			n++
		}
	}
	return n
}
