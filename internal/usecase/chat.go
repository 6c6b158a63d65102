package usecase

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"mimic-assistant/internal/conversation"
	"mimic-assistant/internal/domain"
)

const defaultMaxMessage = 2000

// Conversations is the session registry the chat use case drives.
// *conversation.Manager satisfies it.
type Conversations interface {
	Submit(ctx context.Context, id, text string) (conversation.Result, error)
	Get(ctx context.Context, id string) (*conversation.Session, error)
}

type ChatInput struct {
	Message        string
	ConversationID string
}

type ChatOutput struct {
	Reply          string
	ConversationID string
	Privileged     bool
	Pending        bool
	Log            []domain.Message
}

type ChatService struct {
	conversations Conversations
	maxMessageLen int
}

func NewChatService(c Conversations, maxMessageLen int) (*ChatService, error) {
	if c == nil {
		return nil, errors.New("usecase: conversations must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{conversations: c, maxMessageLen: maxMessageLen}, nil
}

// Chat submits one visitor message. A reply that could not be persisted is
// still returned; the manager has already logged the failure. A turn that
// lost a race with another writer is reported as busy so the client resends
// it against the stored transcript.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	res, err := s.conversations.Submit(ctx, in.ConversationID, message)
	switch {
	case errors.Is(err, domain.ErrTurnConflict):
		return ChatOutput{}, newError(ErrorBusy, "turn_conflict", err)
	case err == nil, errors.Is(err, conversation.ErrPersist):
	case errors.Is(err, conversation.ErrEmptyMessage):
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", err)
	case errors.Is(err, conversation.ErrSubmitPending):
		return ChatOutput{}, newError(ErrorBusy, "submit_pending", err)
	default:
		return ChatOutput{}, newError(ErrorInternal, "session_error", err)
	}

	return ChatOutput{
		Reply:          res.Reply.Content,
		ConversationID: res.Snapshot.ID,
		Privileged:     res.Snapshot.Privileged,
		Pending:        res.Snapshot.Pending,
		Log:            res.Snapshot.Log,
	}, nil
}

// Conversation returns the current transcript of an existing conversation.
func (s *ChatService) Conversation(ctx context.Context, id string) (ChatOutput, error) {
	if strings.TrimSpace(id) == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_conversation_id", nil)
	}
	session, err := s.conversations.Get(ctx, id)
	if err != nil {
		if errors.Is(err, conversation.ErrSessionNotFound) {
			return ChatOutput{}, newError(ErrorNotFound, "conversation_not_found", err)
		}
		return ChatOutput{}, newError(ErrorInternal, "session_error", err)
	}
	snap := session.Snapshot()
	return ChatOutput{
		ConversationID: snap.ID,
		Privileged:     snap.Privileged,
		Pending:        snap.Pending,
		Log:            snap.Log,
	}, nil
}
