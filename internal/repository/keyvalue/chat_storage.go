// Package keyvalue stores transcripts in Redis as one JSON document per
// conversation.
package keyvalue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mimic-assistant/internal/domain"
)

const defaultTTL = 30 * 24 * time.Hour

// maxWatchRetries bounds how often SaveTurn restarts after a concurrent
// write invalidated its WATCH.
const maxWatchRetries = 3

// redisAPI is the subset of *redis.Client the storage uses.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error
}

type messageInternal struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
	SentAt  time.Time   `json:"sent_at"`
}

type chatInternal struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []messageInternal `json:"messages"`
	Privileged     bool              `json:"privileged"`
	Turns          int               `json:"turns"`
}

type ChatStorage struct {
	rdb redisAPI
	ttl time.Duration
}

func NewChatStorage(rdb redisAPI, ttl time.Duration) (*ChatStorage, error) {
	if rdb == nil {
		return nil, errors.New("keyvalue: redis client must not be nil")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ChatStorage{rdb: rdb, ttl: ttl}, nil
}

func (c *ChatStorage) LoadLog(ctx context.Context, conversationID string) ([]domain.Message, error) {
	chat, err := c.getChat(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	log := make([]domain.Message, 0, len(chat.Messages))
	for _, m := range chat.Messages {
		log = append(log, domain.Message{Role: m.Role, Content: m.Content, SentAt: m.SentAt})
	}
	return log, nil
}

// SaveTurn appends the exchange to the stored document and refreshes its TTL.
// The read and the write run under WATCH, so two writers racing on the same
// conversation cannot drop each other's messages. A turn that does not
// directly follow the stored one fails with domain.ErrTurnConflict.
func (c *ChatStorage) SaveTurn(ctx context.Context, turn domain.CompletedTurn) error {
	key := chatKey(turn.ConversationID)
	txf := func(tx *redis.Tx) error {
		chat, err := decodeChat(tx.Get(ctx, key), turn.ConversationID)
		if err != nil {
			return err
		}
		if turn.Turns != chat.Turns+1 {
			return fmt.Errorf("keyvalue: chat %s has %d turns, got turn %d: %w",
				turn.ConversationID, chat.Turns, turn.Turns, domain.ErrTurnConflict)
		}
		chat.ConversationID = turn.ConversationID
		chat.Messages = append(chat.Messages,
			messageInternal{Role: turn.User.Role, Content: turn.User.Content, SentAt: turn.User.SentAt},
			messageInternal{Role: turn.Reply.Role, Content: turn.Reply.Content, SentAt: turn.Reply.SentAt},
		)
		chat.Privileged = chat.Privileged || turn.Privileged
		chat.Turns = turn.Turns

		raw, err := json.Marshal(chat)
		if err != nil {
			return fmt.Errorf("keyvalue: failed to marshal chat %s: %w", turn.ConversationID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}

	for range maxWatchRetries {
		err := c.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("keyvalue: failed to save chat %s: %w", turn.ConversationID, err)
		}
		return nil
	}
	return fmt.Errorf("keyvalue: failed to save chat %s after %d attempts: %w",
		turn.ConversationID, maxWatchRetries, domain.ErrTurnConflict)
}

// getChat returns an empty document for unknown conversations.
func (c *ChatStorage) getChat(ctx context.Context, conversationID string) (chatInternal, error) {
	return decodeChat(c.rdb.Get(ctx, chatKey(conversationID)), conversationID)
}

func decodeChat(cmd *redis.StringCmd, conversationID string) (chatInternal, error) {
	raw, err := cmd.Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return chatInternal{ConversationID: conversationID}, nil
		}
		return chatInternal{}, fmt.Errorf("keyvalue: failed to get chat %s: %w", conversationID, err)
	}
	var chat chatInternal
	if err := json.Unmarshal([]byte(raw), &chat); err != nil {
		return chatInternal{}, fmt.Errorf("keyvalue: failed to unmarshal chat %s: %w", conversationID, err)
	}
	return chat, nil
}

func chatKey(conversationID string) string {
	return fmt.Sprintf("mimic_chat_%s", conversationID)
}
