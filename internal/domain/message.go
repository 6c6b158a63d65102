package domain

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Messages are never mutated after
// they are appended to a log.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sentAt"`
}

func NewMessage(role Role, content string, at time.Time) Message {
	return Message{Role: role, Content: content, SentAt: at.UTC()}
}

// CloneLog returns a copy of log that shares no backing array with it.
func CloneLog(log []Message) []Message {
	out := make([]Message, len(log))
	copy(out, log)
	return out
}
