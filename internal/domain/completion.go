package domain

import "errors"

// ErrTurnConflict is returned by stores when a completed turn does not
// directly follow the last stored one, i.e. another writer advanced the
// conversation first.
var ErrTurnConflict = errors.New("turn conflict")

// TurnRole is the role vocabulary of the completion endpoint.
type TurnRole string

const (
	TurnUser  TurnRole = "user"
	TurnModel TurnRole = "model"
)

// Turn is one provider-agnostic entry of a completion request.
type Turn struct {
	Role TurnRole
	Text string
}

// CompletionRequest is what the dispatcher and catalog hand to an LLM
// integration. Temperature and TopP are ignored when zero.
type CompletionRequest struct {
	Model             string
	SystemInstruction string
	Turns             []Turn
	Temperature       float32
	TopP              float32
}

// CompletedTurn is a persisted user message together with the reply it got.
// Turns is the 1-based number of the user message within the conversation.
type CompletedTurn struct {
	ConversationID string
	User           Message
	Reply          Message
	Privileged     bool
	Turns          int
}
