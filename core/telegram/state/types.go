package state

import tele "gopkg.in/telebot.v4"

// State identifies a pending conversational step awaiting the user's next message.
type State string

const (
	// StateIdle indicates there is no pending action for the user.
	StateIdle State = "idle"
)

// Manager tracks at most one pending action per user and dispatches the
// user's next text message to the handler registered for that action.
type Manager interface {
	Set(userID int64, st State)
	Get(userID int64) State
	// Consume returns the pending state and atomically resets it to idle.
	// A pending action is single-shot: the next message consumes it whether
	// or not the registered handler accepts the input.
	Consume(userID int64) State
	Clear(userID int64)
	InProgress(userID int64) bool

	// RegisterHandler associates a state with the handler that receives the
	// consuming message.
	RegisterHandler(st State, h tele.HandlerFunc)
	// ManagerHandler consumes the user's pending state and runs its handler.
	// It returns false if the user had no pending action.
	ManagerHandler(c tele.Context) (bool, error)
}
