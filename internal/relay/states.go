package relay

import "github.com/m3rciful/relaybot/core/telegram/state"

// Pending actions armed by menu buttons and consumed by the next text
// message from the same user.
const (
	StateAwaitingSource    state.State = "awaiting_source"
	StateAwaitingTarget    state.State = "awaiting_target"
	StateAwaitingBroadcast state.State = "awaiting_broadcast"
)
