package state

import (
	"log/slog"
	"sync"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

type memoryManager struct {
	mu       sync.RWMutex
	pending  map[int64]State
	handlers map[State]tele.HandlerFunc
}

// NewMemoryManager constructs an in-memory Manager implementation.
func NewMemoryManager() Manager {
	return &memoryManager{
		pending:  make(map[int64]State),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// Set records the pending action for a user, replacing any previous one.
func (m *memoryManager) Set(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == StateIdle {
		delete(m.pending, userID)
		return
	}
	m.pending[userID] = st
}

// Get returns the pending action for a user, or StateIdle if none exists.
func (m *memoryManager) Get(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.pending[userID]; ok {
		return st
	}
	return StateIdle
}

// Consume returns the pending state and resets it to idle in one step.
func (m *memoryManager) Consume(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.pending[userID]
	if !ok {
		return StateIdle
	}
	delete(m.pending, userID)
	return st
}

// Clear removes the pending action for a user.
func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, userID)
}

// InProgress reports whether the user currently has a pending action.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.pending[userID]
	return ok && st != StateIdle
}

// RegisterHandler associates a state with its handler.
func (m *memoryManager) RegisterHandler(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

// ManagerHandler consumes the user's pending action and runs the registered
// handler for it. The state is cleared before the handler runs, so a handler
// that wants another round must set a new pending action itself.
func (m *memoryManager) ManagerHandler(c tele.Context) (bool, error) {
	userID := c.Sender().ID
	current := m.Consume(userID)
	if current == StateIdle {
		return false, nil
	}

	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "pending.consume",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", string(current)),
	)

	m.mu.RLock()
	handler, ok := m.handlers[current]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, handler(c)
}
