// Package session tracks the per-user dialogue state of the save-wallet
// conversation. State is transient; losing it on restart is acceptable.
package session

import (
	"sync"

	"github.com/ggonzalez94/bark-bot/internal/id"
	"github.com/ggonzalez94/bark-bot/internal/model"
)

type State int

const (
	Idle State = iota
	AwaitingWalletAddress
)

type Outcome int

const (
	// OutcomeNotAwaiting means no dialogue was pending for the user.
	OutcomeNotAwaiting Outcome = iota
	// OutcomeSaved means the input matched the address pattern; the dialogue
	// ended and the address should be persisted.
	OutcomeSaved
	// OutcomeCancelled means the input did not match; the dialogue is
	// abandoned, not retried.
	OutcomeCancelled
)

// Manager holds one dialogue state per user. Starting a new dialogue while
// one is pending overwrites it; there is never more than one pending
// dialogue per user.
type Manager struct {
	mu     sync.Mutex
	states map[model.UserID]State
}

func NewManager() *Manager {
	return &Manager{states: make(map[model.UserID]State)}
}

// Begin puts the user into the awaiting-address state, resetting any
// dialogue already pending.
func (m *Manager) Begin(userID model.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = AwaitingWalletAddress
}

// State reports the user's current dialogue state.
func (m *Manager) State(userID model.UserID) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[userID]
}

// Submit feeds an inbound text message to the user's pending dialogue. Every
// submission while awaiting input terminates the dialogue: a matching
// address ends it as saved, anything else ends it as cancelled.
func (m *Manager) Submit(userID model.UserID, text string) (id.Address, Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.states[userID] != AwaitingWalletAddress {
		return "", OutcomeNotAwaiting
	}
	delete(m.states, userID)

	addr, err := id.ParseAddress(text)
	if err != nil {
		return "", OutcomeCancelled
	}
	return addr, OutcomeSaved
}
