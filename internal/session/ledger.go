package session

import (
	"sync"

	"github.com/lifeforge/docchat/internal/ragclient"
)

// Ledger is the in-memory, append-only record of completed turns for the
// current conversation. It only ever grows; Clear is an explicit caller
// action and is never triggered by a failed or aborted session.
type Ledger struct {
	mu    sync.Mutex
	turns []Turn
}

// Append adds a completed turn. Order of appends is arrival order and is
// never revisited.
func (l *Ledger) Append(turn Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
}

// Turns returns a copy of all turns in chronological order.
func (l *Ledger) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Turn(nil), l.turns...)
}

// Len reports how many turns have completed.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Clear drops all turns.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = nil
}

// Messages serializes the ledger as conversational context for the next
// query: a user/assistant pair per turn, oldest first.
func (l *Ledger) Messages() []ragclient.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	msgs := make([]ragclient.Message, 0, len(l.turns)*2)
	for _, turn := range l.turns {
		msgs = append(msgs,
			ragclient.Message{Role: ragclient.RoleUser, Content: turn.Question},
			ragclient.Message{Role: ragclient.RoleAssistant, Content: turn.Answer},
		)
	}
	return msgs
}
