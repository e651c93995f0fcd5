package session

import (
	"encoding/json"
	"sync"

	"github.com/playperu/blindtasting/internal/tasting"
)

const (
	EventApplied = "applied"
	EventUndone  = "undone"
	EventDeleted = "deleted"
)

// Event is the payload published to a session's subscribers after each
// change. It carries enough for a client to decide whether to refetch.
type Event struct {
	Type              string        `json:"type"`
	SessionID         string        `json:"sessionId"`
	Command           string        `json:"command,omitempty"`
	Phase             tasting.Phase `json:"phase,omitempty"`
	CurrentRound      int           `json:"currentRound"`
	IsDiscussionPhase bool          `json:"isDiscussionPhase"`
}

func newEvent(typ, id, command string, s tasting.State) Event {
	return Event{
		Type:              typ,
		SessionID:         id,
		Command:           command,
		Phase:             s.Phase,
		CurrentRound:      s.CurrentRound,
		IsDiscussionPhase: s.IsDiscussionPhase,
	}
}

// Broker is an in-process pub/sub for session events, keyed by session ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the
// given session. The channel is closed after the session's deleted event.
func (b *Broker) Subscribe(sessionID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan []byte]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the session's subscribers. It is a
// no-op once the session has been deleted.
func (b *Broker) Unsubscribe(sessionID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[sessionID], ch)
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of its session. Slow
// subscribers miss events rather than block the dispatcher. A deleted event
// also closes and drops every subscription to the session.
func (b *Broker) Publish(event Event) {
	data, _ := json.Marshal(event)

	if event.Type == EventDeleted {
		b.mu.Lock()
		subs := b.subs[event.SessionID]
		delete(b.subs, event.SessionID)
		b.mu.Unlock()

		for ch := range subs {
			send(ch, data)
			close(ch)
		}
		return
	}

	b.mu.RLock()
	for ch := range b.subs[event.SessionID] {
		send(ch, data)
	}
	b.mu.RUnlock()
}

func send(ch chan []byte, data []byte) {
	select {
	case ch <- data:
	default:
	}
}

