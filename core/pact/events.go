package pact

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types, one per state-changing operation.
const (
	EventPactCreated           = "pact_created"
	EventPactAccepted          = "pact_accepted"
	EventWorkStarted           = "work_started"
	EventWorkSubmitted         = "work_submitted"
	EventVerificationSubmitted = "verification_submitted"
	EventVerificationFinalized = "verification_finalized"
	EventWorkApproved          = "work_approved"
	EventWorkRejected          = "work_rejected"
	EventAutoApproved          = "auto_approved"
	EventAmendmentProposed     = "amendment_proposed"
	EventAmendmentAccepted     = "amendment_accepted"
	EventDisputeRaised         = "dispute_raised"
	EventDisputeResolved       = "dispute_resolved"
	EventTimeoutClaimed        = "timeout_claimed"
)

// Event records one ledger mutation: enough for an external observer to
// reconstruct history without re-reading full state.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	PactID    uint64    `json:"pact_id"`
	Actor     Address   `json:"actor"`
	Status    Status    `json:"status,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const eventRingSize = 512

// EventHub fans ledger events out to registered sinks and subscribers, and
// keeps a bounded ring of recent events for polling readers.
type EventHub struct {
	mu      sync.Mutex
	recent  []Event
	sinks   []func(Event)
	subs    map[uint64]chan Event
	nextSub uint64
}

// NewEventHub returns an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[uint64]chan Event)}
}

// RegisterSink adds a callback invoked synchronously for every event.
func (h *EventHub) RegisterSink(sink func(Event)) {
	if sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Subscribe returns a buffered event channel and a cancel function. Slow
// subscribers drop events rather than block the ledger.
func (h *EventHub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish records the event and forwards it to sinks and subscribers.
func (h *EventHub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	h.mu.Lock()
	h.recent = append(h.recent, ev)
	if len(h.recent) > eventRingSize {
		h.recent = h.recent[len(h.recent)-eventRingSize:]
	}
	sinks := append([]func(Event){}, h.sinks...)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()

	for _, sink := range sinks {
		sink(ev)
	}
}

// Recent returns up to limit of the most recent events, newest last.
func (h *EventHub) Recent(limit int) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > len(h.recent) {
		limit = len(h.recent)
	}
	out := make([]Event, limit)
	copy(out, h.recent[len(h.recent)-limit:])
	return out
}
