package events

import (
	"encoding/json"
	"sync"
	"time"
)

// Event types for frontend consumption.
const (
	// Reply events
	TypeReplyGenerated = "reply.generated"

	// Summary events
	TypeSummaryCreated  = "summary.created"
	TypeSummaryExtended = "summary.extended"
	TypeTurnsCompacted  = "turns.compacted"

	// Pass lifecycle
	TypePassCompleted = "pass.completed"
	TypePassError     = "pass.error"
)

// Event is the unified event structure sent to consumers (CLI printer, ES, etc.).
// Data is a json.RawMessage so consumers can decode it based on Type.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates an Event, marshaling data to JSON. If marshaling fails, data is set to null.
func NewEvent(eventType string, sessionID string, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	return Event{
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Data:      raw,
	}
}

// --- Typed event data structs ---

type ReplyData struct {
	TurnID       uint64 `json:"turn_id"`
	ContentLen   int    `json:"content_length"`
	ContextTurns int    `json:"context_turns"`
	DurationMs   int64  `json:"duration_ms"`
}

type SummaryData struct {
	Summary    string `json:"summary"`
	Revision   int    `json:"revision"`
	Variant    string `json:"variant"`
	DurationMs int64  `json:"duration_ms"`
}

type CompactionData struct {
	Kept         []uint64 `json:"kept"`
	Removed      int      `json:"removed"`
	TokensBefore int64    `json:"tokens_before"`
	TokensAfter  int64    `json:"tokens_after"`
}

type PassData struct {
	Turns       int   `json:"turns"`
	Summarized  bool  `json:"summarized"`
	GatewayCall int   `json:"gateway_calls"`
	DurationMs  int64 `json:"duration_ms"`
}

type ErrorData struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// --- Emitter interface and channel-based implementation ---

// Emitter is the interface for publishing events. Implementations may push to a channel
// or write to ES.
type Emitter interface {
	Emit(event Event)
	Subscribe() <-chan Event
	Close()
}

// ChannelEmitter is a buffered channel-based Emitter.
type ChannelEmitter struct {
	subs    []chan Event
	bufSize int
	mu      sync.RWMutex
	closed  bool
}

// NewChannelEmitter creates a new emitter whose subscribers buffer bufSize events.
func NewChannelEmitter(bufSize int) *ChannelEmitter {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &ChannelEmitter{bufSize: bufSize}
}

// Emit publishes an event to all subscribers. Non-blocking: drops if subscriber is full.
func (e *ChannelEmitter) Emit(event Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	for _, sub := range e.subs {
		select {
		case sub <- event:
		default:
			// drop if subscriber can't keep up
		}
	}
}

// Subscribe returns a channel that receives all emitted events. Subscribing
// after Close returns a closed channel.
func (e *ChannelEmitter) Subscribe() <-chan Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan Event, e.bufSize)
	if e.closed {
		close(ch)
		return ch
	}
	e.subs = append(e.subs, ch)
	return ch
}

// Close closes all subscriber channels.
func (e *ChannelEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	for _, sub := range e.subs {
		close(sub)
	}
}

// NopEmitter is a no-op emitter for when event reporting is not needed.
type NopEmitter struct{}

func (NopEmitter) Emit(Event)              {}
func (NopEmitter) Subscribe() <-chan Event { return make(chan Event) }
func (NopEmitter) Close()                  {}
