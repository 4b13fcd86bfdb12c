package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rollsum/internal/conversation"
	"rollsum/internal/events"
)

// Session binds one conversation state to its persisted record.
type Session struct {
	ID      string
	Variant string
	store   *Store
	emitter events.Emitter
}

// NewSession creates a new session and persists it to the store.
func NewSession(ctx context.Context, store *Store, emitter events.Emitter, variant string) (*Session, error) {
	id := "sess_" + uuid.NewString()
	if err := store.CreateSession(ctx, id, variant); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{ID: id, Variant: variant, store: store, emitter: orNop(emitter)}, nil
}

// ResumeSession loads an existing session from the store.
func ResumeSession(ctx context.Context, store *Store, emitter events.Emitter, sessionID string) (*Session, error) {
	rec, err := store.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Session{ID: sessionID, Variant: rec.Variant, store: store, emitter: orNop(emitter)}, nil
}

// Load rebuilds the conversation state from the store. Turn identities are
// restored so later removals keep referring to the same turns.
func (s *Session) Load(ctx context.Context) (*conversation.State, error) {
	rec, err := s.store.LoadSession(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	st, err := conversation.NewState(rec.Turns...)
	if err != nil {
		return nil, fmt.Errorf("restore session %s: %w", s.ID, err)
	}
	st.Summary = conversation.RestoreSummary(rec.Summary, rec.Revision)
	return st, nil
}

// Save persists the current turns and summary of st.
func (s *Session) Save(ctx context.Context, st *conversation.State) error {
	if err := s.store.SaveState(ctx, s.ID, st.Turns(), st.Summary.Text(), st.Summary.Revision()); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Emitter returns the emitter events for this session go to.
func (s *Session) Emitter() events.Emitter { return s.emitter }

func orNop(e events.Emitter) events.Emitter {
	if e == nil {
		return events.NopEmitter{}
	}
	return e
}
