package conversation

// Removal is a tombstone instruction naming a stored turn to delete. Removals
// are produced by RemoveAllExcept and consumed by Apply.
type Removal struct {
	ID TurnID `json:"id"`
}

// MessageStore is the ordered turn log of one conversation. It is owned by a
// single pass at a time and is not safe for concurrent use.
type MessageStore struct {
	turns []Turn
	next  TurnID
}

// NewMessageStore restores a store from previously stored turns. Turns with a
// zero ID are assigned fresh identities; duplicate identities are rejected.
func NewMessageStore(turns ...Turn) (*MessageStore, error) {
	s := &MessageStore{next: 1}
	seen := make(map[TurnID]struct{}, len(turns))
	for _, t := range turns {
		if t.ID == 0 {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			return nil, invariantf("duplicate turn id %d", t.ID)
		}
		seen[t.ID] = struct{}{}
		if t.ID >= s.next {
			s.next = t.ID + 1
		}
	}
	for _, t := range turns {
		if t.ID == 0 {
			t.ID = s.next
			s.next++
		}
		s.turns = append(s.turns, t)
	}
	return s, nil
}

// Len returns the number of stored turns.
func (s *MessageStore) Len() int { return len(s.turns) }

// Turns returns a copy of the stored turns in order.
func (s *MessageStore) Turns() []Turn {
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// At returns the turn at index i.
func (s *MessageStore) At(i int) Turn { return s.turns[i] }

// Append adds t to the tail and returns it with its assigned identity.
func (s *MessageStore) Append(t Turn) Turn {
	if s.next == 0 {
		s.next = 1
	}
	t.ID = s.next
	s.next++
	s.turns = append(s.turns, t)
	return t
}

// Prepend inserts t at the head and returns it with its assigned identity.
func (s *MessageStore) Prepend(t Turn) Turn {
	if s.next == 0 {
		s.next = 1
	}
	t.ID = s.next
	s.next++
	s.turns = append([]Turn{t}, s.turns...)
	return t
}

// Suffix returns a copy of the last n turns, or all of them when fewer exist.
func (s *MessageStore) Suffix(n int) []Turn {
	return Suffix(s.turns, n)
}

// RemoveAllExcept returns one removal for every stored turn whose identity is
// not in keep. The store is not modified until the removals are applied.
func (s *MessageStore) RemoveAllExcept(keep []TurnID) []Removal {
	keepSet := make(map[TurnID]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}
	var removals []Removal
	for _, t := range s.turns {
		if _, ok := keepSet[t.ID]; !ok {
			removals = append(removals, Removal{ID: t.ID})
		}
	}
	return removals
}

// Apply deletes the turns named by removals. Every removal must name a stored
// turn; otherwise nothing is deleted and an invariant error is returned.
func (s *MessageStore) Apply(removals []Removal) error {
	if len(removals) == 0 {
		return nil
	}
	present := make(map[TurnID]struct{}, len(s.turns))
	for _, t := range s.turns {
		present[t.ID] = struct{}{}
	}
	drop := make(map[TurnID]struct{}, len(removals))
	for _, r := range removals {
		if _, ok := present[r.ID]; !ok {
			return invariantf("removal references unknown turn id %d", r.ID)
		}
		drop[r.ID] = struct{}{}
	}
	kept := s.turns[:0:0]
	for _, t := range s.turns {
		if _, ok := drop[t.ID]; !ok {
			kept = append(kept, t)
		}
	}
	s.turns = kept
	return nil
}

// DropLeadingIf removes the first turn only when pred holds for it.
func (s *MessageStore) DropLeadingIf(pred func(Turn) bool) bool {
	if len(s.turns) == 0 || !pred(s.turns[0]) {
		return false
	}
	s.turns = s.turns[1:]
	return true
}

// Suffix returns a copy of the last n of turns, degrading to all of them when
// fewer than n exist.
func Suffix(turns []Turn, n int) []Turn {
	if n < 0 {
		n = 0
	}
	if n > len(turns) {
		n = len(turns)
	}
	out := make([]Turn, n)
	copy(out, turns[len(turns)-n:])
	return out
}
