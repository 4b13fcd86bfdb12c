package conversation

import "fmt"

// State is the aggregate a pass operates on: the turn log plus the summary
// held out of band. Which of the two carries the summary depends on the
// controller variant.
type State struct {
	Store   *MessageStore
	Summary SummaryState
}

// NewState returns a state holding turns, with identities assigned where missing.
func NewState(turns ...Turn) (*State, error) {
	store, err := NewMessageStore(turns...)
	if err != nil {
		return nil, err
	}
	return &State{Store: store}, nil
}

// Turns returns a copy of the stored turns.
func (s *State) Turns() []Turn { return s.Store.Turns() }

func (s *State) String() string {
	if s == nil || s.Store == nil {
		return "state<nil>"
	}
	return fmt.Sprintf("state{turns=%d summary=%dB rev=%d}", s.Store.Len(), len(s.Summary.Text()), s.Summary.Revision())
}

// Output is the publicly visible part of a State after a pass. A summary
// held out of band is not part of it.
type Output struct {
	Turns []Turn `json:"turns" yaml:"turns"`
}

// CheckEmbedded validates a store that may carry its summary as turns[0]: at
// most one summary turn, and only at index 0.
func CheckEmbedded(turns []Turn) error {
	for i, t := range turns {
		if IsSummaryTurn(t) && i != 0 {
			return invariantf("summary turn #%d found at index %d, want index 0", t.ID, i)
		}
	}
	return nil
}

// CheckSeparate validates a store whose summary is held out of band: no turn
// may look like a summary turn.
func CheckSeparate(turns []Turn) error {
	for i, t := range turns {
		if IsSummaryTurn(t) {
			return invariantf("summary turn #%d found at index %d in a store without embedded summaries", t.ID, i)
		}
	}
	return nil
}
