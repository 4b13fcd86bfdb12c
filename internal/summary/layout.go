package summary

import "rollsum/internal/conversation"

// layout hides where the summary lives. Everything else in the state machine
// is shared between variants.
type layout interface {
	check(st *conversation.State) error
	// context is what the model sees when generating a reply.
	context(st *conversation.State) []conversation.Turn
	// actual is the stored history without any summary representation.
	actual(st *conversation.State) []conversation.Turn
	prior(st *conversation.State) string
	// commit installs summary and keeps only the turns in keep.
	commit(st *conversation.State, summary string, keep []conversation.Turn) error
	output(st *conversation.State) conversation.Output
}

func newLayout(v Variant) layout {
	if v == VariantEmbedded {
		return embeddedLayout{}
	}
	return fieldLayout{}
}

func ids(turns []conversation.Turn) []conversation.TurnID {
	out := make([]conversation.TurnID, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.ID)
	}
	return out
}

type fieldLayout struct{}

func (fieldLayout) check(st *conversation.State) error {
	return conversation.CheckSeparate(st.Store.Turns())
}

func (fieldLayout) context(st *conversation.State) []conversation.Turn {
	turns := st.Store.Turns()
	if !st.Summary.Exists() {
		return turns
	}
	return append([]conversation.Turn{conversation.SummaryTurn(st.Summary.Text())}, turns...)
}

func (fieldLayout) actual(st *conversation.State) []conversation.Turn {
	return st.Store.Turns()
}

func (fieldLayout) prior(st *conversation.State) string {
	return st.Summary.Text()
}

func (fieldLayout) commit(st *conversation.State, summary string, keep []conversation.Turn) error {
	removals := st.Store.RemoveAllExcept(ids(keep))
	if err := st.Store.Apply(removals); err != nil {
		return err
	}
	st.Summary.Replace(summary)
	return nil
}

func (fieldLayout) output(st *conversation.State) conversation.Output {
	return conversation.Output{Turns: st.Store.Turns()}
}

type embeddedLayout struct{}

func (embeddedLayout) check(st *conversation.State) error {
	return conversation.CheckEmbedded(st.Store.Turns())
}

func (embeddedLayout) context(st *conversation.State) []conversation.Turn {
	return st.Store.Turns()
}

func (embeddedLayout) actual(st *conversation.State) []conversation.Turn {
	turns := st.Store.Turns()
	if len(turns) > 0 && conversation.IsSummaryTurn(turns[0]) {
		return turns[1:]
	}
	return turns
}

func (embeddedLayout) prior(st *conversation.State) string {
	if st.Store.Len() == 0 {
		return ""
	}
	return conversation.SummaryFromTurn(st.Store.At(0))
}

func (embeddedLayout) commit(st *conversation.State, summary string, keep []conversation.Turn) error {
	st.Store.DropLeadingIf(conversation.IsSummaryTurn)
	removals := st.Store.RemoveAllExcept(ids(keep))
	if err := st.Store.Apply(removals); err != nil {
		return err
	}
	st.Store.Prepend(conversation.SummaryTurn(summary))
	return nil
}

func (embeddedLayout) output(st *conversation.State) conversation.Output {
	return conversation.Output{Turns: st.Store.Turns()}
}
