package summary

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollsum/internal/conversation"
)

// scriptedGateway returns queued replies in order and records every request.
type scriptedGateway struct {
	replies  []string
	errs     []error
	requests [][]conversation.Turn
}

func (g *scriptedGateway) Generate(_ context.Context, turns []conversation.Turn) (conversation.Turn, error) {
	i := len(g.requests)
	cp := make([]conversation.Turn, len(turns))
	copy(cp, turns)
	g.requests = append(g.requests, cp)
	if i < len(g.errs) && g.errs[i] != nil {
		return conversation.Turn{}, g.errs[i]
	}
	if i < len(g.replies) {
		return conversation.AssistantTurn(g.replies[i]), nil
	}
	return conversation.AssistantTurn(fmt.Sprintf("reply-%d", i)), nil
}

func countChars(_ context.Context, turns []conversation.Turn) ([]int64, error) {
	out := make([]int64, len(turns))
	for i, t := range turns {
		out[i] = int64(len(t.Content))
	}
	return out, nil
}

func newController(t *testing.T, gw conversation.Gateway, v Variant, threshold int) *Controller {
	t.Helper()
	c, err := New(&Config{Gateway: gw, Variant: v, Threshold: &threshold, Counter: countChars})
	require.NoError(t, err)
	return c
}

func newState(t *testing.T, turns ...conversation.Turn) *conversation.State {
	t.Helper()
	st, err := conversation.NewState(turns...)
	require.NoError(t, err)
	return st
}

func contents(turns []conversation.Turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Content)
	}
	return out
}

func history(n int) []conversation.Turn {
	turns := make([]conversation.Turn, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			turns = append(turns, conversation.UserTurn(fmt.Sprintf("u%d", i/2+1)))
		} else {
			turns = append(turns, conversation.AssistantTurn(fmt.Sprintf("a%d", i/2+1)))
		}
	}
	return turns
}

func TestConfigValidate(t *testing.T) {
	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrConfigNil)
	assert.ErrorIs(t, (&Config{}).Validate(), ErrGatewayRequired)
	assert.ErrorIs(t, (&Config{Gateway: &scriptedGateway{}, Variant: "inline"}).Validate(), ErrUnknownVariant)
	assert.NoError(t, (&Config{Gateway: &scriptedGateway{}}).Validate())
}

func TestConfigDefaults(t *testing.T) {
	field := &Config{}
	assert.Equal(t, DefaultThresholdField, field.GetThreshold())
	assert.Equal(t, DefaultKeepRecent, field.GetKeepRecent())

	embedded := &Config{Variant: VariantEmbedded}
	assert.Equal(t, DefaultThresholdEmbedded, embedded.GetThreshold())

	ten := 10
	custom := &Config{Variant: VariantEmbedded, Threshold: &ten, KeepRecent: 3}
	assert.Equal(t, 10, custom.GetThreshold())
	assert.Equal(t, 3, custom.GetKeepRecent())

	zero := 0
	assert.Equal(t, 0, (&Config{Threshold: &zero}).GetThreshold())

	negative := -1
	cfg := &Config{Gateway: &scriptedGateway{}, Threshold: &negative}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidThreshold)
}

func TestZeroThresholdSummarizesAnyTurn(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantField, 0)
	st := newState(t, conversation.UserTurn("hi"))

	next, err := c.Decide(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, PhaseSummarizing, next)

	st = newState(t)
	next, err = c.Decide(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, PhaseEnd, next)
}

func TestCountableExcludesEmbeddedMarker(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantEmbedded, DefaultThresholdEmbedded)
	turns := append([]conversation.Turn{conversation.SummaryTurn("old")}, history(3)...)
	st := newState(t, turns...)

	got := c.Countable(st)
	assert.Equal(t, []string{"u1", "a1", "u2"}, contents(got))
	for _, turn := range got {
		assert.False(t, conversation.IsSummaryTurn(turn))
	}
	assert.Equal(t, 4, st.Store.Len())

	field := newController(t, &scriptedGateway{}, VariantField, DefaultThresholdField)
	plain := newState(t, history(3)...)
	assert.Len(t, field.Countable(plain), 3)
}

func TestAssembleContextField(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantField, DefaultThresholdField)
	st := newState(t, history(2)...)

	got, err := c.AssembleContext(st)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "a1"}, contents(got))

	st.Summary.Replace("earlier stuff")
	first, err := c.AssembleContext(st)
	require.NoError(t, err)
	second, err := c.AssembleContext(st)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, conversation.RoleSystem, first[0].Role)
	assert.Equal(t, "Summary of conversation earlier: earlier stuff", first[0].Content)
	assert.Equal(t, 2, st.Store.Len(), "context assembly must not store the summary turn")
}

func TestAssembleContextEmbeddedUsesTurnsAsStored(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantEmbedded, DefaultThresholdEmbedded)
	turns := append([]conversation.Turn{conversation.SummaryTurn("s")}, history(2)...)
	st := newState(t, turns...)

	got, err := c.AssembleContext(st)
	require.NoError(t, err)
	assert.Equal(t, contents(st.Turns()), contents(got))
}

func TestGenerateReplyAppendsAssistantTurn(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"hello there"}}
	c := newController(t, gw, VariantField, DefaultThresholdField)
	st := newState(t, conversation.UserTurn("hi"))

	reply, err := c.GenerateReply(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, conversation.RoleAssistant, reply.Role)
	assert.NotZero(t, reply.ID)
	assert.Equal(t, []string{"hi", "hello there"}, contents(st.Turns()))
	assert.Len(t, gw.requests, 1)
}

func TestGenerateReplyFailureLeavesStateUntouched(t *testing.T) {
	cause := errors.New("rate limited")
	gw := &scriptedGateway{errs: []error{cause}}
	c := newController(t, gw, VariantField, DefaultThresholdField)
	st := newState(t, conversation.UserTurn("hi"))

	_, err := c.GenerateReply(context.Background(), st)
	require.Error(t, err)
	assert.ErrorIs(t, err, conversation.ErrGateway)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, st.Store.Len())
	assert.Len(t, gw.requests, 1, "no retry")
}

func TestDecideIsStrict(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantField, 4)

	next, err := c.Decide(context.Background(), newState(t, history(4)...))
	require.NoError(t, err)
	assert.Equal(t, PhaseEnd, next)

	next, err = c.Decide(context.Background(), newState(t, history(5)...))
	require.NoError(t, err)
	assert.Equal(t, PhaseSummarizing, next)
}

func TestDecideEmbeddedIgnoresMarker(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantEmbedded, 6)
	turns := append([]conversation.Turn{conversation.SummaryTurn("s")}, history(6)...)

	next, err := c.Decide(context.Background(), newState(t, turns...))
	require.NoError(t, err)
	assert.Equal(t, PhaseEnd, next, "marker plus six actual turns is not over the threshold")
}

func TestDecideRejectsMisplacedMarker(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantEmbedded, 6)
	turns := []conversation.Turn{conversation.SummaryTurn("a"), conversation.UserTurn("u"), conversation.SummaryTurn("b")}

	_, err := c.Decide(context.Background(), newState(t, turns...))
	assert.ErrorIs(t, err, conversation.ErrStateInvariant)
}

func TestFieldVariantRejectsEmbeddedMarker(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantField, 4)
	st := newState(t, conversation.SummaryTurn("s"), conversation.UserTurn("u"))

	_, err := c.GenerateReply(context.Background(), st)
	assert.ErrorIs(t, err, conversation.ErrStateInvariant)
}

func TestSummarizeFieldCreatesSummary(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"S1"}}
	c := newController(t, gw, VariantField, 4)
	st := newState(t, history(6)...)

	res, err := c.Summarize(context.Background(), st)
	require.NoError(t, err)

	require.Len(t, gw.requests, 1)
	req := gw.requests[0]
	require.Len(t, req, 7)
	assert.Equal(t, conversation.RoleUser, req[6].Role)
	assert.Equal(t, "Create a summary of the conversation above:", req[6].Content)
	assert.NotEqual(t, conversation.RoleSystem, req[0].Role, "no summary context in the summarization request")

	assert.Equal(t, "S1", st.Summary.Text())
	assert.Equal(t, []string{"u3", "a3"}, contents(st.Turns()))
	assert.False(t, res.Extended)
	assert.Equal(t, 4, res.Removed)
	assert.Greater(t, res.TokensBefore, res.TokensAfter)
}

func TestSummarizeFieldExtendsAndReplaces(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"S2"}}
	c := newController(t, gw, VariantField, 4)
	st := newState(t, history(6)...)
	st.Summary.Replace("S1")

	res, err := c.Summarize(context.Background(), st)
	require.NoError(t, err)

	prompt := gw.requests[0][len(gw.requests[0])-1].Content
	assert.Equal(t, "This is summary of the conversation to date: S1\n\nExtend the summary by taking into account the new messages above:", prompt)
	assert.True(t, res.Extended)
	assert.Equal(t, "S2", st.Summary.Text())
}

func TestSummarizeEmbeddedRebuildsMarker(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"S2"}}
	c := newController(t, gw, VariantEmbedded, 6)
	turns := append([]conversation.Turn{conversation.SummaryTurn("S1")}, history(7)...)
	st := newState(t, turns...)

	_, err := c.Summarize(context.Background(), st)
	require.NoError(t, err)

	req := gw.requests[0]
	require.Len(t, req, 8, "seven actual turns plus the prompt, no marker")
	assert.False(t, conversation.IsSummaryTurn(req[0]))
	assert.Contains(t, req[7].Content, "to date: S1")

	got := st.Turns()
	require.Len(t, got, 3)
	assert.Equal(t, "Summary of conversation earlier: S2", got[0].Content)
	assert.Equal(t, []string{"a3", "u4"}, contents(got[1:]))
	assert.NoError(t, conversation.CheckEmbedded(got))
}

func TestSummarizeWithFewerTurnsThanKept(t *testing.T) {
	for _, v := range []Variant{VariantField, VariantEmbedded} {
		t.Run(string(v), func(t *testing.T) {
			c := newController(t, &scriptedGateway{replies: []string{"S"}}, v, 1)
			st := newState(t, conversation.UserTurn("only"))

			res, err := c.Summarize(context.Background(), st)
			require.NoError(t, err)
			assert.Len(t, res.Kept, 1)
			assert.Contains(t, contents(st.Turns()), "only")
		})
	}
}

func TestSummarizeFailureLeavesStateUntouched(t *testing.T) {
	gw := &scriptedGateway{errs: []error{errors.New("boom")}}
	c := newController(t, gw, VariantField, 4)
	st := newState(t, history(6)...)
	st.Summary.Replace("old")

	_, err := c.Summarize(context.Background(), st)
	require.ErrorIs(t, err, conversation.ErrGateway)
	assert.Equal(t, "old", st.Summary.Text())
	assert.Equal(t, 6, st.Store.Len())
}

func TestSummaryContainingTemplateSyntaxIsVerbatim(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"next"}}
	c := newController(t, gw, VariantField, 4)
	st := newState(t, history(6)...)
	st.Summary.Replace("user typed {{.previous_summary}} and {x}")

	_, err := c.Summarize(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, gw.requests[0][6].Content, "user typed {{.previous_summary}} and {x}")
}

func TestTwoPassesReplaceNotConcatenate(t *testing.T) {
	gw := &scriptedGateway{replies: []string{"FIRST", "SECOND"}}
	c := newController(t, gw, VariantField, 1)
	st := newState(t, history(4)...)

	_, err := c.Summarize(context.Background(), st)
	require.NoError(t, err)
	st.Store.Append(conversation.UserTurn("more"))
	_, err = c.Summarize(context.Background(), st)
	require.NoError(t, err)

	assert.Equal(t, "SECOND", st.Summary.Text())
	assert.Equal(t, 2, st.Summary.Revision())
}

func TestOutputFieldHidesSummary(t *testing.T) {
	c := newController(t, &scriptedGateway{}, VariantField, 4)
	st := newState(t, history(2)...)
	st.Summary.Replace("secret")

	out := c.Output(st)
	assert.Len(t, out.Turns, 2)
	assert.NotContains(t, contents(out.Turns), conversation.SummaryPrefix+"secret")
}

func TestTotalTokensBestEffort(t *testing.T) {
	failing := func(context.Context, []conversation.Turn) ([]int64, error) { return nil, errors.New("offline") }
	short := func(context.Context, []conversation.Turn) ([]int64, error) { return []int64{1}, nil }
	turns := history(2)

	assert.Equal(t, int64(-1), totalTokens(context.Background(), failing, turns))
	assert.Equal(t, int64(-1), totalTokens(context.Background(), short, turns))
	assert.Equal(t, int64(4), totalTokens(context.Background(), countChars, turns))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "summarizing", PhaseSummarizing.String())
	assert.Equal(t, "phase(42)", Phase(42).String())
}
