package orche

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/elastic/go-elasticsearch/v7"

	"rollsum/internal/conversation"
	"rollsum/internal/events"
	"rollsum/internal/summary"
	"rollsum/pkg/logger"
)

// Graph node name constants.
const (
	graphName     = "rolling_summary"
	nodeReply     = "conversation"
	nodeSummarize = "summarize_conversation"
)

var ErrNilState = errors.New("conversation state is nil")

// Runner wraps a compiled eino graph that runs one pass over a conversation:
// reply generation, the summarize decision and, when it triggers, summarization.
type Runner struct {
	ctrl      *summary.Controller
	graph     compose.Runnable[*conversation.State, *conversation.State]
	emitter   events.Emitter
	sessionID string
	es        *elasticsearch.Client
	esIndex   string
}

type Option func(*Runner)

// WithEmitter sends pass events to e.
func WithEmitter(e events.Emitter) Option {
	return func(r *Runner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// WithSessionID tags emitted events with id.
func WithSessionID(id string) Option {
	return func(r *Runner) { r.sessionID = id }
}

// WithES ships per-node callback documents to index.
func WithES(es *elasticsearch.Client, index string) Option {
	return func(r *Runner) {
		r.es = es
		r.esIndex = index
	}
}

// passRecord collects what happened during one Invoke. Node errors are kept
// in their original form so callers can match them with errors.Is.
type passRecord struct {
	calls      int
	reply      conversation.Turn
	compaction *summary.Compaction
	err        error
}

type passKey struct{}

func recordFrom(ctx context.Context) *passRecord {
	if p, ok := ctx.Value(passKey{}).(*passRecord); ok {
		return p
	}
	return &passRecord{}
}

// New compiles the pass graph around ctrl.
func New(ctx context.Context, ctrl *summary.Controller, opts ...Option) (*Runner, error) {
	if ctrl == nil {
		return nil, errors.New("controller is nil")
	}
	r := &Runner{ctrl: ctrl, emitter: events.NopEmitter{}}
	for _, opt := range opts {
		opt(r)
	}

	replyLambda := compose.InvokableLambda(func(ctx context.Context, st *conversation.State) (*conversation.State, error) {
		rec := recordFrom(ctx)
		rec.calls++
		contextTurns := 0
		if input, err := r.ctrl.AssembleContext(st); err == nil {
			contextTurns = len(input)
		}
		timer := logger.NewTimer()
		reply, err := r.ctrl.GenerateReply(ctx, st)
		if err != nil {
			rec.err = err
			return nil, err
		}
		rec.reply = reply
		r.emitter.Emit(events.NewEvent(events.TypeReplyGenerated, r.sessionID, events.ReplyData{
			TurnID:       uint64(reply.ID),
			ContentLen:   len(reply.Content),
			ContextTurns: contextTurns,
			DurationMs:   timer.ElapsedMs(),
		}))
		return st, nil
	})

	summarizeLambda := compose.InvokableLambda(func(ctx context.Context, st *conversation.State) (*conversation.State, error) {
		rec := recordFrom(ctx)
		rec.calls++
		timer := logger.NewTimer()
		c, err := r.ctrl.Summarize(ctx, st)
		if err != nil {
			rec.err = err
			return nil, err
		}
		rec.compaction = c
		r.emitSummary(st, c, timer.ElapsedMs())
		return st, nil
	})

	// Branch: the controller decides whether this pass summarizes.
	condition := func(ctx context.Context, st *conversation.State) (string, error) {
		next, err := r.ctrl.Decide(ctx, st)
		if err != nil {
			recordFrom(ctx).err = err
			return "", err
		}
		if next == summary.PhaseSummarizing {
			return nodeSummarize, nil
		}
		return compose.END, nil
	}
	branch := compose.NewGraphBranch(condition, map[string]bool{
		nodeSummarize: true,
		compose.END:   true,
	})

	g := compose.NewGraph[*conversation.State, *conversation.State]()
	_ = g.AddLambdaNode(nodeReply, replyLambda)
	_ = g.AddLambdaNode(nodeSummarize, summarizeLambda)

	_ = g.AddEdge(compose.START, nodeReply)
	_ = g.AddBranch(nodeReply, branch)
	_ = g.AddEdge(nodeSummarize, compose.END)

	compiled, err := g.Compile(ctx, compose.WithGraphName(graphName), compose.WithMaxRunSteps(10))
	if err != nil {
		return nil, fmt.Errorf("compile pass graph: %w", err)
	}
	r.graph = compiled
	return r, nil
}

// Controller returns the controller the runner drives.
func (r *Runner) Controller() *summary.Controller { return r.ctrl }

// Run executes one pass over st and returns it updated. A reply appended
// before a failed summarization stays in st.
func (r *Runner) Run(ctx context.Context, st *conversation.State) (*conversation.State, error) {
	if st == nil || st.Store == nil {
		return nil, ErrNilState
	}
	rec := &passRecord{}
	ctx = context.WithValue(ctx, passKey{}, rec)
	cb := &logger.PrettyLoggerCallback{Es: r.es, Index: r.esIndex}

	timer := logger.NewTimer()
	out, err := r.graph.Invoke(ctx, st, compose.WithCallbacks(cb))
	elapsed := timer.ElapsedMs()
	if err != nil {
		if rec.err != nil {
			err = rec.err
		}
		r.emitter.Emit(events.NewEvent(events.TypePassError, r.sessionID, events.ErrorData{
			Phase:   phaseOf(rec),
			Message: err.Error(),
		}))
		logger.Errorf("[Runner] pass failed after %dms (%d gateway calls): %v", elapsed, rec.calls, err)
		return st, err
	}

	r.emitter.Emit(events.NewEvent(events.TypePassCompleted, r.sessionID, events.PassData{
		Turns:       out.Store.Len(),
		Summarized:  rec.compaction != nil,
		GatewayCall: rec.calls,
		DurationMs:  elapsed,
	}))
	logger.Infof("[Runner] pass completed in %dms: %d turns, summarized=%v, steps=%d",
		elapsed, out.Store.Len(), rec.compaction != nil, cb.Step)
	return out, nil
}

// Output runs a pass and returns only the publicly visible part of the result.
func (r *Runner) Output(ctx context.Context, st *conversation.State) (conversation.Output, error) {
	out, err := r.Run(ctx, st)
	if err != nil {
		return conversation.Output{}, err
	}
	return r.ctrl.Output(out), nil
}

func (r *Runner) emitSummary(st *conversation.State, c *summary.Compaction, elapsed int64) {
	typ := events.TypeSummaryCreated
	if c.Extended {
		typ = events.TypeSummaryExtended
	}
	r.emitter.Emit(events.NewEvent(typ, r.sessionID, events.SummaryData{
		Summary:    c.Summary,
		Revision:   st.Summary.Revision(),
		Variant:    string(r.ctrl.Variant()),
		DurationMs: elapsed,
	}))

	kept := make([]uint64, 0, len(c.Kept))
	for _, t := range c.Kept {
		kept = append(kept, uint64(t.ID))
	}
	r.emitter.Emit(events.NewEvent(events.TypeTurnsCompacted, r.sessionID, events.CompactionData{
		Kept:         kept,
		Removed:      c.Removed,
		TokensBefore: c.TokensBefore,
		TokensAfter:  c.TokensAfter,
	}))
}

func phaseOf(rec *passRecord) string {
	switch {
	case rec.calls == 0:
		return summary.PhaseGeneratingReply.String()
	case rec.calls == 1 && rec.reply.ID == 0:
		return summary.PhaseGeneratingReply.String()
	case rec.calls == 1:
		return summary.PhaseDeciding.String()
	default:
		return summary.PhaseSummarizing.String()
	}
}
