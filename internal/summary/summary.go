package summary

import (
	"context"
	"errors"
	"fmt"

	"rollsum/internal/conversation"
	"rollsum/pkg/logger"
)

// Phase is a state of the per-pass summarization state machine.
type Phase int

const (
	PhaseAwaitingReply Phase = iota
	PhaseGeneratingReply
	PhaseDeciding
	PhaseSummarizing
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseAwaitingReply:
		return "awaiting_reply"
	case PhaseGeneratingReply:
		return "generating_reply"
	case PhaseDeciding:
		return "deciding"
	case PhaseSummarizing:
		return "summarizing"
	case PhaseEnd:
		return "end"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Compaction describes what a summarization pass changed.
type Compaction struct {
	Summary      string
	Extended     bool
	Kept         []conversation.Turn
	Removed      int
	TokensBefore int64
	TokensAfter  int64
}

// Controller drives reply generation, the summarize decision and compaction
// for one conversation state at a time. The steps are independent: each reads
// and writes only the State it is given.
type Controller struct {
	gateway    conversation.Gateway
	layout     layout
	variant    Variant
	threshold  int
	keepRecent int
	counter    TokenCounter
	prompts    *promptSet
	metrics    *logger.Metrics
}

// New validates cfg and builds a Controller.
func New(cfg *Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ps, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	counter := cfg.Counter
	if counter == nil {
		counter = defaultCounterToken
	}
	variant := cfg.GetVariant()
	return &Controller{
		gateway:    cfg.Gateway,
		layout:     newLayout(variant),
		variant:    variant,
		threshold:  cfg.GetThreshold(),
		keepRecent: cfg.GetKeepRecent(),
		counter:    counter,
		prompts:    ps,
		metrics:    cfg.Metrics,
	}, nil
}

func (c *Controller) Variant() Variant { return c.variant }
func (c *Controller) Threshold() int   { return c.threshold }

// AssembleContext returns the turns sent to the model for a reply. It does
// not modify st.
func (c *Controller) AssembleContext(st *conversation.State) ([]conversation.Turn, error) {
	if err := c.layout.check(st); err != nil {
		return nil, err
	}
	return c.layout.context(st), nil
}

// Countable returns the turns that count toward the threshold.
func (c *Controller) Countable(st *conversation.State) []conversation.Turn {
	return c.layout.actual(st)
}

// Output returns the publicly visible part of st.
func (c *Controller) Output(st *conversation.State) conversation.Output {
	return c.layout.output(st)
}

// GenerateReply makes exactly one gateway call and appends its result as an
// assistant turn. On failure st is left unchanged.
func (c *Controller) GenerateReply(ctx context.Context, st *conversation.State) (conversation.Turn, error) {
	input, err := c.AssembleContext(st)
	if err != nil {
		return conversation.Turn{}, err
	}

	timer := logger.NewTimer()
	reply, err := c.gateway.Generate(ctx, input)
	if err != nil {
		c.metrics.Emit(ctx, logger.MetricsEvent{
			LogType:    logger.LTConversationErr,
			Phase:      logger.PhaseReply,
			Event:      logger.EventPhaseError,
			TurnCount:  len(input),
			DurationMs: timer.ElapsedMs(),
			Error:      err.Error(),
		})
		return conversation.Turn{}, &conversation.GatewayError{Op: "generate reply", Err: err}
	}

	reply.Role = conversation.RoleAssistant
	stored := st.Store.Append(reply)
	logger.Debugf("[Controller] reply #%d appended (%dms, context=%d turns)", stored.ID, timer.ElapsedMs(), len(input))
	c.metrics.Emit(ctx, logger.MetricsEvent{
		LogType:    logger.LTReplyGenerated,
		Phase:      logger.PhaseReply,
		Event:      logger.EventPhaseEnd,
		TurnCount:  st.Store.Len(),
		DurationMs: timer.ElapsedMs(),
	})
	return stored, nil
}

// Decide returns PhaseSummarizing when the countable turns exceed the
// threshold and PhaseEnd otherwise.
func (c *Controller) Decide(ctx context.Context, st *conversation.State) (Phase, error) {
	if err := c.layout.check(st); err != nil {
		return PhaseEnd, err
	}
	n := len(c.Countable(st))
	next := PhaseEnd
	if n > c.threshold {
		next = PhaseSummarizing
	}
	logger.Debugf("[Controller] decide: countable=%d threshold=%d next=%s", n, c.threshold, next)
	c.metrics.Emit(ctx, logger.MetricsEvent{
		LogType:   logger.LTDecision,
		Phase:     logger.PhaseDecide,
		Event:     next.String(),
		TurnCount: n,
	})
	return next, nil
}

// Summarize asks the gateway for a new summary covering the actual turns,
// replaces the old summary with the response and keeps only the most recent
// turns. The gateway is responsible for folding the previous summary in; the
// response is never concatenated onto it. On failure st is left unchanged.
func (c *Controller) Summarize(ctx context.Context, st *conversation.State) (*Compaction, error) {
	if err := c.layout.check(st); err != nil {
		return nil, err
	}
	actual := c.Countable(st)
	prior := c.layout.prior(st)

	instruction, err := c.prompts.render(ctx, prior)
	if err != nil {
		return nil, err
	}
	request := make([]conversation.Turn, 0, len(actual)+1)
	request = append(request, actual...)
	request = append(request, instruction)

	timer := logger.NewTimer()
	resp, err := c.gateway.Generate(ctx, request)
	if err != nil {
		c.metrics.Emit(ctx, logger.MetricsEvent{
			LogType:    logger.LTConversationErr,
			Phase:      logger.PhaseSummarize,
			Event:      logger.EventPhaseError,
			TurnCount:  len(actual),
			DurationMs: timer.ElapsedMs(),
			Error:      err.Error(),
		})
		return nil, &conversation.GatewayError{Op: "summarize", Err: err}
	}

	keep := conversation.Suffix(actual, c.keepRecent)
	result := &Compaction{
		Summary:      resp.Content,
		Extended:     prior != "",
		Kept:         keep,
		Removed:      len(actual) - len(keep),
		TokensBefore: totalTokens(ctx, c.counter, actual),
		TokensAfter:  totalTokens(ctx, c.counter, keep),
	}
	if err := c.layout.commit(st, resp.Content, keep); err != nil {
		return nil, fmt.Errorf("commit compaction: %w", err)
	}

	logger.Debugf("[Controller] summarized %d turns (extended=%v), kept %d, tokens %d -> %d",
		len(actual), result.Extended, len(keep), result.TokensBefore, result.TokensAfter)
	c.metrics.Emit(ctx, logger.MetricsEvent{
		LogType:    logger.LTSummaryCreated,
		Phase:      logger.PhaseSummarize,
		Event:      logger.EventPhaseEnd,
		DurationMs: timer.ElapsedMs(),
		Detail:     map[string]any{"extended": result.Extended, "summary_length": len(resp.Content)},
	})
	c.metrics.Emit(ctx, logger.MetricsEvent{
		LogType:      logger.LTTurnsCompacted,
		Phase:        logger.PhaseSummarize,
		Event:        logger.EventPhaseEnd,
		TurnCount:    st.Store.Len(),
		TokensBefore: result.TokensBefore,
		TokensAfter:  result.TokensAfter,
		Detail:       map[string]any{"kept": len(keep), "removed": result.Removed},
	})
	return result, nil
}

var (
	// ErrConfigNil is returned when the config is nil.
	ErrConfigNil = errors.New("config is nil")

	// ErrGatewayRequired is returned when the config has no gateway.
	ErrGatewayRequired = errors.New("gateway is required in config")

	// ErrUnknownVariant is returned for a variant name other than "field" or "embedded".
	ErrUnknownVariant = errors.New("unknown summary variant")

	// ErrInvalidThreshold is returned for a negative threshold.
	ErrInvalidThreshold = errors.New("summary threshold must not be negative")
)
