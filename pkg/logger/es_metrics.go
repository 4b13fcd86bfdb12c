package logger

import (
	"context"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
)

const (
	MetricsIndex = "conversation_metrics"

	PhaseReply     = "reply"
	PhaseDecide    = "decide"
	PhaseSummarize = "summarize"

	// LogType values, used for filtering in ES
	LTReplyGenerated  = "conversation.reply"
	LTDecision        = "conversation.decide"
	LTSummaryCreated  = "conversation.summary"
	LTTurnsCompacted  = "conversation.compact"
	LTConversationErr = "conversation.error"

	EventPhaseEnd   = "phase_end"
	EventPhaseError = "phase_error"
)

// MetricsEvent is one measurement written to ES.
type MetricsEvent struct {
	Timestamp    time.Time   `json:"@timestamp"`
	LogType      string      `json:"log_type"`
	Phase        string      `json:"phase"`
	Event        string      `json:"event"`
	SessionID    string      `json:"session_id,omitempty"`
	TurnCount    int         `json:"turn_count,omitempty"`
	TokensBefore int64       `json:"tokens_before,omitempty"`
	TokensAfter  int64       `json:"tokens_after,omitempty"`
	DurationMs   int64       `json:"duration_ms,omitempty"`
	Error        string      `json:"error,omitempty"`
	Detail       interface{} `json:"detail,omitempty"`
}

// Metrics reports MetricsEvents to ES. A nil receiver or client drops events
// silently so callers never branch on whether reporting is configured.
type Metrics struct {
	es    *elasticsearch.Client
	index string
}

func NewMetrics(es *elasticsearch.Client, index string) *Metrics {
	if index == "" {
		index = MetricsIndex
	}
	return &Metrics{es: es, index: index}
}

// Emit writes evt; failures are logged at warn level only.
func (m *Metrics) Emit(ctx context.Context, evt MetricsEvent) {
	if m == nil || m.es == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	logType := evt.LogType
	if logType == "" {
		logType = "conversation." + evt.Phase + "." + evt.Event
	}
	if err := SendWrappedLog(ctx, m.es, m.index, logType, evt); err != nil {
		Warnf("[Metrics] ES write failed (log_type=%s): %v", logType, err)
		return
	}
	Debugf("[Metrics] ES write ok: log_type=%s", logType)
}

// Timer measures elapsed wall time.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) ElapsedMs() int64 {
	return time.Since(t.start).Milliseconds()
}
