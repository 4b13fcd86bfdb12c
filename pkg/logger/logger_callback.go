package logger

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	"github.com/elastic/go-elasticsearch/v7"
)

// PrettyLoggerCallback logs every graph node start/end and, when Es is set,
// ships the node input/output to ES as "callback" documents.
type PrettyLoggerCallback struct {
	Es    *elasticsearch.Client
	Index string
	Step  int
}

var _ callbacks.Handler = (*PrettyLoggerCallback)(nil)

func (cb *PrettyLoggerCallback) ship(ctx context.Context, phase string, info *callbacks.RunInfo, payload any) {
	if cb.Es == nil {
		return
	}
	index := cb.Index
	if index == "" {
		index = MetricsIndex
	}
	doc := map[string]any{
		"phase": phase,
		"node":  info.Name,
		"step":  cb.Step,
		"data":  describe(payload),
	}
	if err := SendWrappedLog(ctx, cb.Es, index, "callback", doc); err != nil {
		Warnf("[%s] ES write failed: %v", phase, err)
	}
}

func (cb *PrettyLoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	cb.Step++
	Debugf("step #%d %s (%s) start: %s", cb.Step, info.Name, info.Component, truncate(describe(input), 200))
	cb.ship(ctx, "start", info, input)
	return ctx
}

func (cb *PrettyLoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	Debugf("step #%d %s done: %s", cb.Step, info.Name, truncate(describe(output), 200))
	cb.ship(ctx, "end", info, output)
	return ctx
}

func (cb *PrettyLoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	Errorf("step #%d %s failed: %v", cb.Step, info.Name, err)
	cb.ship(ctx, "error", info, err.Error())
	return ctx
}

func (cb *PrettyLoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (cb *PrettyLoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

// describe renders node payloads compactly.
func describe(v any) string {
	switch x := v.(type) {
	case nil:
		return "<nil>"
	case *schema.Message:
		if x == nil {
			return "<nil>"
		}
		return fmt.Sprintf("[%s] %s", x.Role, x.Content)
	case []*schema.Message:
		parts := make([]string, 0, len(x))
		for _, m := range x {
			parts = append(parts, describe(m))
		}
		return strings.Join(parts, " | ")
	case fmt.Stringer:
		return x.String()
	case string:
		return x
	default:
		return fmt.Sprintf("%+v", x)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
