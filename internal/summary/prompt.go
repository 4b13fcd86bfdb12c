package summary

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"rollsum/internal/conversation"
	"rollsum/internal/prompts"
)

// promptSet holds the summarization instructions sent as the final user turn
// of a summarization call. The extend prompt embeds the previous summary verbatim.
type promptSet struct {
	create prompt.ChatTemplate
	extend prompt.ChatTemplate
}

func loadPrompts() (*promptSet, error) {
	create, err := prompts.GetSinglePrompt(prompts.CreateSummary)
	if err != nil {
		return nil, fmt.Errorf("load create prompt: %w", err)
	}
	extend, err := prompts.GetSinglePrompt(prompts.ExtendSummary)
	if err != nil {
		return nil, fmt.Errorf("load extend prompt: %w", err)
	}
	return &promptSet{
		create: prompt.FromMessages(schema.GoTemplate, schema.UserMessage(create)),
		extend: prompt.FromMessages(schema.GoTemplate, schema.UserMessage(extend)),
	}, nil
}

// render builds the summarization instruction turn. An empty prior selects
// the create prompt.
func (p *promptSet) render(ctx context.Context, prior string) (conversation.Turn, error) {
	tpl := p.create
	if prior != "" {
		tpl = p.extend
	}
	msgs, err := tpl.Format(ctx, map[string]any{"previous_summary": prior})
	if err != nil {
		return conversation.Turn{}, fmt.Errorf("format summary prompt: %w", err)
	}
	if len(msgs) != 1 {
		return conversation.Turn{}, fmt.Errorf("summary prompt rendered %d messages, want 1", len(msgs))
	}
	return conversation.UserTurn(msgs[0].Content), nil
}
