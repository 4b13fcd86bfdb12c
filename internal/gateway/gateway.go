package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"rollsum/internal/conversation"
)

var (
	ErrConfigNil          = errors.New("gateway config is nil")
	ErrModelRequired      = errors.New("model name is required")
	ErrInvalidTemperature = errors.New("temperature must be within [0, 2]")
	ErrEmptyResponse      = errors.New("model returned no message")
)

// Config is the explicit model configuration handed to New.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
}

func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}
	if c.Model == "" {
		return ErrModelRequired
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: got %v", ErrInvalidTemperature, c.Temperature)
	}
	return nil
}

// New builds an OpenAI-compatible chat model from cfg and wraps it as a gateway.
func New(ctx context.Context, cfg *Config) (*ChatModelGateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	temperature := cfg.Temperature
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return NewChatModelGateway(cm), nil
}

// ChatModelGateway adapts an eino chat model to conversation.Gateway.
type ChatModelGateway struct {
	model model.BaseChatModel
	opts  []model.Option
}

// NewChatModelGateway wraps m; opts are passed to every Generate call.
func NewChatModelGateway(m model.BaseChatModel, opts ...model.Option) *ChatModelGateway {
	return &ChatModelGateway{model: m, opts: opts}
}

func (g *ChatModelGateway) Generate(ctx context.Context, turns []conversation.Turn) (conversation.Turn, error) {
	msg, err := g.model.Generate(ctx, conversation.Messages(turns), g.opts...)
	if err != nil {
		return conversation.Turn{}, err
	}
	if msg == nil {
		return conversation.Turn{}, ErrEmptyResponse
	}
	return conversation.FromMessage(msg), nil
}

var _ conversation.Gateway = (*ChatModelGateway)(nil)
