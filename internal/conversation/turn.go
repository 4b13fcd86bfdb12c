package conversation

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// TurnID identifies a stored turn. IDs are sequence numbers handed out by the
// MessageStore on Append and are never reused within a store. Zero means the
// turn has not been stored (synthetic context or prompt turns).
type TurnID uint64

// Role re-uses eino's role type so turns convert to model messages without mapping tables.
type Role = schema.RoleType

const (
	RoleUser      Role = schema.User
	RoleAssistant Role = schema.Assistant
	RoleSystem    Role = schema.System
)

// Turn is one message in a conversation.
type Turn struct {
	ID      TurnID `json:"id" yaml:"id"`
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func UserTurn(content string) Turn      { return Turn{Role: RoleUser, Content: content} }
func AssistantTurn(content string) Turn { return Turn{Role: RoleAssistant, Content: content} }
func SystemTurn(content string) Turn    { return Turn{Role: RoleSystem, Content: content} }

func (t Turn) String() string {
	return fmt.Sprintf("#%d [%s] %s", t.ID, t.Role, t.Content)
}

// Message converts the turn into an eino message.
func (t Turn) Message() *schema.Message {
	return &schema.Message{Role: t.Role, Content: t.Content}
}

// Messages converts turns into eino messages, preserving order.
func Messages(turns []Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.Message())
	}
	return out
}

// FromMessage converts an eino message into an unstored turn.
func FromMessage(m *schema.Message) Turn {
	if m == nil {
		return Turn{}
	}
	return Turn{Role: m.Role, Content: m.Content}
}

// Gateway generates one turn from an ordered list of turns. Implementations
// may be slow and may fail; callers do not retry.
type Gateway interface {
	Generate(ctx context.Context, turns []Turn) (Turn, error)
}

// GatewayFunc adapts a plain function to Gateway.
type GatewayFunc func(ctx context.Context, turns []Turn) (Turn, error)

func (f GatewayFunc) Generate(ctx context.Context, turns []Turn) (Turn, error) {
	return f(ctx, turns)
}
