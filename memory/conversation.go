package memory

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Conversation is one persisted chat thread.
type Conversation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Summary   string    `json:"summary,omitempty"`
	Messages  []Message `json:"messages"`
}

// Message is the persisted form of one wire message.
type Message struct {
	Role   string  `json:"role"`
	Blocks []Block `json:"blocks"`
}

// Block is the persisted content union. Type discriminates which fields
// are meaningful: "text" carries Text; "tool_use" carries ID, Name and
// Input; "tool_result" carries ToolUseID, Content and IsError.
type Block struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

// Metadata is a lightweight view of a conversation for listing.
type Metadata struct {
	ID           string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

// FromParams converts wire messages into their persisted form. Only the
// block shapes the loop produces survive: text, tool_use, tool_result.
func FromParams(params []anthropic.MessageParam) []Message {
	msgs := make([]Message, 0, len(params))
	for _, p := range params {
		m := Message{Role: string(p.Role)}
		for _, blk := range p.Content {
			if b, ok := fromBlockParam(blk); ok {
				m.Blocks = append(m.Blocks, b)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// ToParams rebuilds wire messages from their persisted form, inverting
// FromParams. Blocks with an unknown Type are dropped.
func ToParams(msgs []Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		p := anthropic.MessageParam{Role: anthropic.MessageParamRole(m.Role)}
		for _, b := range m.Blocks {
			if blk, ok := b.toBlockParam(); ok {
				p.Content = append(p.Content, blk)
			}
		}
		params = append(params, p)
	}
	return params
}

func fromBlockParam(blk anthropic.ContentBlockParamUnion) (Block, bool) {
	if tb := blk.OfText; tb != nil {
		return Block{Type: "text", Text: tb.Text}, true
	}
	if tu := blk.OfToolUse; tu != nil {
		b := Block{Type: "tool_use", ID: tu.ID, Name: tu.Name}
		if tu.Input != nil {
			if input, err := json.Marshal(tu.Input); err == nil {
				b.Input = input
			}
		}
		return b, true
	}
	if tr := blk.OfToolResult; tr != nil {
		return Block{
			Type:      "tool_result",
			ToolUseID: tr.ToolUseID,
			Content:   toolResultText(*tr),
			IsError:   tr.IsError.Value,
		}, true
	}
	return Block{}, false
}

func (b Block) toBlockParam() (anthropic.ContentBlockParamUnion, bool) {
	switch b.Type {
	case "text":
		return anthropic.NewTextBlock(b.Text), true
	case "tool_use":
		tu := anthropic.ToolUseBlockParam{Type: "tool_use", ID: b.ID, Name: b.Name}
		if len(b.Input) > 0 {
			tu.Input = json.RawMessage(b.Input)
		}
		return anthropic.ContentBlockParamUnion{OfToolUse: &tu}, true
	case "tool_result":
		return anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError), true
	}
	return anthropic.ContentBlockParamUnion{}, false
}

// toolResultText flattens a tool_result's content to plain text. Nested
// text payloads are joined; anything else reads as empty.
func toolResultText(tr anthropic.ToolResultBlockParam) string {
	if nested, ok := any(tr.Content).([]anthropic.ToolResultBlockParamContentUnion); ok {
		parts := make([]string, 0, len(nested))
		for _, nb := range nested {
			if nt := nb.OfText; nt != nil {
				parts = append(parts, nt.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	if s, ok := any(tr.Content).(string); ok {
		return s
	}
	return ""
}
