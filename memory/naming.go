package memory

import (
	"context"
	"strings"
)

// Namer produces a short display name for a conversation, typically by
// asking the model. Implementations live with the caller that owns a
// model client.
type Namer interface {
	Name(ctx context.Context, messages []Message) (string, error)
}

// maxNamerMessages bounds how much history a Namer sees.
const maxNamerMessages = 4

// fallbackNameRunes is the rune cap for names derived from the first
// user message.
const fallbackNameRunes = 30

// EnsureName assigns a display name to an unnamed conversation.
// Best-effort: the Namer is asked first when present, and any failure
// falls back to the first user message, truncated. EnsureName never
// returns an error and never leaves the conversation unnamed.
func (s *Store) EnsureName(ctx context.Context, conv *Conversation) {
	if conv == nil || strings.TrimSpace(conv.Name) != "" {
		return
	}
	if s.Namer != nil {
		head := conv.Messages
		if len(head) > maxNamerMessages {
			head = head[:maxNamerMessages]
		}
		if name, err := s.Namer.Name(ctx, head); err == nil {
			if name = strings.TrimSpace(name); name != "" {
				conv.Name = name
				return
			}
		}
	}
	conv.Name = s.fallbackName(conv)
}

// fallbackName derives a name from the first user text message, or a
// timestamped placeholder when there is none.
func (s *Store) fallbackName(conv *Conversation) string {
	text := firstUserText(conv.Messages)
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return "Conversation " + s.clk.Now().Format("Jan 2, 3:04 PM")
	}
	if runes := []rune(text); len(runes) > fallbackNameRunes {
		text = strings.TrimSpace(string(runes[:fallbackNameRunes])) + "..."
	}
	return text
}

func firstUserText(msgs []Message) string {
	for _, m := range msgs {
		if m.Role != "user" {
			continue
		}
		for _, b := range m.Blocks {
			if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
				return b.Text
			}
		}
	}
	return ""
}
