package application

import (
	"strings"

	"codex-gateway/internal/domain"
)

// BuildPrompt flattens a conversation into the single prompt codex exec
// takes. Instruction messages come first, followed by the turns and a
// trailing "Assistant:" cue.
func BuildPrompt(instructions string, messages []domain.ChatMessage) string {
	var system []string
	if s := strings.TrimSpace(instructions); s != "" {
		system = append(system, s)
	}

	var turns []string
	for _, m := range messages {
		text := strings.TrimSpace(m.Content)
		switch {
		case m.Role.IsInstruction():
			if text != "" {
				system = append(system, text)
			}
		case m.Role == domain.ChatMessageRoleUser || m.Role == "":
			turns = append(turns, "User: "+text)
		default:
			turns = append(turns, "Assistant: "+text)
		}
	}

	var b strings.Builder
	if len(system) > 0 {
		b.WriteString(strings.Join(system, "\n"))
		b.WriteString("\n\n")
	}
	for _, t := range turns {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	b.WriteString("Assistant:")
	return b.String()
}
