package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/coldbrewlabs/engram/pkg/llm"
)

// BuildPrompt assembles the ordered prompt content for a generation call:
// one leading instruction turn carrying memory and domain context, then the
// last HistoryWindow transcript events oldest first, then the live user
// turn. The instruction turn is always first, even when it carries no
// memories, so role alternation stays predictable for the model call.
func (e *Engine) BuildPrompt(ctx context.Context, sessionID, userText string) ([]llm.Message, error) {
	return e.buildPrompt(ctx, sessionID, userText, "")
}

// buildPrompt is BuildPrompt with the live turn's committed event excluded
// from the replayed history. The user event is durable before assembly
// runs, so without the exclusion the live prompt would appear twice.
func (e *Engine) buildPrompt(ctx context.Context, sessionID, userText, liveEventID string) ([]llm.Message, error) {
	history, err := e.store.RecentEvents(ctx, sessionID, e.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}

	memories, err := e.store.RecentMemories(ctx, sessionID, e.memoryWindow)
	if err != nil {
		return nil, fmt.Errorf("fetching memories: %w", err)
	}

	digest, err := e.store.RecentBusinessContext(ctx, e.domainWindow)
	if err != nil {
		return nil, fmt.Errorf("fetching business context: %w", err)
	}

	var instruction strings.Builder
	instruction.WriteString("You are a helpful assistant. Here is context about the user:\n")
	if len(memories) == 0 {
		instruction.WriteString("No prior memories.")
	} else {
		instruction.WriteString("Key memories for this user:")
		for _, mem := range memories {
			instruction.WriteString("\n- " + mem.Text)
		}
	}
	if digest != "" {
		instruction.WriteString("\n\n" + digest)
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.NewMessage(llm.RoleSystem, instruction.String()))
	for _, ev := range history {
		if liveEventID != "" && ev.EventID == liveEventID {
			continue
		}
		role := llm.RoleUser
		if ev.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.NewMessage(role, ev.Content))
	}
	msgs = append(msgs, llm.NewMessage(llm.RoleUser, userText))

	return msgs, nil
}
