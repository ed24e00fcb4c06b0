package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/llm"
	"github.com/coldbrewlabs/engram/pkg/storage"
)

// Outcome classifies what a post-response agent did with its model call.
// Carrying a typed outcome (instead of swallowing everything) lets tests
// and turn events distinguish "the model said there is nothing to record"
// from "the model call errored".
type Outcome string

const (
	// OutcomeApplied means the agent persisted at least one record.
	OutcomeApplied Outcome = "applied"

	// OutcomeNone means the model returned the sentinel (or an empty
	// document): nothing to record.
	OutcomeNone Outcome = "none"

	// OutcomeMalformed means the model's structured output did not
	// conform to the contract; applied as "no update".
	OutcomeMalformed Outcome = "malformed"

	// OutcomeFailed means the model call or a resulting write errored;
	// fail-open, nothing surfaced to the user.
	OutcomeFailed Outcome = "failed"
)

// distillSentinel is the reserved reply meaning "nothing worth
// remembering". Matched case-insensitively, exact.
const distillSentinel = "NULL"

const defaultImportance = 0.5

// DistillResult reports one distillation pass.
type DistillResult struct {
	Outcome Outcome
	Fact    string
}

// DistillTurn asks the model to extract at most one concise fact from the
// completed turn and persists it as a memory. Every failure is fail-open:
// logged, no memory created, never surfaced to the user.
func (e *Engine) DistillTurn(ctx context.Context, sessionID, userPrompt, answer string) DistillResult {
	prompt := fmt.Sprintf(
		"You are a memory creation agent. Based on the following conversation turn, "+
			"extract the single most important, concise fact to remember for future "+
			"conversations. Respond with '%s' if nothing is important.\n\n"+
			"Conversation:\nUser asked: %q. Assistant responded: %q.",
		distillSentinel, userPrompt, answer,
	)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	reply, err := e.generator.Generate(callCtx, []llm.Message{llm.NewMessage(llm.RoleUser, prompt)})
	if err != nil {
		e.logger.Warn("distillation call failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return DistillResult{Outcome: OutcomeFailed}
	}

	fact := strings.TrimSpace(reply)
	if fact == "" || strings.EqualFold(fact, distillSentinel) {
		return DistillResult{Outcome: OutcomeNone}
	}

	if err := e.createMemory(ctx, sessionID, fact); err != nil {
		e.logger.Warn("memory not created",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return DistillResult{Outcome: OutcomeFailed, Fact: fact}
	}

	e.logger.Info("memory created",
		zap.String("session_id", sessionID),
		zap.String("text", fact),
	)
	return DistillResult{Outcome: OutcomeApplied, Fact: fact}
}

// createMemory embeds and persists one distilled fact. A memory requires a
// successful embedding: when none is available the memory is dropped, not
// stored partially.
func (e *Engine) createMemory(ctx context.Context, sessionID, text string) error {
	embedCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	embedding, err := e.embedder.Embed(embedCtx, text)
	if err != nil {
		return fmt.Errorf("embedding memory: %w", err)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("no embedding available for memory text")
	}

	return e.store.CreateMemory(ctx, storage.Memory{
		MemoryID:   uuid.NewString(),
		SessionID:  sessionID,
		Kind:       storage.KindReflection,
		Text:       text,
		Importance: defaultImportance,
		Embedding:  embedding,
	})
}
