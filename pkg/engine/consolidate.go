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

// Consolidate folds the full transcripts of the named sessions into one
// new MemorySummary row for the user and returns the summary text.
//
// An empty session set, a session set with no transcript events, or a
// synthesis that comes back empty is a no-op success: the returned summary
// is empty and no row is written.
// Prior summaries are never mutated; consolidation history accumulates.
func (e *Engine) Consolidate(ctx context.Context, userID string, sessionIDs []string) (string, error) {
	if len(sessionIDs) == 0 {
		return "", nil
	}

	events, err := e.store.EventsAcross(ctx, sessionIDs)
	if err != nil {
		return "", fmt.Errorf("fetching transcripts: %w", err)
	}
	if len(events) == 0 {
		return "", nil
	}

	// Sessions are interleaved purely chronologically, not grouped:
	// the synthesis should read the user's activity as one timeline.
	var transcript strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&transcript, "[%s] %s\n", ev.Role, ev.Content)
	}

	prompt := fmt.Sprintf(
		"You are a memory consolidation agent. The following is the combined "+
			"transcript of several conversations with one user, in chronological "+
			"order. Produce a single concise, high-level summary of who this user "+
			"is, what they care about, and what was discussed.\n\nTranscript:\n%s",
		transcript.String(),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	summary, err := e.generator.Generate(callCtx, []llm.Message{llm.NewMessage(llm.RoleUser, prompt)})
	if err != nil {
		return "", fmt.Errorf("consolidation call: %w", err)
	}

	// An empty synthesis is treated like an empty transcript: no row.
	// Storing it would surface later as a blank summary.
	summary = strings.TrimSpace(summary)
	if summary == "" {
		e.logger.Warn("consolidation produced no summary",
			zap.String("user_id", userID),
			zap.Int("events", len(events)),
		)
		return "", nil
	}

	// Embedding failure degrades to an absent vector; it never blocks the
	// summary row.
	embedCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	embedding, err := e.embedder.Embed(embedCtx, summary)
	if err != nil {
		e.logger.Warn("summary embedding unavailable",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		embedding = nil
	}

	err = e.store.CreateSummary(ctx, storage.MemorySummary{
		SummaryID:     uuid.NewString(),
		UserID:        userID,
		SessionWindow: len(sessionIDs),
		Summary:       summary,
		Embedding:     embedding,
	})
	if err != nil {
		return "", fmt.Errorf("storing summary: %w", err)
	}

	e.logger.Info("consolidated sessions",
		zap.String("user_id", userID),
		zap.Int("session_window", len(sessionIDs)),
		zap.Int("events", len(events)),
	)
	return summary, nil
}
