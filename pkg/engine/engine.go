// Package engine implements the contextual memory engine: prompt assembly,
// turn orchestration, per-turn memory distillation, domain-fact extraction,
// and cross-session consolidation.
//
// The engine coordinates several asynchronous side effects around a single
// user-facing streaming request with no transactional boundary tying them
// together: every write it performs is append-only or idempotent, so
// concurrent turns on one session interleave safely.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/embeddings"
	"github.com/coldbrewlabs/engram/pkg/eventstream"
	"github.com/coldbrewlabs/engram/pkg/eventstream/nop"
	"github.com/coldbrewlabs/engram/pkg/llm"
	"github.com/coldbrewlabs/engram/pkg/storage"
)

const (
	defaultHistoryWindow = 10
	defaultMemoryWindow  = 5
	defaultDomainWindow  = 5
	defaultCallTimeout   = 30 * time.Second
	defaultStreamTimeout = 2 * time.Minute
)

// Options configures an Engine. Store, Generator, and Embedder are
// required; everything else has a default.
type Options struct {
	Store     storage.Driver
	Generator llm.Client
	Embedder  *embeddings.Gateway
	Publisher eventstream.Publisher
	Logger    *zap.Logger

	// HistoryWindow is the number of transcript events replayed into each
	// prompt (oldest first).
	HistoryWindow int

	// MemoryWindow is the number of session memories rendered into the
	// instruction block (newest first).
	MemoryWindow int

	// DomainWindow is the number of customer+order pairs in the business
	// context digest.
	DomainWindow int

	// CallTimeout bounds every non-streaming model call (distillation,
	// extraction, consolidation, embedding).
	CallTimeout time.Duration

	// StreamTimeout bounds the primary streaming generation call.
	StreamTimeout time.Duration
}

// Engine is the contextual memory engine.
type Engine struct {
	store     storage.Driver
	generator llm.Client
	embedder  *embeddings.Gateway
	publisher eventstream.Publisher
	logger    *zap.Logger

	historyWindow int
	memoryWindow  int
	domainWindow  int
	callTimeout   time.Duration
	streamTimeout time.Duration
}

// New creates an Engine. Collaborators are injected here; a missing
// required collaborator is a construction error, not a per-call nil check.
func New(opt Options) (*Engine, error) {
	if opt.Store == nil {
		return nil, errors.New("engine requires a storage driver")
	}
	if opt.Generator == nil {
		return nil, fmt.Errorf("engine generator: %w", llm.ErrUnconfigured)
	}
	if opt.Embedder == nil {
		return nil, errors.New("engine requires an embedding gateway")
	}
	if opt.Publisher == nil {
		opt.Publisher = nop.NewPublisher()
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.HistoryWindow <= 0 {
		opt.HistoryWindow = defaultHistoryWindow
	}
	if opt.MemoryWindow <= 0 {
		opt.MemoryWindow = defaultMemoryWindow
	}
	if opt.DomainWindow <= 0 {
		opt.DomainWindow = defaultDomainWindow
	}
	if opt.CallTimeout <= 0 {
		opt.CallTimeout = defaultCallTimeout
	}
	if opt.StreamTimeout <= 0 {
		opt.StreamTimeout = defaultStreamTimeout
	}

	return &Engine{
		store:         opt.Store,
		generator:     opt.Generator,
		embedder:      opt.Embedder,
		publisher:     opt.Publisher,
		logger:        opt.Logger,
		historyWindow: opt.HistoryWindow,
		memoryWindow:  opt.MemoryWindow,
		domainWindow:  opt.DomainWindow,
		callTimeout:   opt.CallTimeout,
		streamTimeout: opt.StreamTimeout,
	}, nil
}

// TurnEvent is one element of a turn's outbound stream: a token fragment,
// or exactly one terminal event (Done or Err).
type TurnEvent struct {
	Token string
	Done  bool
	Err   error
}

// TurnStream delivers a turn's events in order. The channel is closed
// after the terminal event, or without one when the consumer's context is
// cancelled mid-stream.
type TurnStream struct {
	events chan TurnEvent
}

// Events returns the turn's event channel.
func (s *TurnStream) Events() <-chan TurnEvent {
	return s.events
}

// PostTurn runs one conversational turn.
//
// The user event is committed before generation starts; its durability
// failure is the only error returned directly. Everything afterwards flows
// through the TurnStream: fragments as they arrive, then either Done
// (after the assistant event is committed and the side-effect agents have
// run) or Err (generation failed; nothing from the failed attempt is
// persisted, though the consumer may already have seen a prefix).
func (e *Engine) PostTurn(ctx context.Context, sessionID, prompt string) (*TurnStream, error) {
	userEvent, err := e.store.AppendEvent(ctx, sessionID, storage.RoleUser, prompt)
	if err != nil {
		return nil, fmt.Errorf("committing user turn: %w", err)
	}

	msgs, err := e.buildPrompt(ctx, sessionID, prompt, userEvent.EventID)
	if err != nil {
		return nil, fmt.Errorf("assembling prompt: %w", err)
	}

	ts := &TurnStream{events: make(chan TurnEvent)}
	go e.runTurn(ctx, ts, sessionID, userEvent, prompt, msgs)
	return ts, nil
}

// runTurn drives the generation stream and, on graceful completion, the
// post-response side effects.
func (e *Engine) runTurn(ctx context.Context, ts *TurnStream, sessionID string, userEvent storage.ChatEvent, prompt string, msgs []llm.Message) {
	defer close(ts.events)
	started := time.Now()

	streamCtx, cancel := context.WithTimeout(ctx, e.streamTimeout)
	defer cancel()

	stream, err := e.generator.GenerateStream(streamCtx, msgs)
	if err != nil {
		e.emit(ctx, ts, TurnEvent{Err: err})
		return
	}

	var full strings.Builder
	for {
		frag, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Consumer gone: abandon quietly, nothing more is persisted.
			// The user event committed above stands.
			if ctx.Err() != nil {
				e.logger.Debug("turn abandoned mid-stream",
					zap.String("session_id", sessionID),
				)
				return
			}
			e.logger.Warn("generation stream failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
			e.emit(ctx, ts, TurnEvent{Err: err})
			return
		}

		full.WriteString(frag)
		if !e.emit(ctx, ts, TurnEvent{Token: frag}) {
			return
		}
	}

	answer := full.String()

	assistantEvent, err := e.store.AppendEvent(ctx, sessionID, storage.RoleAssistant, answer)
	if err != nil {
		e.logger.Error("committing assistant turn failed",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		e.emit(ctx, ts, TurnEvent{Err: err})
		return
	}

	// The two post-response agents are read-only with respect to each
	// other's state; run them concurrently. Their failures never reach
	// the consumer.
	var wg sync.WaitGroup
	var distillation DistillResult
	var extraction ExtractResult

	wg.Add(2)
	go func() {
		defer wg.Done()
		distillation = e.DistillTurn(ctx, sessionID, prompt, answer)
	}()
	go func() {
		defer wg.Done()
		extraction = e.ExtractDomainFacts(ctx, prompt, answer)
	}()
	wg.Wait()

	e.publishTurn(ctx, &eventstream.TurnCompletedEvent{
		SchemaVersion:    eventstream.SchemaVersionV1,
		EventType:        eventstream.EventTypeTurnCompleted,
		EventID:          uuid.NewString(),
		EmittedAt:        time.Now().UTC(),
		SessionID:        sessionID,
		UserEventID:      userEvent.EventID,
		AssistantEventID: assistantEvent.EventID,
		Distillation:     string(distillation.Outcome),
		Extraction:       string(extraction.Outcome),
		DurationMs:       time.Since(started).Milliseconds(),
	})

	e.emit(ctx, ts, TurnEvent{Done: true})
}

// emit delivers one event unless the consumer's context is gone. Returns
// false when the stream was abandoned.
func (e *Engine) emit(ctx context.Context, ts *TurnStream, ev TurnEvent) bool {
	select {
	case ts.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) publishTurn(ctx context.Context, event *eventstream.TurnCompletedEvent) {
	pubCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	if err := e.publisher.PublishTurn(pubCtx, event); err != nil {
		e.logger.Warn("publishing turn event failed",
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
	}
}

// ListMemories returns session memories (newest first) when sessionID is
// non-empty, global memories otherwise.
func (e *Engine) ListMemories(ctx context.Context, sessionID string, limit int) ([]storage.Memory, error) {
	if limit <= 0 {
		limit = 10
	}
	if sessionID == "" {
		return e.store.GlobalMemories(ctx, limit)
	}
	return e.store.RecentMemories(ctx, sessionID, limit)
}

// ClearMemories deletes all memories for one session and returns the exact
// count removed. Zero matching rows is success.
func (e *Engine) ClearMemories(ctx context.Context, sessionID string) (int64, error) {
	count, err := e.store.DeleteMemories(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	e.logger.Info("cleared memories",
		zap.String("session_id", sessionID),
		zap.Int64("deleted", count),
	)
	return count, nil
}
