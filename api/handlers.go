package api

import (
	"bufio"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/coldbrewlabs/engram/pkg/sse"
)

// ErrorResponse is the JSON error body for non-streaming failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	SessionID string `json:"session_id"`
	Prompt    string `json:"prompt"`
}

// MemoryResponse is one memory record in GET /memories output.
type MemoryResponse struct {
	MemoryID   string  `json:"memory_id"`
	SessionID  string  `json:"session_id"`
	Kind       string  `json:"kind"`
	Text       string  `json:"text"`
	Importance float64 `json:"importance"`
	CreatedAt  string  `json:"created_at"`
}

// ConsolidateRequest is the body of POST /consolidate.
type ConsolidateRequest struct {
	UserID     string   `json:"user_id"`
	SessionIDs []string `json:"session_ids"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGenerate runs one conversational turn and streams the reply as SSE.
// The user event is committed before the stream opens, so a client that
// disconnects mid-reply still leaves its prompt in the transcript.
func (s *Server) handleGenerate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.SessionID == "" || req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id and prompt are required"})
	}

	// fasthttp's request context is not cancelled on client disconnect,
	// so the turn gets its own cancel, released when the body stream
	// writer exits. Without it an abandoned turn would block forever on
	// its undrained event channel.
	ctx, cancel := context.WithCancel(c.Context())

	stream, err := s.engine.PostTurn(ctx, req.SessionID, req.Prompt)
	if err != nil {
		cancel()
		s.logger.Error("turn rejected",
			zap.String("session_id", req.SessionID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	logger := s.logger
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		frames := sse.NewWriter(w)

		for ev := range stream.Events() {
			var writeErr error

			switch {
			case ev.Err != nil:
				writeErr = frames.WriteError(ev.Err.Error())
			case ev.Done:
				writeErr = frames.WriteDone()
			default:
				writeErr = frames.WriteToken(ev.Token)
			}

			// A write failure means the client went away. The deferred
			// cancel tears the turn down; stop draining.
			if writeErr != nil {
				logger.Debug("generation stream client gone", zap.Error(writeErr))
				return
			}
		}
	})

	return nil
}

// handleListMemories returns distilled memories, session-scoped when
// session_id is given and global otherwise.
func (s *Server) handleListMemories(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	limit := c.QueryInt("limit", 50)

	memories, err := s.engine.ListMemories(c.Context(), sessionID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list memories"})
	}

	out := make([]MemoryResponse, 0, len(memories))
	for _, m := range memories {
		out = append(out, MemoryResponse{
			MemoryID:   m.MemoryID,
			SessionID:  m.SessionID,
			Kind:       m.Kind,
			Text:       m.Text,
			Importance: m.Importance,
			CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(fiber.Map{
		"count":    len(out),
		"memories": out,
	})
}

// handleClearMemories deletes all memories for a session and reports how
// many rows went away. A session with no memories is a successful no-op.
func (s *Server) handleClearMemories(c *fiber.Ctx) error {
	sessionID := c.Params("session_id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "session_id parameter required"})
	}

	deleted, err := s.engine.ClearMemories(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to clear memories"})
	}

	return c.JSON(fiber.Map{
		"status":        "cleared",
		"deleted_count": deleted,
	})
}

// handleConsolidate folds the transcripts of the given sessions into one
// long-term summary for the user.
func (s *Server) handleConsolidate(c *fiber.Ctx) error {
	var req ConsolidateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "user_id is required"})
	}

	summary, err := s.engine.Consolidate(c.Context(), req.UserID, req.SessionIDs)
	if err != nil {
		s.logger.Error("consolidation failed",
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "consolidation failed"})
	}

	if summary == "" {
		return c.JSON(fiber.Map{
			"status":  "noop",
			"user_id": req.UserID,
			"summary": "",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"user_id": req.UserID,
		"summary": summary,
	})
}
