package llm

import (
	"context"
	"errors"
)

// ErrUnconfigured is returned by constructors when no model client can be
// built (e.g. a missing API key). Components receive a concrete client or
// this error at wiring time; there are no nil-client checks at call sites.
var ErrUnconfigured = errors.New("model client not configured")

// Client is a text-generation backend.
type Client interface {
	// Generate sends the prompt content and returns the full aggregated
	// completion text.
	Generate(ctx context.Context, msgs []Message) (string, error)

	// GenerateStream sends the prompt content and returns an incremental
	// stream of completion fragments. The stream is finite and not
	// restartable.
	GenerateStream(ctx context.Context, msgs []Message) (Stream, error)

	// Close releases any resources held by the client.
	Close() error
}

// Stream yields completion text fragments. Next returns io.EOF once the
// stream is exhausted; any other error is terminal. Abandoning a stream
// (by cancelling the context passed to GenerateStream) is safe.
type Stream interface {
	Next() (string, error)
}
