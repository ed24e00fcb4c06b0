package storage

import "context"

// TranscriptStore is the append-only per-session event log.
type TranscriptStore interface {
	// AppendEvent commits one event and returns it with server-assigned
	// identity and timestamp. Any durability failure is a hard error:
	// a turn cannot proceed without its committed user event.
	AppendEvent(ctx context.Context, sessionID, role, content string) (ChatEvent, error)

	// RecentEvents returns up to n of the session's newest events, ordered
	// oldest first.
	RecentEvents(ctx context.Context, sessionID string, n int) ([]ChatEvent, error)

	// EventsAcross returns every event in the named sessions, interleaved
	// chronologically across sessions, oldest first. Used by consolidation.
	EventsAcross(ctx context.Context, sessionIDs []string) ([]ChatEvent, error)
}

// MemoryStore holds distilled per-turn facts.
type MemoryStore interface {
	// CreateMemory inserts one memory row.
	CreateMemory(ctx context.Context, mem Memory) error

	// RecentMemories returns up to limit memories for the session, newest
	// first.
	RecentMemories(ctx context.Context, sessionID string, limit int) ([]Memory, error)

	// GlobalMemories returns up to limit memories across all sessions,
	// newest first.
	GlobalMemories(ctx context.Context, limit int) ([]Memory, error)

	// DeleteMemories removes all memories for the session and returns the
	// exact affected count. Zero matching rows is success, not an error.
	DeleteMemories(ctx context.Context, sessionID string) (int64, error)
}

// SummaryStore holds consolidation outputs, append-only.
type SummaryStore interface {
	// CreateSummary appends one consolidation row.
	CreateSummary(ctx context.Context, sum MemorySummary) error

	// RecentSummaries returns up to limit summaries for the user, newest
	// first.
	RecentSummaries(ctx context.Context, userID string, limit int) ([]MemorySummary, error)
}

// DomainStore holds structured business facts mined from dialogue.
type DomainStore interface {
	// UpsertCustomer inserts a customer keyed by unique name. Returns true
	// if a row was inserted, false if the name was already present (no-op,
	// never an update).
	UpsertCustomer(ctx context.Context, name, industry string) (bool, error)

	// FindCustomer resolves a customer by exact name. Returns a
	// NotFoundError when absent.
	FindCustomer(ctx context.Context, name string) (*Customer, error)

	// InsertOrder inserts an order unless an identical
	// (customer, title, status) row already exists. Returns true if a row
	// was inserted.
	InsertOrder(ctx context.Context, customerID, title, status string) (bool, error)

	// RecentBusinessContext renders a short human-readable digest of the
	// newest customer+order pairs, newest first, for prompt context only.
	RecentBusinessContext(ctx context.Context, limit int) (string, error)
}

// Driver bundles the four stores behind one durable backend plus lifecycle.
type Driver interface {
	TranscriptStore
	MemoryStore
	SummaryStore
	DomainStore

	// Close closes the backend and releases any resources.
	Close() error
}
