// Package storage defines the durable record types and store contracts for
// the contextual memory engine.
package storage

import "time"

// Chat event roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// KindReflection is the memory kind written by the per-turn distiller.
const KindReflection = "reflection"

// ChatEvent is one immutable entry in a session's append-only transcript.
// Ordering within a session is by CreatedAt, with Seq breaking ties in
// insertion order.
type ChatEvent struct {
	EventID   string    `json:"event_id"`
	Seq       int64     `json:"-"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Memory is a distilled fact extracted from a single turn. Created only by
// the distiller; never updated. Embedding is either exactly the configured
// storage width or absent.
type Memory struct {
	MemoryID   string    `json:"memory_id"`
	SessionID  string    `json:"session_id"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text"`
	Importance float64   `json:"importance"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// MemorySummary is one consolidation run's output: a synthesis of many
// sessions' transcripts for a single user. Append-only; SessionWindow is
// the count of sessions folded in, not a foreign-key set.
type MemorySummary struct {
	SummaryID     string    `json:"summary_id"`
	UserID        string    `json:"user_id"`
	SessionWindow int       `json:"session_window"`
	Summary       string    `json:"summary"`
	Embedding     []float32 `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// Customer is a business entity mined from dialogue. Name is the natural
// key; re-extraction of a known customer is a no-op, never an update.
type Customer struct {
	CustomerID string `json:"customer_id"`
	Name       string `json:"name"`
	Industry   string `json:"industry"`
}

// SalesOrder is an order mined from dialogue, owned by a Customer.
// Duplicate detection is a conflict-free insert over the full content
// (customer, title, status), not a semantic dedup.
type SalesOrder struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
