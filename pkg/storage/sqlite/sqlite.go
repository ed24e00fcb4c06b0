// Package sqlite provides a single-file storage driver for local use,
// backed by github.com/mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coldbrewlabs/engram/pkg/storage"
	"github.com/google/uuid"
)

const schema = `
CREATE TABLE IF NOT EXISTS chat_events (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id   TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_events_session_idx
	ON chat_events (session_id, created_at, seq);

CREATE TABLE IF NOT EXISTS memories (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id  TEXT NOT NULL UNIQUE,
	session_id TEXT NOT NULL,
	kind       TEXT NOT NULL,
	text       TEXT NOT NULL,
	importance REAL NOT NULL DEFAULT 0.5,
	embedding  TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS memories_session_idx
	ON memories (session_id, created_at, seq);

CREATE TABLE IF NOT EXISTS memory_summaries (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	summary_id     TEXT NOT NULL UNIQUE,
	user_id        TEXT NOT NULL,
	session_window INTEGER NOT NULL,
	summary        TEXT NOT NULL,
	embedding      TEXT,
	created_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS customers (
	customer_id TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	industry    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sales_orders (
	order_id    TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers (customer_id),
	title       TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  DATETIME NOT NULL,
	UNIQUE (customer_id, title, status)
);
`

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver creates a new SQLite-backed driver. The dbPath can be a file
// path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Driver{db: db}, nil
}

// AppendEvent commits one transcript event. SQLite has a single writer, so
// driver-assigned timestamps with the autoincrement seq as tiebreaker keep
// per-session ordering monotonic.
func (d *Driver) AppendEvent(ctx context.Context, sessionID, role, content string) (storage.ChatEvent, error) {
	ev := storage.ChatEvent{
		EventID:   uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT INTO chat_events (event_id, session_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.EventID, sessionID, role, content, ev.CreatedAt,
	)
	if err != nil {
		return storage.ChatEvent{}, fmt.Errorf("appending chat event: %w", err)
	}

	if ev.Seq, err = res.LastInsertId(); err != nil {
		return storage.ChatEvent{}, fmt.Errorf("reading event seq: %w", err)
	}

	return ev, nil
}

// RecentEvents returns up to n of the session's newest events, oldest first.
func (d *Driver) RecentEvents(ctx context.Context, sessionID string, n int) ([]storage.ChatEvent, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT event_id, seq, session_id, role, content, created_at
		 FROM chat_events
		 WHERE session_id = ?
		 ORDER BY created_at DESC, seq DESC
		 LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	reverse(events)
	return events, nil
}

// EventsAcross returns every event in the named sessions, interleaved
// chronologically, oldest first.
func (d *Driver) EventsAcross(ctx context.Context, sessionIDs []string) ([]storage.ChatEvent, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}

	query := fmt.Sprintf(
		`SELECT event_id, seq, session_id, role, content, created_at
		 FROM chat_events
		 WHERE session_id IN (%s)
		 ORDER BY created_at ASC, seq ASC`,
		strings.TrimSuffix(strings.Repeat("?, ", len(sessionIDs)), ", "),
	)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events across sessions: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CreateMemory inserts one memory row.
func (d *Driver) CreateMemory(ctx context.Context, mem storage.Memory) error {
	embedding, err := marshalEmbedding(mem.Embedding)
	if err != nil {
		return err
	}

	createdAt := mem.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO memories (memory_id, session_id, kind, text, importance, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mem.MemoryID, mem.SessionID, mem.Kind, mem.Text, mem.Importance, embedding, createdAt,
	)
	if err != nil {
		return fmt.Errorf("creating memory: %w", err)
	}

	return nil
}

// RecentMemories returns up to limit of the session's memories, newest first.
func (d *Driver) RecentMemories(ctx context.Context, sessionID string, limit int) ([]storage.Memory, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT memory_id, session_id, kind, text, importance, embedding, created_at
		 FROM memories
		 WHERE session_id = ?
		 ORDER BY created_at DESC, seq DESC
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// GlobalMemories returns up to limit memories across all sessions, newest
// first.
func (d *Driver) GlobalMemories(ctx context.Context, limit int) ([]storage.Memory, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT memory_id, session_id, kind, text, importance, embedding, created_at
		 FROM memories
		 ORDER BY created_at DESC, seq DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying global memories: %w", err)
	}
	defer rows.Close()

	return scanMemories(rows)
}

// DeleteMemories removes all memories for the session, returning the exact
// affected count.
func (d *Driver) DeleteMemories(ctx context.Context, sessionID string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM memories WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting memories: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted memories: %w", err)
	}

	return count, nil
}

// CreateSummary appends one consolidation row.
func (d *Driver) CreateSummary(ctx context.Context, sum storage.MemorySummary) error {
	embedding, err := marshalEmbedding(sum.Embedding)
	if err != nil {
		return err
	}

	createdAt := sum.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = d.db.ExecContext(ctx,
		`INSERT INTO memory_summaries (summary_id, user_id, session_window, summary, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sum.SummaryID, sum.UserID, sum.SessionWindow, sum.Summary, embedding, createdAt,
	)
	if err != nil {
		return fmt.Errorf("creating summary: %w", err)
	}

	return nil
}

// RecentSummaries returns up to limit of the user's summaries, newest first.
func (d *Driver) RecentSummaries(ctx context.Context, userID string, limit int) ([]storage.MemorySummary, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT summary_id, user_id, session_window, summary, embedding, created_at
		 FROM memory_summaries
		 WHERE user_id = ?
		 ORDER BY created_at DESC, seq DESC
		 LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying summaries: %w", err)
	}
	defer rows.Close()

	var sums []storage.MemorySummary
	for rows.Next() {
		var sum storage.MemorySummary
		var embedding sql.NullString
		if err := rows.Scan(&sum.SummaryID, &sum.UserID, &sum.SessionWindow, &sum.Summary, &embedding, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning summary: %w", err)
		}
		if sum.Embedding, err = unmarshalEmbedding(embedding); err != nil {
			return nil, err
		}
		sums = append(sums, sum)
	}

	return sums, rows.Err()
}

// UpsertCustomer inserts a customer unless the name already exists.
func (d *Driver) UpsertCustomer(ctx context.Context, name, industry string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO customers (customer_id, name, industry)
		 VALUES (?, ?, ?)`,
		uuid.NewString(), name, industry,
	)
	if err != nil {
		return false, fmt.Errorf("upserting customer: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting upserted customers: %w", err)
	}

	return inserted > 0, nil
}

// FindCustomer resolves a customer by exact name.
func (d *Driver) FindCustomer(ctx context.Context, name string) (*storage.Customer, error) {
	var c storage.Customer
	err := d.db.QueryRowContext(ctx,
		`SELECT customer_id, name, industry FROM customers WHERE name = ?`,
		name,
	).Scan(&c.CustomerID, &c.Name, &c.Industry)
	if err == sql.ErrNoRows {
		return nil, storage.NotFoundError{Kind: "customer", Key: name}
	}
	if err != nil {
		return nil, fmt.Errorf("finding customer: %w", err)
	}

	return &c, nil
}

// InsertOrder inserts an order unless an identical row already exists.
func (d *Driver) InsertOrder(ctx context.Context, customerID, title, status string) (bool, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sales_orders (order_id, customer_id, title, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), customerID, title, status, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting order: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("counting inserted orders: %w", err)
	}

	return inserted > 0, nil
}

// RecentBusinessContext renders the newest customer+order pairs as a short
// digest for prompt context.
func (d *Driver) RecentBusinessContext(ctx context.Context, limit int) (string, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT c.name, c.industry, o.title, o.status
		 FROM sales_orders o
		 JOIN customers c ON c.customer_id = o.customer_id
		 ORDER BY o.created_at DESC, o.order_id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return "", fmt.Errorf("querying business context: %w", err)
	}
	defer rows.Close()

	var pairs []storage.BusinessPair
	for rows.Next() {
		var p storage.BusinessPair
		if err := rows.Scan(&p.CustomerName, &p.Industry, &p.Title, &p.Status); err != nil {
			return "", fmt.Errorf("scanning business context: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading business context: %w", err)
	}

	return storage.RenderBusinessDigest(pairs), nil
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.db.Close()
}

func scanEvents(rows *sql.Rows) ([]storage.ChatEvent, error) {
	var events []storage.ChatEvent
	for rows.Next() {
		var ev storage.ChatEvent
		if err := rows.Scan(&ev.EventID, &ev.Seq, &ev.SessionID, &ev.Role, &ev.Content, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanMemories(rows *sql.Rows) ([]storage.Memory, error) {
	var mems []storage.Memory
	for rows.Next() {
		var mem storage.Memory
		var embedding sql.NullString
		if err := rows.Scan(&mem.MemoryID, &mem.SessionID, &mem.Kind, &mem.Text, &mem.Importance, &embedding, &mem.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		var err error
		if mem.Embedding, err = unmarshalEmbedding(embedding); err != nil {
			return nil, err
		}
		mems = append(mems, mem)
	}
	return mems, rows.Err()
}

func marshalEmbedding(embedding []float32) (any, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("encoding embedding: %w", err)
	}
	return string(data), nil
}

func unmarshalEmbedding(data sql.NullString) ([]float32, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var embedding []float32
	if err := json.Unmarshal([]byte(data.String), &embedding); err != nil {
		return nil, fmt.Errorf("decoding embedding: %w", err)
	}
	return embedding, nil
}

func reverse(events []storage.ChatEvent) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}

var _ storage.Driver = (*Driver)(nil)
