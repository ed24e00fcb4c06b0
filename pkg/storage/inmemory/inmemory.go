// Package inmemory provides a map-backed storage driver for tests and
// demos.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coldbrewlabs/engram/pkg/storage"
	"github.com/google/uuid"
)

// Driver implements storage.Driver using in-memory slices and maps.
type Driver struct {
	// mu guards every collection below.
	mu sync.RWMutex

	seq       int64
	events    []storage.ChatEvent
	memories  []storage.Memory
	summaries []storage.MemorySummary

	// customers is keyed by the unique customer name.
	customers map[string]storage.Customer
	orders    []storage.SalesOrder
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		customers: make(map[string]storage.Customer),
	}
}

// AppendEvent commits one transcript event.
func (d *Driver) AppendEvent(_ context.Context, sessionID, role, content string) (storage.ChatEvent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	ev := storage.ChatEvent{
		EventID:   uuid.NewString(),
		Seq:       d.seq,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	d.events = append(d.events, ev)
	return ev, nil
}

// RecentEvents returns up to n of the session's newest events, oldest first.
func (d *Driver) RecentEvents(_ context.Context, sessionID string, n int) ([]storage.ChatEvent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []storage.ChatEvent
	for _, ev := range d.events {
		if ev.SessionID == sessionID {
			matched = append(matched, ev)
		}
	}

	// events is already in insertion (and therefore timestamp) order.
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	return matched, nil
}

// EventsAcross returns every event in the named sessions, oldest first.
func (d *Driver) EventsAcross(_ context.Context, sessionIDs []string) ([]storage.ChatEvent, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	wanted := make(map[string]bool, len(sessionIDs))
	for _, id := range sessionIDs {
		wanted[id] = true
	}

	var matched []storage.ChatEvent
	for _, ev := range d.events {
		if wanted[ev.SessionID] {
			matched = append(matched, ev)
		}
	}
	return matched, nil
}

// CreateMemory inserts one memory row.
func (d *Driver) CreateMemory(_ context.Context, mem storage.Memory) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if mem.CreatedAt.IsZero() {
		mem.CreatedAt = time.Now().UTC()
	}
	d.memories = append(d.memories, mem)
	return nil
}

// RecentMemories returns up to limit of the session's memories, newest
// first.
func (d *Driver) RecentMemories(_ context.Context, sessionID string, limit int) ([]storage.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []storage.Memory
	for i := len(d.memories) - 1; i >= 0 && len(matched) < limit; i-- {
		if d.memories[i].SessionID == sessionID {
			matched = append(matched, d.memories[i])
		}
	}
	return matched, nil
}

// GlobalMemories returns up to limit memories across all sessions, newest
// first.
func (d *Driver) GlobalMemories(_ context.Context, limit int) ([]storage.Memory, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []storage.Memory
	for i := len(d.memories) - 1; i >= 0 && len(matched) < limit; i-- {
		matched = append(matched, d.memories[i])
	}
	return matched, nil
}

// DeleteMemories removes all memories for the session, returning the exact
// affected count.
func (d *Driver) DeleteMemories(_ context.Context, sessionID string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var kept []storage.Memory
	var deleted int64
	for _, mem := range d.memories {
		if mem.SessionID == sessionID {
			deleted++
			continue
		}
		kept = append(kept, mem)
	}
	d.memories = kept
	return deleted, nil
}

// CreateSummary appends one consolidation row.
func (d *Driver) CreateSummary(_ context.Context, sum storage.MemorySummary) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now().UTC()
	}
	d.summaries = append(d.summaries, sum)
	return nil
}

// RecentSummaries returns up to limit of the user's summaries, newest first.
func (d *Driver) RecentSummaries(_ context.Context, userID string, limit int) ([]storage.MemorySummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var matched []storage.MemorySummary
	for i := len(d.summaries) - 1; i >= 0 && len(matched) < limit; i-- {
		if d.summaries[i].UserID == userID {
			matched = append(matched, d.summaries[i])
		}
	}
	return matched, nil
}

// SummaryCount returns the total number of stored summaries. Test helper.
func (d *Driver) SummaryCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.summaries)
}

// UpsertCustomer inserts a customer unless the name already exists.
func (d *Driver) UpsertCustomer(_ context.Context, name, industry string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.customers[name]; ok {
		return false, nil
	}

	d.customers[name] = storage.Customer{
		CustomerID: uuid.NewString(),
		Name:       name,
		Industry:   industry,
	}
	return true, nil
}

// FindCustomer resolves a customer by exact name.
func (d *Driver) FindCustomer(_ context.Context, name string) (*storage.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.customers[name]
	if !ok {
		return nil, storage.NotFoundError{Kind: "customer", Key: name}
	}
	return &c, nil
}

// InsertOrder inserts an order unless an identical row already exists.
func (d *Driver) InsertOrder(_ context.Context, customerID, title, status string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, o := range d.orders {
		if o.CustomerID == customerID && o.Title == title && o.Status == status {
			return false, nil
		}
	}

	d.orders = append(d.orders, storage.SalesOrder{
		OrderID:    uuid.NewString(),
		CustomerID: customerID,
		Title:      title,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	})
	return true, nil
}

// OrderCount returns the total number of stored orders. Test helper.
func (d *Driver) OrderCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.orders)
}

// RecentBusinessContext renders the newest customer+order pairs as a short
// digest for prompt context.
func (d *Driver) RecentBusinessContext(_ context.Context, limit int) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byID := make(map[string]storage.Customer, len(d.customers))
	for _, c := range d.customers {
		byID[c.CustomerID] = c
	}

	orders := make([]storage.SalesOrder, len(d.orders))
	copy(orders, d.orders)
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})

	var pairs []storage.BusinessPair
	for _, o := range orders {
		if len(pairs) == limit {
			break
		}
		c, ok := byID[o.CustomerID]
		if !ok {
			continue
		}
		pairs = append(pairs, storage.BusinessPair{
			CustomerName: c.Name,
			Industry:     c.Industry,
			Title:        o.Title,
			Status:       o.Status,
		})
	}

	return storage.RenderBusinessDigest(pairs), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
