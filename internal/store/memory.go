package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryTicketStore backs tests and single-node deployments without Postgres.
type MemoryTicketStore struct {
	mu      sync.RWMutex
	tickets map[uuid.UUID]Ticket
}

func NewMemoryTicketStore() *MemoryTicketStore {
	return &MemoryTicketStore{tickets: make(map[uuid.UUID]Ticket)}
}

func (m *MemoryTicketStore) CreateTicket(ctx context.Context, t Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
	return nil
}

func (m *MemoryTicketStore) GetTicket(ctx context.Context, id uuid.UUID) (Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, ErrTicketNotFound
	}
	return t, nil
}

func (m *MemoryTicketStore) UpdateTicketStatus(ctx context.Context, id uuid.UUID, status TicketStatus) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return Ticket{}, ErrTicketNotFound
	}
	if t.Status == status {
		return Ticket{}, ErrTicketStatusUnchanged
	}
	t.Status = status
	m.tickets[id] = t
	return t, nil
}

func (m *MemoryTicketStore) TicketsByUser(ctx context.Context, userID string) ([]Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Ticket
	for _, t := range m.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BookingTime.After(out[j].BookingTime)
	})
	return out, nil
}
