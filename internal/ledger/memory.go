package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type slotKey struct {
	line      string
	departure int64
}

// slot packs the two mutable counters into one word so a reserve or release
// is a single compare-and-swap: available in the high 32 bits, booked in the
// low 32. Total never changes after creation.
type slot struct {
	total   uint32
	state   atomic.Uint64
	updated atomic.Int64
}

func pack(available, booked uint32) uint64 {
	return uint64(available)<<32 | uint64(booked)
}

func unpack(state uint64) (available, booked uint32) {
	return uint32(state >> 32), uint32(state)
}

// Memory is the in-process Ledger. Lookup is guarded by a read-write mutex;
// counter updates are lock-free CAS loops, so no caller ever blocks another
// across the availability check.
type Memory struct {
	mu    sync.RWMutex
	slots map[slotKey]*slot
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[slotKey]*slot)}
}

func key(line string, departure time.Time) slotKey {
	return slotKey{line: line, departure: departure.Unix()}
}

func (m *Memory) get(line string, departure time.Time) *slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[key(line, departure)]
}

func (m *Memory) snapshot(line string, departure time.Time, s *slot) Slot {
	available, booked := unpack(s.state.Load())
	return Slot{
		Line:        line,
		Departure:   departure,
		Total:       int(s.total),
		Available:   int(available),
		Booked:      int(booked),
		LastUpdated: time.Unix(0, s.updated.Load()),
	}
}

func (m *Memory) Init(ctx context.Context, line string, departure time.Time, total int) (Slot, error) {
	if total <= 0 {
		return Slot{}, fmt.Errorf("slot total capacity must be positive, got %d", total)
	}

	m.mu.Lock()
	k := key(line, departure)
	s, ok := m.slots[k]
	if !ok {
		s = &slot{total: uint32(total)}
		s.state.Store(pack(uint32(total), 0))
		s.updated.Store(time.Now().UnixNano())
		m.slots[k] = s
	}
	m.mu.Unlock()

	return m.snapshot(line, departure, s), nil
}

func (m *Memory) Reserve(ctx context.Context, line string, departure time.Time, count int) (Slot, error) {
	if count <= 0 {
		return Slot{}, fmt.Errorf("reserve count must be positive, got %d", count)
	}
	s := m.get(line, departure)
	if s == nil {
		return Slot{}, ErrSlotNotFound
	}

	for {
		cur := s.state.Load()
		available, booked := unpack(cur)
		if available < uint32(count) {
			return m.snapshot(line, departure, s), ErrCapacityExceeded
		}
		next := pack(available-uint32(count), booked+uint32(count))
		if s.state.CompareAndSwap(cur, next) {
			s.updated.Store(time.Now().UnixNano())
			return m.snapshot(line, departure, s), nil
		}
	}
}

func (m *Memory) Release(ctx context.Context, line string, departure time.Time, count int) (Slot, error) {
	if count <= 0 {
		return Slot{}, fmt.Errorf("release count must be positive, got %d", count)
	}
	s := m.get(line, departure)
	if s == nil {
		return Slot{}, ErrSlotNotFound
	}

	for {
		cur := s.state.Load()
		available, booked := unpack(cur)
		if available+uint32(count) > s.total {
			return Slot{}, fmt.Errorf("release of %d would exceed total capacity %d", count, s.total)
		}
		next := pack(available+uint32(count), booked-uint32(count))
		if s.state.CompareAndSwap(cur, next) {
			s.updated.Store(time.Now().UnixNano())
			return m.snapshot(line, departure, s), nil
		}
	}
}

func (m *Memory) Peek(ctx context.Context, line string, departure time.Time) (Slot, error) {
	s := m.get(line, departure)
	if s == nil {
		return Slot{}, ErrSlotNotFound
	}
	return m.snapshot(line, departure, s), nil
}
