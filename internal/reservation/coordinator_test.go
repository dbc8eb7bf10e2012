package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AkZcH/metro-flow-control-system/common/util"
	"github.com/AkZcH/metro-flow-control-system/internal/ledger"
	"github.com/AkZcH/metro-flow-control-system/internal/notify"
	"github.com/AkZcH/metro-flow-control-system/internal/store"
	"github.com/AkZcH/metro-flow-control-system/internal/topology"
)

var bookingTime = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func clock(t *testing.T, s string) topology.Clock {
	t.Helper()
	c, err := topology.ParseClock(s)
	if err != nil {
		t.Fatalf("parse clock %q: %v", s, err)
	}
	return c
}

// Stations s1,s2,s3 on line A and s3,s4 on line B; s3 is the interchange.
func testIndex(t *testing.T) *topology.Index {
	t.Helper()
	stations := []topology.Station{
		{ID: "s1", Name: "Central"},
		{ID: "s2", Name: "City Hall"},
		{ID: "s3", Name: "Riverside"},
		{ID: "s4", Name: "Airport"},
	}
	lines := []topology.Line{
		{
			ID: "A", Name: "Line A", FrequencyMinutes: 10,
			Stops: []topology.Stop{
				{StationID: "s1", Arrival: clock(t, "06:00"), Departure: clock(t, "06:02")},
				{StationID: "s2", Arrival: clock(t, "06:10"), Departure: clock(t, "06:12")},
				{StationID: "s3", Arrival: clock(t, "06:20"), Departure: clock(t, "06:22")},
			},
		},
		{
			ID: "B", Name: "Line B", FrequencyMinutes: 15,
			Stops: []topology.Stop{
				{StationID: "s3", Arrival: clock(t, "06:30"), Departure: clock(t, "06:32")},
				{StationID: "s4", Arrival: clock(t, "06:40"), Departure: clock(t, "06:42")},
			},
		},
	}
	idx, err := topology.NewIndex(stations, lines)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	return idx
}

type fixture struct {
	coordinator *Coordinator
	ledger      *ledger.Memory
	tickets     *store.MemoryTicketStore
	hub         *notify.Hub
	locks       *ledger.AdvisoryLocks
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	mem := ledger.NewMemory()
	tickets := store.NewMemoryTicketStore()
	hub := notify.NewHub()
	t.Cleanup(hub.Close)
	locks := ledger.NewAdvisoryLocks(ledger.DefaultLockTimeout, ledger.DefaultSweepInterval)
	c := NewCoordinator(testIndex(t), mem, tickets, notify.NewNotifier(hub, nil), locks, capacity)
	c.now = func() time.Time { return bookingTime }
	return &fixture{coordinator: c, ledger: mem, tickets: tickets, hub: hub, locks: locks}
}

func kindOf(err error) util.Kind {
	var apiErr *util.ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func TestBookDirect(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	result, err := f.coordinator.Book(ctx, "u1", "s1", "s3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Ticket.Status != store.TicketBooked {
		t.Fatalf("expected booked status, got %s", result.Ticket.Status)
	}
	if len(result.Ticket.Segments) != 1 || result.Ticket.Segments[0].LineID != "A" {
		t.Fatalf("unexpected segments %+v", result.Ticket.Segments)
	}
	if result.Fare.Fare != 30 {
		t.Fatalf("expected fare 30, got %d", result.Fare.Fare)
	}
	if !result.ValidUntil.Equal(bookingTime.Add(CancellationWindow)) {
		t.Fatalf("unexpected validUntil %v", result.ValidUntil)
	}

	// Slot created on first touch with default capacity, one seat taken.
	slot, err := f.ledger.Peek(ctx, "A", result.Ticket.Segments[0].Departure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.Total != 100 || slot.Booked != 1 {
		t.Fatalf("unexpected slot %+v", slot)
	}

	stored, err := f.tickets.GetTicket(ctx, result.Ticket.ID)
	if err != nil {
		t.Fatalf("ticket not persisted: %v", err)
	}
	if stored.UserID != "u1" {
		t.Fatalf("unexpected stored ticket %+v", stored)
	}
}

func TestBookInterchangeReservesBothSegments(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	result, err := f.coordinator.Book(ctx, "u1", "s1", "s4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Ticket.Segments) != 2 {
		t.Fatalf("expected two segments, got %d", len(result.Ticket.Segments))
	}
	if result.Ticket.InterchangeStation != "s3" {
		t.Fatalf("expected interchange s3, got %s", result.Ticket.InterchangeStation)
	}
	// 20 + 5*3 + 10
	if result.Fare.Fare != 45 {
		t.Fatalf("expected fare 45, got %d", result.Fare.Fare)
	}

	for _, seg := range result.Ticket.Segments {
		slot, err := f.ledger.Peek(ctx, seg.LineID, seg.Departure)
		if err != nil {
			t.Fatalf("segment slot missing: %v", err)
		}
		if slot.Booked != 1 {
			t.Fatalf("expected one booked seat on %s, got %+v", seg.LineID, slot)
		}
	}
}

func TestBookPlanningErrorsPropagate(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	if _, err := f.coordinator.Book(ctx, "u1", "s1", "s1"); kindOf(err) != util.KindInvalidRequest {
		t.Fatalf("expected InvalidRequest, got %v", err)
	}
	if _, err := f.coordinator.Book(ctx, "u1", "s1", "ghost"); kindOf(err) != util.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := f.coordinator.Book(ctx, "", "s1", "s3"); kindOf(err) != util.KindInvalidRequest {
		t.Fatalf("expected InvalidRequest for missing user, got %v", err)
	}
}

func TestBookCapacityExceeded(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(user int) {
			defer wg.Done()
			_, err := f.coordinator.Book(ctx, fmt.Sprintf("u%d", user), "s1", "s3")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("expected both concurrent bookings to succeed, got %v", err)
		}
	}

	_, err := f.coordinator.Book(ctx, "u3", "s1", "s3")
	if kindOf(err) != util.KindCapacityExceeded {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}
}

// A conflict on the second segment must give back the seat taken on the
// first.
func TestBookRollsBackFirstSegmentOnSecondConflict(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	// Resolve the slots the way Book will, then drain line B's slot.
	probe, err := f.coordinator.Book(ctx, "probe", "s1", "s4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	segA, segB := probe.Ticket.Segments[0], probe.Ticket.Segments[1]
	slotB, _ := f.ledger.Peek(ctx, segB.LineID, segB.Departure)
	if _, err := f.ledger.Reserve(ctx, segB.LineID, segB.Departure, slotB.Available); err != nil {
		t.Fatalf("drain line B: %v", err)
	}

	before, _ := f.ledger.Peek(ctx, segA.LineID, segA.Departure)
	_, err = f.coordinator.Book(ctx, "u1", "s1", "s4")
	if kindOf(err) != util.KindCapacityExceeded {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}
	after, _ := f.ledger.Peek(ctx, segA.LineID, segA.Departure)
	if after.Available != before.Available {
		t.Fatalf("line A seat leaked: before %+v after %+v", before, after)
	}
}

type failingTicketStore struct {
	store.TicketStore
}

func (f *failingTicketStore) CreateTicket(ctx context.Context, t store.Ticket) error {
	return errors.New("disk on fire")
}

func TestBookReleasesCapacityWhenPersistFails(t *testing.T) {
	f := newFixture(t, 100)
	f.coordinator.tickets = &failingTicketStore{TicketStore: f.tickets}
	ctx := context.Background()

	_, err := f.coordinator.Book(ctx, "u1", "s1", "s4")
	if kindOf(err) != util.KindInternal {
		t.Fatalf("expected InternalError, got %v", err)
	}

	// Both slots were created by the attempt; neither may keep the seat.
	for _, line := range []string{"A", "B"} {
		found := false
		for day := 0; day < 2; day++ {
			dep := departureOn(t, f.coordinator, line, day)
			slot, err := f.ledger.Peek(ctx, line, dep)
			if err != nil {
				continue
			}
			found = true
			if slot.Booked != 0 {
				t.Fatalf("line %s kept a booked seat after persist failure: %+v", line, slot)
			}
		}
		if !found {
			t.Fatalf("no slot found for line %s", line)
		}
	}
}

// departureOn resolves the slot timestamp for the line's first-stop route
// boarding the same way the coordinator does.
func departureOn(t *testing.T, c *Coordinator, line string, dayOffset int) time.Time {
	t.Helper()
	var dep topology.Clock
	switch line {
	case "A":
		dep = clock(t, "06:02")
	case "B":
		dep = clock(t, "06:32")
	default:
		t.Fatalf("unknown line %s", line)
	}
	at := bookingTime
	d := time.Date(at.Year(), at.Month(), at.Day(), dep.Hour(), dep.Minute(), 0, 0, at.Location())
	if d.Before(at) {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, dayOffset)
}

func TestCancelWithinWindow(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	result, err := f.coordinator.Book(ctx, "u1", "s1", "s3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seg := result.Ticket.Segments[0]
	booked, _ := f.ledger.Peek(ctx, seg.LineID, seg.Departure)

	f.coordinator.now = func() time.Time { return bookingTime.Add(time.Hour) }
	cancelled, err := f.coordinator.Cancel(ctx, result.Ticket.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != store.TicketCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}

	released, _ := f.ledger.Peek(ctx, seg.LineID, seg.Departure)
	if released.Available != booked.Available+1 {
		t.Fatalf("capacity not released: booked %+v released %+v", booked, released)
	}
}

func TestCancelWindowExpired(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	result, err := f.coordinator.Book(ctx, "u1", "s1", "s3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.coordinator.now = func() time.Time { return bookingTime.Add(3 * time.Hour) }
	_, err = f.coordinator.Cancel(ctx, result.Ticket.ID)
	if kindOf(err) != util.KindCancellationWindow {
		t.Fatalf("expected CancellationWindowExpired, got %v", err)
	}

	ticket, _ := f.tickets.GetTicket(ctx, result.Ticket.ID)
	if ticket.Status != store.TicketBooked {
		t.Fatalf("expired cancel must not change status, got %s", ticket.Status)
	}
}

func TestCancelAlreadyCancelled(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	result, err := f.coordinator.Book(ctx, "u1", "s1", "s3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.coordinator.Cancel(ctx, result.Ticket.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = f.coordinator.Cancel(ctx, result.Ticket.ID)
	if kindOf(err) != util.KindInvalidRequest {
		t.Fatalf("expected InvalidRequest for double cancel, got %v", err)
	}

	seg := result.Ticket.Segments[0]
	slot, _ := f.ledger.Peek(ctx, seg.LineID, seg.Departure)
	if slot.Booked != 0 {
		t.Fatalf("double cancel must not release twice: %+v", slot)
	}
}

// staleReadTicketStore always reports tickets as booked on reads, so every
// cancel passes the pre-flight status check and only the store's conditional
// flip stands between a duplicate cancel and a double release.
type staleReadTicketStore struct {
	store.TicketStore
}

func (s *staleReadTicketStore) GetTicket(ctx context.Context, id uuid.UUID) (store.Ticket, error) {
	t, err := s.TicketStore.GetTicket(ctx, id)
	if err != nil {
		return t, err
	}
	t.Status = store.TicketBooked
	return t, nil
}

func TestCancelDuplicateWithStaleReadReleasesOnce(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	first, err := f.coordinator.Book(ctx, "u1", "s1", "s3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// A second live ticket keeps one seat booked on the same slot.
	if _, err := f.coordinator.Book(ctx, "u2", "s1", "s3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.coordinator.tickets = &staleReadTicketStore{TicketStore: f.tickets}

	if _, err := f.coordinator.Cancel(ctx, first.Ticket.ID); err != nil {
		t.Fatalf("first cancel failed: %v", err)
	}
	if _, err := f.coordinator.Cancel(ctx, first.Ticket.ID); kindOf(err) != util.KindInvalidRequest {
		t.Fatalf("duplicate cancel must be rejected, got %v", err)
	}

	seg := first.Ticket.Segments[0]
	slot, err := f.ledger.Peek(ctx, seg.LineID, seg.Departure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.Booked != 1 {
		t.Fatalf("duplicate cancel credited away a live seat: %+v", slot)
	}
}

func TestConcurrentCancelsReleaseOnce(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	result, err := f.coordinator.Book(ctx, "u1", "s1", "s3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.coordinator.Book(ctx, "u2", "s1", "s3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.coordinator.Cancel(ctx, result.Ticket.ID); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("expected exactly one cancel to win, got %d", successes.Load())
	}
	seg := result.Ticket.Segments[0]
	slot, err := f.ledger.Peek(ctx, seg.LineID, seg.Departure)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.Booked != 1 {
		t.Fatalf("racing cancels must release exactly one seat: %+v", slot)
	}
	if slot.Available+slot.Booked != slot.Total {
		t.Fatalf("invariant broken: %+v", slot)
	}
}

func TestCancelUnknownTicket(t *testing.T) {
	f := newFixture(t, 100)
	_, err := f.coordinator.Cancel(context.Background(), uuid.New())
	if kindOf(err) != util.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestBookPublishesEvents(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	sub := f.hub.Subscribe(notify.UserTopic("u1"))
	defer sub.Close()

	if _, err := f.coordinator.Book(ctx, "u1", "s1", "s3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case ev := <-sub.C():
		booking, ok := ev.Payload.(notify.BookingEvent)
		if !ok {
			t.Fatalf("unexpected payload type %T", ev.Payload)
		}
		if booking.Status != "booked" {
			t.Fatalf("expected booked event, got %s", booking.Status)
		}
	case <-time.After(time.Second):
		t.Fatalf("no booking event published")
	}
}

func TestEstimateHasNoSideEffects(t *testing.T) {
	f := newFixture(t, 100)

	route, breakdown, err := f.coordinator.Estimate("s1", "s4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(route.Segments) != 2 || breakdown.Fare != 45 {
		t.Fatalf("unexpected estimate: %d segments fare %d", len(route.Segments), breakdown.Fare)
	}

	// No slot may exist afterwards.
	for day := 0; day < 2; day++ {
		dep := departureOn(t, f.coordinator, "A", day)
		if _, err := f.ledger.Peek(context.Background(), "A", dep); err == nil {
			t.Fatalf("estimate created a slot")
		}
	}
}
