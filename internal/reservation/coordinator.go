package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AkZcH/metro-flow-control-system/common/logger"
	"github.com/AkZcH/metro-flow-control-system/common/util"
	"github.com/AkZcH/metro-flow-control-system/internal/fare"
	"github.com/AkZcH/metro-flow-control-system/internal/ledger"
	"github.com/AkZcH/metro-flow-control-system/internal/notify"
	"github.com/AkZcH/metro-flow-control-system/internal/planner"
	"github.com/AkZcH/metro-flow-control-system/internal/store"
	"github.com/AkZcH/metro-flow-control-system/internal/topology"
)

// CancellationWindow bounds both how long a booked ticket stays valid for
// travel and how long the holder may cancel it.
const CancellationWindow = 2 * time.Hour

// BookingResult is everything a successful booking returns to the caller.
type BookingResult struct {
	Ticket     store.Ticket   `json:"ticket"`
	Route      planner.Route  `json:"route"`
	Fare       fare.Breakdown `json:"fare_details"`
	ValidUntil time.Time      `json:"valid_until"`
}

// Coordinator drives a booking through plan, price, reserve, persist and
// notify, releasing any capacity already taken when a later step fails. All
// collaborator state is injected; the coordinator owns none of it.
type Coordinator struct {
	topo     *topology.Index
	planner  *planner.Planner
	fares    *fare.Calculator
	ledger   ledger.Ledger
	tickets  store.TicketStore
	notifier *notify.Notifier
	locks    *ledger.AdvisoryLocks

	defaultCapacity int
	now             func() time.Time
}

func NewCoordinator(
	topo *topology.Index,
	capacityLedger ledger.Ledger,
	tickets store.TicketStore,
	notifier *notify.Notifier,
	locks *ledger.AdvisoryLocks,
	defaultCapacity int,
) *Coordinator {
	return &Coordinator{
		topo:            topo,
		planner:         planner.New(topo),
		fares:           fare.NewCalculator(topo),
		ledger:          capacityLedger,
		tickets:         tickets,
		notifier:        notifier,
		locks:           locks,
		defaultCapacity: defaultCapacity,
		now:             time.Now,
	}
}

// Book reserves one seat per route segment and persists the ticket. Planning
// and pricing errors surface unchanged; a ledger conflict aborts with nothing
// reserved for that slot; a persistence failure releases everything reserved
// before returning.
func (c *Coordinator) Book(ctx context.Context, userID, fromID, toID string) (*BookingResult, error) {
	if userID == "" {
		return nil, util.NewApiError(util.KindInvalidRequest, "user id is required")
	}

	route, err := c.planner.Plan(fromID, toID)
	if err != nil {
		return nil, err
	}

	bookedAt := c.now()
	breakdown, err := c.fares.Price(route, bookedAt)
	if err != nil {
		return nil, err
	}

	segments, reserved, err := c.reserveSegments(ctx, route, bookedAt)
	if err != nil {
		return nil, err
	}

	ticket := store.Ticket{
		ID:          uuid.New(),
		UserID:      userID,
		FromStation: fromID,
		ToStation:   toID,
		Segments:    segments,
		Fare:        breakdown.Fare,
		Status:      store.TicketBooked,
		BookingTime: bookedAt,
	}
	if route.Interchange != nil {
		ticket.InterchangeStation = route.Interchange.StationID
	}

	if err := c.tickets.CreateTicket(ctx, ticket); err != nil {
		c.releaseSegments(ctx, segments)
		logger.Error("persist ticket %s: %v", ticket.ID, err)
		return nil, util.WrapInternal(err)
	}

	result := &BookingResult{
		Ticket:     ticket,
		Route:      route,
		Fare:       breakdown,
		ValidUntil: bookedAt.Add(CancellationWindow),
	}

	c.announceBooking(ticket, "booked", result.Fare)
	for _, slot := range reserved {
		c.notifier.CapacityChange(slot)
	}

	return result, nil
}

// Cancel flips a booked ticket to cancelled and gives its capacity back.
// Allowed only within the cancellation window.
func (c *Coordinator) Cancel(ctx context.Context, ticketID uuid.UUID) (*store.Ticket, error) {
	ticket, err := c.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if ticket.Status == store.TicketCancelled {
		return nil, util.NewApiError(util.KindInvalidRequest, "ticket is already cancelled")
	}
	if c.now().Sub(ticket.BookingTime) > CancellationWindow {
		return nil, util.NewApiError(util.KindCancellationWindow,
			fmt.Sprintf("ticket cannot be cancelled more than %v after booking", CancellationWindow))
	}

	// The conditional flip is the gate: of several racing cancels only the
	// one that actually changed the status releases capacity.
	updated, err := c.tickets.UpdateTicketStatus(ctx, ticketID, store.TicketCancelled)
	if errors.Is(err, store.ErrTicketStatusUnchanged) {
		return nil, util.NewApiError(util.KindInvalidRequest, "ticket is already cancelled")
	}
	if err != nil {
		return nil, util.WrapInternal(err)
	}

	for _, seg := range updated.Segments {
		slot, err := c.ledger.Release(ctx, seg.LineID, seg.Departure, 1)
		if err != nil {
			logger.Error("release capacity for ticket %s on line %s: %v", ticketID, seg.LineID, err)
			continue
		}
		c.notifier.CapacityChange(slot)
	}

	c.announceBooking(updated, "cancelled", nil)
	return &updated, nil
}

// Estimate prices a journey without reserving anything.
func (c *Coordinator) Estimate(fromID, toID string) (planner.Route, fare.Breakdown, error) {
	route, err := c.planner.Plan(fromID, toID)
	if err != nil {
		return planner.Route{}, fare.Breakdown{}, err
	}
	breakdown, err := c.fares.Price(route, c.now())
	if err != nil {
		return planner.Route{}, fare.Breakdown{}, err
	}
	return route, breakdown, nil
}

// reserveSegments resolves each segment's departure slot and reserves one
// seat on it, unwinding earlier reservations if a later one is refused.
func (c *Coordinator) reserveSegments(ctx context.Context, route planner.Route, at time.Time) ([]store.TicketSegment, []ledger.Slot, error) {
	var (
		segments []store.TicketSegment
		reserved []ledger.Slot
	)

	for _, seg := range route.Segments {
		departure, err := c.departureFor(seg, at)
		if err != nil {
			c.releaseSegments(ctx, segments)
			return nil, nil, err
		}

		slot, err := c.reserveSlot(ctx, seg.LineID, departure)
		if err != nil {
			c.releaseSegments(ctx, segments)
			return nil, nil, err
		}

		segments = append(segments, store.TicketSegment{
			LineID:      seg.LineID,
			FromStation: seg.FromStation,
			ToStation:   seg.ToStation,
			IsDirect:    seg.IsDirect,
			Departure:   departure,
		})
		reserved = append(reserved, slot)
	}

	return segments, reserved, nil
}

// reserveSlot reserves one seat, creating the slot with the default capacity
// on first touch. The advisory lock only narrows the duplicate-init window;
// Init is idempotent and Reserve alone carries the capacity guarantee.
func (c *Coordinator) reserveSlot(ctx context.Context, line string, departure time.Time) (ledger.Slot, error) {
	initKey := fmt.Sprintf("slot-init:%s:%d", line, departure.Unix())
	if c.locks.Acquire(initKey) {
		_, err := c.ledger.Init(ctx, line, departure, c.defaultCapacity)
		c.locks.Release(initKey)
		if err != nil {
			return ledger.Slot{}, util.WrapInternal(err)
		}
	}

	slot, err := c.ledger.Reserve(ctx, line, departure, 1)
	if errors.Is(err, ledger.ErrSlotNotFound) {
		if _, err := c.ledger.Init(ctx, line, departure, c.defaultCapacity); err != nil {
			return ledger.Slot{}, util.WrapInternal(err)
		}
		slot, err = c.ledger.Reserve(ctx, line, departure, 1)
	}
	if err != nil {
		return ledger.Slot{}, err
	}
	return slot, nil
}

func (c *Coordinator) releaseSegments(ctx context.Context, segments []store.TicketSegment) {
	for _, seg := range segments {
		slot, err := c.ledger.Release(ctx, seg.LineID, seg.Departure, 1)
		if err != nil {
			logger.Error("compensating release on line %s failed: %v", seg.LineID, err)
			continue
		}
		c.notifier.CapacityChange(slot)
	}
}

// departureFor resolves the slot a segment reserves against: the next
// scheduled departure of its boarding stop at or after the booking time,
// rolling over to the next day when today's departure has passed.
func (c *Coordinator) departureFor(seg planner.Segment, at time.Time) (time.Time, error) {
	stop, ok := c.topo.StopAt(seg.LineID, seg.FromStation)
	if !ok {
		return time.Time{}, util.NewApiError(util.KindNotFound, "boarding station is not on the segment's line")
	}

	departure := time.Date(at.Year(), at.Month(), at.Day(), stop.Departure.Hour(), stop.Departure.Minute(), 0, 0, at.Location())
	if departure.Before(at) {
		departure = departure.AddDate(0, 0, 1)
	}
	return departure, nil
}

func (c *Coordinator) announceBooking(ticket store.Ticket, status string, details interface{}) {
	c.notifier.BookingStatus(ticket.UserID, notify.BookingEvent{
		TicketID:  ticket.ID.String(),
		Status:    status,
		Details:   details,
		Timestamp: c.now(),
	})
}
