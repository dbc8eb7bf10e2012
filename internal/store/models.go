package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AkZcH/metro-flow-control-system/common/util"
)

type TicketStatus string

const (
	TicketBooked    TicketStatus = "booked"
	TicketCancelled TicketStatus = "cancelled"
)

// TicketSegment is one reserved leg of a ticket. Departure is the resolved
// slot timestamp the capacity was reserved against; cancellation releases
// against the same slot.
type TicketSegment struct {
	LineID      string    `json:"line"`
	FromStation string    `json:"from_station"`
	ToStation   string    `json:"to_station"`
	IsDirect    bool      `json:"is_direct"`
	Departure   time.Time `json:"departure"`
}

// Ticket is the persisted booking record. It is created once, mutated only
// to flip Status to cancelled, and never deleted.
type Ticket struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             string          `json:"user_id"`
	FromStation        string          `json:"from_station"`
	ToStation          string          `json:"to_station"`
	Segments           []TicketSegment `json:"route"`
	InterchangeStation string          `json:"interchange_station,omitempty"`
	Fare               int             `json:"fare"`
	Status             TicketStatus    `json:"status"`
	BookingTime        time.Time       `json:"booking_time"`
}

var (
	ErrTicketNotFound = util.NewApiError(util.KindNotFound, "ticket not found")

	// ErrTicketStatusUnchanged reports a transition to the status the ticket
	// already has. When several identical transitions race, exactly one
	// succeeds and the rest get this.
	ErrTicketStatusUnchanged = util.NewApiError(util.KindInvalidRequest, "ticket is already in the requested status")
)

type TicketStore interface {
	CreateTicket(ctx context.Context, t Ticket) error
	GetTicket(ctx context.Context, id uuid.UUID) (Ticket, error)
	// UpdateTicketStatus flips the ticket to the given status only if it is
	// not in that status already; ErrTicketStatusUnchanged otherwise. The
	// check and the flip are one atomic step.
	UpdateTicketStatus(ctx context.Context, id uuid.UUID, status TicketStatus) (Ticket, error)
	TicketsByUser(ctx context.Context, userID string) ([]Ticket, error)
}
