package ledger

import (
	"context"
	"time"

	"github.com/AkZcH/metro-flow-control-system/common/util"
)

// Slot is a point-in-time snapshot of one departure's capacity counters.
// Invariant: Available + Booked == Total, Available >= 0.
type Slot struct {
	Line        string    `json:"line"`
	Departure   time.Time `json:"departure"`
	Total       int       `json:"total_capacity"`
	Available   int       `json:"available_capacity"`
	Booked      int       `json:"booked_count"`
	LastUpdated time.Time `json:"last_updated"`
}

func (s Slot) OccupancyPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Total-s.Available) / float64(s.Total) * 100
}

var (
	ErrSlotNotFound     = util.NewApiError(util.KindNotFound, "no departure slot for that line and time")
	ErrCapacityExceeded = util.NewApiError(util.KindCapacityExceeded, "not enough capacity available")
)

// Ledger tracks per-(line, departure) capacity. Reserve is the only
// operation the overbooking guarantee rests on: the availability check and
// the counter update happen as one indivisible step.
type Ledger interface {
	// Init creates the slot with the given total capacity if it does not
	// exist yet. Calling it again is a no-op returning the current snapshot.
	Init(ctx context.Context, line string, departure time.Time, total int) (Slot, error)

	// Reserve decrements Available and increments Booked by count, but only
	// if Available >= count at the instant of the update. Fails with
	// ErrCapacityExceeded otherwise and leaves the slot untouched.
	Reserve(ctx context.Context, line string, departure time.Time, count int) (Slot, error)

	// Release gives back capacity reserved earlier. Callers must only
	// release amounts they reserved; the only bound enforced is that
	// Available never exceeds Total.
	Release(ctx context.Context, line string, departure time.Time, count int) (Slot, error)

	// Peek reads the current snapshot without touching it.
	Peek(ctx context.Context, line string, departure time.Time) (Slot, error)
}
