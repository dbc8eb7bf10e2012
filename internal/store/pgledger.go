package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AkZcH/metro-flow-control-system/internal/ledger"
)

// PostgresLedger implements the capacity ledger on a single conditional
// UPDATE per reservation. The availability check lives in the WHERE clause,
// so the database applies check and decrement as one step; a rejected row
// means another booker got there first, never a partial write. A held
// advisory lock is not part of this guarantee.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

const initSlotSQL = `
INSERT INTO capacity_slots (line_id, departure, total, available, booked, last_updated)
VALUES ($1, $2, $3, $3, 0, now())
ON CONFLICT (line_id, departure) DO NOTHING
`

func (l *PostgresLedger) Init(ctx context.Context, line string, departure time.Time, total int) (ledger.Slot, error) {
	if total <= 0 {
		return ledger.Slot{}, fmt.Errorf("slot total capacity must be positive, got %d", total)
	}
	_, err := l.pool.Exec(ctx, initSlotSQL, line, pgtype.Timestamptz{Time: departure, Valid: true}, int32(total))
	if err != nil {
		return ledger.Slot{}, fmt.Errorf("init slot: %w", err)
	}
	return l.Peek(ctx, line, departure)
}

const reserveSlotSQL = `
UPDATE capacity_slots
SET available = available - $3,
    booked = booked + $3,
    last_updated = now()
WHERE line_id = $1 AND departure = $2 AND available >= $3
RETURNING total, available, booked, last_updated
`

func (l *PostgresLedger) Reserve(ctx context.Context, line string, departure time.Time, count int) (ledger.Slot, error) {
	if count <= 0 {
		return ledger.Slot{}, fmt.Errorf("reserve count must be positive, got %d", count)
	}
	slot, err := l.scanSlot(ctx, reserveSlotSQL, line, departure, count)
	if errors.Is(err, pgx.ErrNoRows) {
		// Rejected: either the slot does not exist or capacity ran out.
		if _, peekErr := l.Peek(ctx, line, departure); peekErr != nil {
			return ledger.Slot{}, peekErr
		}
		return ledger.Slot{}, ledger.ErrCapacityExceeded
	}
	if err != nil {
		return ledger.Slot{}, fmt.Errorf("reserve slot: %w", err)
	}
	return slot, nil
}

const releaseSlotSQL = `
UPDATE capacity_slots
SET available = available + $3,
    booked = booked - $3,
    last_updated = now()
WHERE line_id = $1 AND departure = $2 AND available + $3 <= total
RETURNING total, available, booked, last_updated
`

func (l *PostgresLedger) Release(ctx context.Context, line string, departure time.Time, count int) (ledger.Slot, error) {
	if count <= 0 {
		return ledger.Slot{}, fmt.Errorf("release count must be positive, got %d", count)
	}
	slot, err := l.scanSlot(ctx, releaseSlotSQL, line, departure, count)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, peekErr := l.Peek(ctx, line, departure); peekErr != nil {
			return ledger.Slot{}, peekErr
		}
		return ledger.Slot{}, fmt.Errorf("release of %d would exceed total capacity", count)
	}
	if err != nil {
		return ledger.Slot{}, fmt.Errorf("release slot: %w", err)
	}
	return slot, nil
}

const peekSlotSQL = `
SELECT total, available, booked, last_updated
FROM capacity_slots
WHERE line_id = $1 AND departure = $2
`

func (l *PostgresLedger) Peek(ctx context.Context, line string, departure time.Time) (ledger.Slot, error) {
	var (
		total, available, booked int32
		lastUpdated              pgtype.Timestamptz
	)
	err := l.pool.QueryRow(ctx, peekSlotSQL, line, pgtype.Timestamptz{Time: departure, Valid: true}).
		Scan(&total, &available, &booked, &lastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Slot{}, ledger.ErrSlotNotFound
	}
	if err != nil {
		return ledger.Slot{}, fmt.Errorf("peek slot: %w", err)
	}
	return ledger.Slot{
		Line:        line,
		Departure:   departure,
		Total:       int(total),
		Available:   int(available),
		Booked:      int(booked),
		LastUpdated: lastUpdated.Time,
	}, nil
}

func (l *PostgresLedger) scanSlot(ctx context.Context, sql, line string, departure time.Time, count int) (ledger.Slot, error) {
	var (
		total, available, booked int32
		lastUpdated              pgtype.Timestamptz
	)
	err := l.pool.QueryRow(ctx, sql, line, pgtype.Timestamptz{Time: departure, Valid: true}, int32(count)).
		Scan(&total, &available, &booked, &lastUpdated)
	if err != nil {
		return ledger.Slot{}, err
	}
	return ledger.Slot{
		Line:        line,
		Departure:   departure,
		Total:       int(total),
		Available:   int(available),
		Booked:      int(booked),
		LastUpdated: lastUpdated.Time,
	}, nil
}
