package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresTicketStore persists tickets in the shared metro database. Route
// segments travel as jsonb since the reservation subsystem is their only
// reader.
type PostgresTicketStore struct {
	pool *pgxpool.Pool
}

func NewPostgresPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

func NewPostgresTicketStore(pool *pgxpool.Pool) *PostgresTicketStore {
	return &PostgresTicketStore{pool: pool}
}

const createTicketSQL = `
INSERT INTO tickets (id, user_id, from_station, to_station, segments, interchange_station, fare, status, booking_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (s *PostgresTicketStore) CreateTicket(ctx context.Context, t Ticket) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("marshal ticket segments: %w", err)
	}

	_, err = s.pool.Exec(ctx, createTicketSQL,
		pgtype.UUID{Bytes: t.ID, Valid: true},
		t.UserID,
		t.FromStation,
		t.ToStation,
		segments,
		pgtype.Text{String: t.InterchangeStation, Valid: t.InterchangeStation != ""},
		int32(t.Fare),
		string(t.Status),
		pgtype.Timestamptz{Time: t.BookingTime, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

const getTicketSQL = `
SELECT id, user_id, from_station, to_station, segments, interchange_station, fare, status, booking_time
FROM tickets
WHERE id = $1
`

func (s *PostgresTicketStore) GetTicket(ctx context.Context, id uuid.UUID) (Ticket, error) {
	row := s.pool.QueryRow(ctx, getTicketSQL, pgtype.UUID{Bytes: id, Valid: true})
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrTicketNotFound
	}
	if err != nil {
		return Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

const updateTicketStatusSQL = `
UPDATE tickets
SET status = $2
WHERE id = $1 AND status <> $2
RETURNING id, user_id, from_station, to_station, segments, interchange_station, fare, status, booking_time
`

func (s *PostgresTicketStore) UpdateTicketStatus(ctx context.Context, id uuid.UUID, status TicketStatus) (Ticket, error) {
	row := s.pool.QueryRow(ctx, updateTicketStatusSQL, pgtype.UUID{Bytes: id, Valid: true}, string(status))
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row updated: ticket missing, or another writer already moved it.
		if _, getErr := s.GetTicket(ctx, id); getErr != nil {
			return Ticket{}, getErr
		}
		return Ticket{}, ErrTicketStatusUnchanged
	}
	if err != nil {
		return Ticket{}, fmt.Errorf("update ticket status: %w", err)
	}
	return t, nil
}

const ticketsByUserSQL = `
SELECT id, user_id, from_station, to_station, segments, interchange_station, fare, status, booking_time
FROM tickets
WHERE user_id = $1
ORDER BY booking_time DESC
`

func (s *PostgresTicketStore) TicketsByUser(ctx context.Context, userID string) ([]Ticket, error) {
	rows, err := s.pool.Query(ctx, ticketsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("tickets by user: %w", err)
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("tickets by user: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var (
		t           Ticket
		id          pgtype.UUID
		segments    []byte
		interchange pgtype.Text
		fare        int32
		status      string
		bookingTime pgtype.Timestamptz
	)
	if err := row.Scan(&id, &t.UserID, &t.FromStation, &t.ToStation, &segments, &interchange, &fare, &status, &bookingTime); err != nil {
		return Ticket{}, err
	}
	if err := json.Unmarshal(segments, &t.Segments); err != nil {
		return Ticket{}, fmt.Errorf("unmarshal ticket segments: %w", err)
	}
	t.ID = uuid.UUID(id.Bytes)
	t.InterchangeStation = interchange.String
	t.Fare = int(fare)
	t.Status = TicketStatus(status)
	t.BookingTime = bookingTime.Time
	return t, nil
}
