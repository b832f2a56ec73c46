package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuspass.org/internal/ids"
	"campuspass.org/internal/queue"
)

var _ queue.Service = (*Store)(nil)

const ticketColumns = `id, to_char(service_day,'YYYY-MM-DD'), number, requester_id,
	coalesce(purpose,''), status, coalesce(window_number,0), created_at, called_at, completed_at`

func scanTicket(row interface{ Scan(...any) error }) (queue.Ticket, error) {
	var t queue.Ticket
	var called, completed sql.NullTime
	err := row.Scan(&t.ID, &t.ServiceDay, &t.Number, &t.RequesterID, &t.Purpose,
		(*string)(&t.Status), &t.Window, &t.CreatedAt, &called, &completed)
	if err != nil {
		return queue.Ticket{}, err
	}
	if called.Valid {
		v := called.Time
		t.CalledAt = &v
	}
	if completed.Valid {
		v := completed.Time
		t.CompletedAt = &v
	}
	return t, nil
}

// Issue assigns the next number through an upsert on the per-day counter
// row: the increment and the read happen in one statement, so concurrent
// calls are serialized by the row lock and can neither share nor skip a
// number. The unique (service_day, number) constraint on tickets backs
// this up.
func (s *Store) Issue(ctx context.Context, requesterID, purpose string, now time.Time) (queue.Ticket, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return queue.Ticket{}, fmt.Errorf("%w: requester is required", queue.ErrInvalidInput)
	}
	day := queue.ServiceDay(now, s.loc)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return queue.Ticket{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var number int
	if err := tx.QueryRowContext(ctx, `
		insert into queue_days(service_day, last_number)
		values ($1, 1)
		on conflict (service_day) do update
		set last_number = queue_days.last_number + 1
		returning last_number
	`, day).Scan(&number); err != nil {
		return queue.Ticket{}, err
	}

	id := ids.NewAt(now)
	row := tx.QueryRowContext(ctx, `
		insert into queue_tickets(id, service_day, number, requester_id, purpose, status, created_at)
		values ($1, $2, $3, $4, nullif($5,''), 'waiting', $6)
		returning `+ticketColumns+`
	`, id, day, number, requesterID, strings.TrimSpace(purpose), now.UTC())
	ticket, err := scanTicket(row)
	if err != nil {
		if isUniqueViolation(err) {
			return queue.Ticket{}, fmt.Errorf("%w: %d for %s", queue.ErrConflict, number, day)
		}
		return queue.Ticket{}, err
	}

	if err := tx.Commit(); err != nil {
		return queue.Ticket{}, err
	}
	return ticket, nil
}

// CallNext claims the oldest waiting ticket with a conditional update:
// the claim lands only if the ticket is still waiting at write time
// (FOR UPDATE SKIP LOCKED keeps concurrent windows off the same row), and
// the partial unique index on (service_day, window_number) where
// status='serving' rejects a second serving ticket per window.
func (s *Store) CallNext(ctx context.Context, window int, now time.Time) (queue.Ticket, error) {
	if window <= 0 {
		return queue.Ticket{}, fmt.Errorf("%w: window must be positive", queue.ErrInvalidInput)
	}
	day := queue.ServiceDay(now, s.loc)

	row := s.db.QueryRowContext(ctx, `
		update queue_tickets
		set status = 'serving', window_number = $2, called_at = $3
		where id = (
			select id from queue_tickets
			where service_day = $1 and status = 'waiting'
			order by number asc
			limit 1
			for update skip locked
		)
		returning `+ticketColumns+`
	`, day, window, now.UTC())
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Ticket{}, queue.ErrEmpty
	}
	if err != nil {
		if isUniqueViolation(err) {
			return queue.Ticket{}, queue.ErrWindowBusy
		}
		return queue.Ticket{}, err
	}
	return ticket, nil
}

// Complete is a conditional update: it succeeds only if the ticket is
// still serving at write time.
func (s *Store) Complete(ctx context.Context, ticketID string, now time.Time) (queue.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		update queue_tickets
		set status = 'completed', completed_at = $2
		where id = $1 and status = 'serving'
		returning `+ticketColumns+`
	`, ticketID, now.UTC())
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Ticket{}, s.transitionError(ctx, ticketID, queue.StatusCompleted)
	}
	if err != nil {
		return queue.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) Cancel(ctx context.Context, ticketID string) (queue.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		update queue_tickets
		set status = 'cancelled'
		where id = $1 and status in ('waiting','serving')
		returning `+ticketColumns+`
	`, ticketID)
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Ticket{}, s.transitionError(ctx, ticketID, queue.StatusCancelled)
	}
	if err != nil {
		return queue.Ticket{}, err
	}
	return ticket, nil
}

// transitionError distinguishes a missing ticket from an illegal move
// after a conditional update matched no row.
func (s *Store) transitionError(ctx context.Context, ticketID string, to queue.Status) error {
	var status string
	err := s.db.QueryRowContext(ctx, `select status from queue_tickets where id = $1`, ticketID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", queue.ErrInvalidTransition, status, to)
}

func (s *Store) Get(ctx context.Context, ticketID string) (queue.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+ticketColumns+` from queue_tickets where id = $1
	`, ticketID)
	ticket, err := scanTicket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Ticket{}, queue.ErrNotFound
	}
	if err != nil {
		return queue.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) Display(ctx context.Context, now time.Time) (queue.Display, error) {
	day := queue.ServiceDay(now, s.loc)

	rows, err := s.db.QueryContext(ctx, `
		select `+ticketColumns+`
		from queue_tickets
		where service_day = $1 and status in ('waiting','serving')
		order by number asc
	`, day)
	if err != nil {
		return queue.Display{}, err
	}
	defer rows.Close()

	d := queue.Display{ServiceDay: day, Waiting: []queue.Ticket{}, Serving: []queue.Ticket{}}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return queue.Display{}, err
		}
		switch ticket.Status {
		case queue.StatusWaiting:
			d.Waiting = append(d.Waiting, ticket)
		case queue.StatusServing:
			d.Serving = append(d.Serving, ticket)
		}
	}
	return d, rows.Err()
}
