package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuspass.org/internal/ids"
	"campuspass.org/internal/registry"
	"campuspass.org/internal/visitor"
)

var _ visitor.Service = (*Store)(nil)

const sessionColumns = `id, card_number, first_name, last_name, coalesce(contact_number,''),
	coalesce(purpose,''), coalesce(visiting,''), coalesce(id_type,''), coalesce(id_number,''),
	status, created_at, completed_at`

func scanSession(row interface{ Scan(...any) error }) (visitor.Session, error) {
	var sess visitor.Session
	var completed sql.NullTime
	err := row.Scan(&sess.ID, &sess.CardNumber, &sess.FirstName, &sess.LastName,
		&sess.ContactNumber, &sess.Purpose, &sess.Visiting, &sess.IDType, &sess.IDNumber,
		(*string)(&sess.Status), &sess.CreatedAt, &completed)
	if err != nil {
		return visitor.Session{}, err
	}
	if completed.Valid {
		v := completed.Time
		sess.CompletedAt = &v
	}
	return sess, nil
}

// Admit inserts the visitor card and its session in one transaction;
// partial creation is never observable.
func (s *Store) Admit(ctx context.Context, req visitor.AdmitRequest, now time.Time) (visitor.Session, registry.Card, error) {
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" {
		return visitor.Session{}, registry.Card{}, fmt.Errorf("%w: visitor name is required", visitor.ErrInvalidInput)
	}
	number := strings.TrimSpace(req.CardNumber)
	if number == "" {
		return visitor.Session{}, registry.Card{}, fmt.Errorf("%w: card number is required", registry.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return visitor.Session{}, registry.Card{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var card registry.Card
	var expires sql.NullTime
	err = tx.QueryRowContext(ctx, `
		insert into cards(number, kind, status, expires_at)
		values ($1, 'visitor', 'active', $2)
		returning number, kind, status, issued_at, expires_at
	`, number, req.ExpiresAt).
		Scan(&card.Number, (*string)(&card.Kind), (*string)(&card.Status), &card.IssuedAt, &expires)
	if err != nil {
		if isUniqueViolation(err) {
			return visitor.Session{}, registry.Card{}, registry.ErrConflict
		}
		return visitor.Session{}, registry.Card{}, err
	}
	if expires.Valid {
		t := expires.Time
		card.ExpiresAt = &t
	}

	row := tx.QueryRowContext(ctx, `
		insert into visitor_sessions(id, card_number, first_name, last_name, contact_number,
			purpose, visiting, id_type, id_number, status, created_at)
		values ($1, $2, $3, $4, nullif($5,''), nullif($6,''), nullif($7,''), nullif($8,''), nullif($9,''), 'active', $10)
		returning `+sessionColumns+`
	`, ids.NewAt(now), card.Number, strings.TrimSpace(req.FirstName), strings.TrimSpace(req.LastName),
		strings.TrimSpace(req.ContactNumber), strings.TrimSpace(req.Purpose), strings.TrimSpace(req.Visiting),
		strings.TrimSpace(req.IDType), strings.TrimSpace(req.IDNumber), now.UTC())
	sess, err := scanSession(row)
	if err != nil {
		return visitor.Session{}, registry.Card{}, err
	}

	if err := tx.Commit(); err != nil {
		return visitor.Session{}, registry.Card{}, err
	}
	return sess, card, nil
}

func (s *Store) Get(ctx context.Context, id string) (visitor.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+sessionColumns+` from visitor_sessions where id = $1
	`, strings.TrimSpace(id))
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return visitor.Session{}, visitor.ErrNotFound
	}
	if err != nil {
		return visitor.Session{}, err
	}
	return sess, nil
}

func (s *Store) CompleteByCard(ctx context.Context, cardNumber string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.completeSessionTx(ctx, tx, strings.TrimSpace(cardNumber), now); err != nil {
		return err
	}
	return tx.Commit()
}

// completeSessionTx closes the active session linked to the card and
// retires the card, inside the caller's transaction. The conditional
// update makes it idempotent: a second run matches no row and does
// nothing.
func (s *Store) completeSessionTx(ctx context.Context, tx *sql.Tx, cardNumber string, now time.Time) error {
	res, err := tx.ExecContext(ctx, `
		update visitor_sessions
		set status = 'completed', completed_at = $2
		where card_number = $1 and status = 'active'
	`, cardNumber, now.UTC())
	if err != nil {
		return err
	}
	closed, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if closed == 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx, `
		update cards set status = 'inactive' where number = $1
	`, cardNumber)
	return err
}

// Sweep closes every active session whose card has expired. One statement,
// so overlapping sweeps just race to update the same rows and the loser
// matches nothing.
func (s *Store) Sweep(ctx context.Context, now time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		update visitor_sessions vs
		set status = 'completed', completed_at = $1
		from cards c
		where c.number = vs.card_number
		  and vs.status = 'active'
		  and c.expires_at is not null
		  and c.expires_at <= $1
		returning vs.card_number
	`, now.UTC())
	if err != nil {
		return 0, err
	}
	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return 0, err
		}
		numbers = append(numbers, n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, n := range numbers {
		if _, err := tx.ExecContext(ctx, `update cards set status = 'inactive' where number = $1`, n); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(numbers), nil
}
