package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuspass.org/internal/registry"
)

var _ registry.Service = (*Store)(nil)

func (s *Store) Register(ctx context.Context, number, ownerID string, kind registry.Kind, expiresAt *time.Time) (registry.Card, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return registry.Card{}, fmt.Errorf("%w: card number is required", registry.ErrInvalidInput)
	}
	if !registry.ValidKind(kind) {
		return registry.Card{}, fmt.Errorf("%w: unknown card kind %q", registry.ErrInvalidInput, kind)
	}

	var card registry.Card
	var owner sql.NullString
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		insert into cards(number, owner_id, kind, status, expires_at)
		values ($1, nullif($2,''), $3, 'active', $4)
		returning number, coalesce(owner_id,''), kind, status, issued_at, expires_at
	`, number, strings.TrimSpace(ownerID), string(kind), expiresAt).
		Scan(&card.Number, &owner, (*string)(&card.Kind), (*string)(&card.Status), &card.IssuedAt, &expires)
	if err != nil {
		if isUniqueViolation(err) {
			return registry.Card{}, registry.ErrConflict
		}
		return registry.Card{}, err
	}
	card.OwnerID = owner.String
	if expires.Valid {
		t := expires.Time
		card.ExpiresAt = &t
	}
	return card, nil
}

func (s *Store) Lookup(ctx context.Context, number string) (registry.Card, error) {
	return s.lookup(ctx, s.db, number)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) lookup(ctx context.Context, q rowQuerier, number string) (registry.Card, error) {
	var card registry.Card
	var owner sql.NullString
	var expires sql.NullTime
	err := q.QueryRowContext(ctx, `
		select number, coalesce(owner_id,''), kind, status, issued_at, expires_at
		from cards where number = $1
	`, strings.TrimSpace(number)).
		Scan(&card.Number, &owner, (*string)(&card.Kind), (*string)(&card.Status), &card.IssuedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Card{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Card{}, err
	}
	card.OwnerID = owner.String
	if expires.Valid {
		t := expires.Time
		card.ExpiresAt = &t
	}
	return card, nil
}

func (s *Store) Authorize(ctx context.Context, number string, now time.Time) (registry.Card, error) {
	card, err := s.Lookup(ctx, number)
	if err != nil {
		return registry.Card{}, err
	}
	if err := card.Authorized(now); err != nil {
		return registry.Card{}, err
	}
	return card, nil
}

func (s *Store) SetStatus(ctx context.Context, number string, status registry.Status) (registry.Card, error) {
	if !registry.ValidStatus(status) {
		return registry.Card{}, fmt.Errorf("%w: unknown card status %q", registry.ErrInvalidInput, status)
	}
	var card registry.Card
	var owner sql.NullString
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		update cards set status = $2 where number = $1
		returning number, coalesce(owner_id,''), kind, status, issued_at, expires_at
	`, strings.TrimSpace(number), string(status)).
		Scan(&card.Number, &owner, (*string)(&card.Kind), (*string)(&card.Status), &card.IssuedAt, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Card{}, registry.ErrNotFound
	}
	if err != nil {
		return registry.Card{}, err
	}
	card.OwnerID = owner.String
	if expires.Valid {
		t := expires.Time
		card.ExpiresAt = &t
	}
	return card, nil
}
