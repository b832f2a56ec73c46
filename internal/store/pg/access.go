package pg

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"campuspass.org/internal/access"
	"campuspass.org/internal/ids"
	"campuspass.org/internal/registry"
)

var _ access.Service = (*Store)(nil)

// RecordTap authorizes the card, appends exactly one event and, for the
// exit of a visitor badge, closes the linked session — all in one
// transaction, so a visitor's card and session can never diverge.
func (s *Store) RecordTap(ctx context.Context, cardNumber, accessPoint string, dir access.Direction, verifiedBy string, now time.Time) (access.Event, error) {
	cardNumber = strings.TrimSpace(cardNumber)
	accessPoint = strings.TrimSpace(accessPoint)
	if cardNumber == "" || accessPoint == "" {
		return access.Event{}, fmt.Errorf("%w: card number and access point are required", access.ErrInvalidInput)
	}
	if !access.ValidDirection(dir) {
		return access.Event{}, access.ErrInvalidDirection
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return access.Event{}, err
	}
	defer func() { _ = tx.Rollback() }()

	card, err := s.lookup(ctx, tx, cardNumber)
	if err != nil {
		return access.Event{}, err
	}
	if err := card.Authorized(now); err != nil {
		// Rejected taps append nothing.
		return access.Event{}, err
	}

	ev := access.Event{
		ID:          ids.NewAt(now),
		CardNumber:  card.Number,
		AccessPoint: accessPoint,
		Direction:   dir,
		VerifiedBy:  strings.TrimSpace(verifiedBy),
	}
	var verified sql.NullString
	if ev.VerifiedBy != "" {
		verified = sql.NullString{String: ev.VerifiedBy, Valid: true}
	}
	err = tx.QueryRowContext(ctx, `
		insert into access_events(id, card_number, access_point, direction, verified_by, recorded_at)
		values ($1, $2, $3, $4, $5, $6)
		returning recorded_at, sequence
	`, ev.ID, ev.CardNumber, ev.AccessPoint, string(ev.Direction), verified, now.UTC()).
		Scan(&ev.RecordedAt, &ev.Sequence)
	if err != nil {
		return access.Event{}, err
	}

	if dir == access.DirectionOut && card.Kind == registry.KindVisitor {
		if err := s.completeSessionTx(ctx, tx, card.Number, now); err != nil {
			return access.Event{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return access.Event{}, err
	}
	return ev, nil
}

func (s *Store) ListEvents(ctx context.Context, limit int, afterSeq uint64) ([]access.Event, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, card_number, access_point, direction, coalesce(verified_by,''), recorded_at, sequence
		from access_events
		where sequence > $1
		order by sequence asc
		limit $2
	`, afterSeq, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var res []access.Event
	var last uint64
	for rows.Next() {
		var ev access.Event
		if err := rows.Scan(&ev.ID, &ev.CardNumber, &ev.AccessPoint, (*string)(&ev.Direction), &ev.VerifiedBy, &ev.RecordedAt, &ev.Sequence); err != nil {
			return nil, 0, err
		}
		res = append(res, ev)
		last = ev.Sequence
	}
	return res, last, rows.Err()
}

// Presence replays the service-day's events through the same fold the
// in-memory service uses. The query sees a consistent snapshot; it may lag
// the newest append by the store's propagation delay.
func (s *Store) Presence(ctx context.Context, asOf time.Time) ([]access.Presence, error) {
	local := asOf.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	rows, err := s.db.QueryContext(ctx, `
		select id, card_number, access_point, direction, coalesce(verified_by,''), recorded_at, sequence
		from access_events
		where recorded_at >= $1 and recorded_at <= $2
		order by recorded_at asc, sequence asc
	`, from, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []access.Event
	for rows.Next() {
		var ev access.Event
		if err := rows.Scan(&ev.ID, &ev.CardNumber, &ev.AccessPoint, (*string)(&ev.Direction), &ev.VerifiedBy, &ev.RecordedAt, &ev.Sequence); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	inside := access.Replay(events)
	res := make([]access.Presence, 0, len(inside))
	for number, enteredAt := range inside {
		card, err := s.Lookup(ctx, number)
		if err != nil {
			return nil, err
		}
		res = append(res, access.Presence{Card: card, EnteredAt: enteredAt})
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].EnteredAt.Equal(res[j].EnteredAt) {
			return res[i].EnteredAt.Before(res[j].EnteredAt)
		}
		return res[i].Card.Number < res[j].Card.Number
	})
	return res, nil
}

func (s *Store) PresenceSummary(ctx context.Context, asOf time.Time) (map[registry.Kind]int, error) {
	present, err := s.Presence(ctx, asOf)
	if err != nil {
		return nil, err
	}
	counts := make(map[registry.Kind]int)
	for _, p := range present {
		counts[p.Card.Kind]++
	}
	return counts, nil
}
