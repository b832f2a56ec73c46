package visitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"campuspass.org/internal/access"
	"campuspass.org/internal/registry"
)

func admitReq(card string, expiresAt *time.Time) AdmitRequest {
	return AdmitRequest{
		CardNumber: card,
		FirstName:  "Ana",
		LastName:   "Reyes",
		Purpose:    "enrollment inquiry",
		Visiting:   "registrar",
		ExpiresAt:  expiresAt,
	}
}

func TestAdmitCreatesCardAndSession(t *testing.T) {
	cards := registry.NewInMemory()
	vis := NewInMemory(cards)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	expires := now.Add(24 * time.Hour)

	sess, card, err := vis.Admit(ctx, admitReq("V1", &expires), now)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Status != StatusActive {
		t.Fatalf("session must start active, got %s", sess.Status)
	}
	if card.Kind != registry.KindVisitor || card.Status != registry.StatusActive {
		t.Fatalf("unexpected card: %#v", card)
	}
	if sess.CardNumber != card.Number {
		t.Fatalf("session/card link broken: %s vs %s", sess.CardNumber, card.Number)
	}
}

func TestAdmitConflictLeavesNothing(t *testing.T) {
	cards := registry.NewInMemory()
	vis := NewInMemory(cards)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := cards.Register(ctx, "V1", "", registry.KindStudent, nil); err != nil {
		t.Fatal(err)
	}

	_, _, err := vis.Admit(ctx, admitReq("V1", nil), now)
	if !errors.Is(err, registry.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	// No orphan session may exist for the taken card number.
	if err := vis.CompleteByCard(ctx, "V1", now); err != nil {
		t.Fatal(err)
	}
	card, err := cards.Lookup(ctx, "V1")
	if err != nil {
		t.Fatal(err)
	}
	if card.Status != registry.StatusActive {
		t.Fatalf("failed admit must not touch the existing card, got %s", card.Status)
	}
}

func TestAdmitValidation(t *testing.T) {
	vis := NewInMemory(registry.NewInMemory())
	_, _, err := vis.Admit(context.Background(), AdmitRequest{CardNumber: "V1"}, time.Now())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

// Scenario: visitor card with expiry now+24h, tap in then out: the session
// completes and the linked card goes inactive.
func TestExitTapCompletesSession(t *testing.T) {
	cards := registry.NewInMemory()
	vis := NewInMemory(cards)
	gate := access.NewInMemory(cards, access.WithExitObserver(vis), access.WithLocation(time.UTC))
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	expires := now.Add(24 * time.Hour)

	sess, card, err := vis.Admit(ctx, admitReq("V1", &expires), now)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := gate.RecordTap(ctx, card.Number, "MainGate", access.DirectionIn, "", now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if _, err := gate.RecordTap(ctx, card.Number, "MainGate", access.DirectionOut, "", now.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	got, err := vis.Get(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("session must complete on exit, got %#v", got)
	}
	after, err := cards.Lookup(ctx, card.Number)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != registry.StatusInactive {
		t.Fatalf("card must be retired with the session, got %s", after.Status)
	}

	// A retired badge cannot re-enter.
	if _, err := gate.RecordTap(ctx, card.Number, "MainGate", access.DirectionIn, "", now.Add(3*time.Hour)); !errors.Is(err, registry.ErrInactive) {
		t.Fatalf("expected ErrInactive for retired badge, got %v", err)
	}
}

func TestCompleteByCardIdempotent(t *testing.T) {
	cards := registry.NewInMemory()
	vis := NewInMemory(cards)
	ctx := context.Background()
	now := time.Now().UTC()

	sess, card, err := vis.Admit(ctx, admitReq("V1", nil), now)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := vis.CompleteByCard(ctx, card.Number, now); err != nil {
			t.Fatalf("completion %d: %v", i, err)
		}
	}
	got, _ := vis.Get(ctx, sess.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	// Unknown card is a no-op too.
	if err := vis.CompleteByCard(ctx, "ghost", now); err != nil {
		t.Fatal(err)
	}
}

func TestSweepClosesExpiredOnly(t *testing.T) {
	cards := registry.NewInMemory()
	vis := NewInMemory(cards)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	soon := now.Add(time.Hour)
	longVisit := now.Add(48 * time.Hour)
	expired, _, err := vis.Admit(ctx, admitReq("V1", &soon), now)
	if err != nil {
		t.Fatal(err)
	}
	fresh, _, err := vis.Admit(ctx, admitReq("V2", &longVisit), now)
	if err != nil {
		t.Fatal(err)
	}
	forever, _, err := vis.Admit(ctx, admitReq("V3", nil), now)
	if err != nil {
		t.Fatal(err)
	}

	closed, err := vis.Sweep(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if closed != 1 {
		t.Fatalf("expected 1 closed session, got %d", closed)
	}

	for _, tc := range []struct {
		id   string
		want Status
	}{
		{expired.ID, StatusCompleted},
		{fresh.ID, StatusActive},
		{forever.ID, StatusActive},
	} {
		got, err := vis.Get(ctx, tc.id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != tc.want {
			t.Fatalf("session %s: expected %s, got %s", tc.id, tc.want, got.Status)
		}
	}

	// Overlapping or repeated sweeps close nothing further.
	closed, err = vis.Sweep(ctx, now.Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if closed != 0 {
		t.Fatalf("repeat sweep must be a no-op, closed %d", closed)
	}
}
