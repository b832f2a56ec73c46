package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterAndLookup(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	card, err := s.Register(ctx, "C1", "user-1", KindStudent, nil)
	if err != nil {
		t.Fatal(err)
	}
	if card.Status != StatusActive {
		t.Fatalf("new cards must start active, got %s", card.Status)
	}

	got, err := s.Lookup(ctx, "C1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Number != "C1" || got.OwnerID != "user-1" || got.Kind != KindStudent {
		t.Fatalf("unexpected card: %#v", got)
	}
}

func TestRegisterConflict(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Register(ctx, "C1", "", KindPersonnel, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register(ctx, "C1", "", KindStudent, nil); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if _, err := s.Register(ctx, "  ", "", KindStudent, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank number, got %v", err)
	}
	if _, err := s.Register(ctx, "C2", "", Kind("robot"), nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown kind, got %v", err)
	}
}

// Authorize must return success iff status=active and (no expiry or expiry
// in the future), across the whole status x expiry matrix.
func TestAuthorizeMatrix(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	exactly := now
	future := now.Add(time.Hour)

	cases := []struct {
		name      string
		status    Status
		expiresAt *time.Time
		want      error
	}{
		{"active no expiry", StatusActive, nil, nil},
		{"active future expiry", StatusActive, &future, nil},
		{"active past expiry", StatusActive, &past, ErrExpired},
		{"active expiry at now", StatusActive, &exactly, ErrExpired},
		{"inactive no expiry", StatusInactive, nil, ErrInactive},
		{"inactive future expiry", StatusInactive, &future, ErrInactive},
		{"inactive past expiry", StatusInactive, &past, ErrInactive},
		{"lost no expiry", StatusLost, nil, ErrInactive},
		{"lost future expiry", StatusLost, &future, ErrInactive},
		{"lost past expiry", StatusLost, &past, ErrInactive},
	}
	for _, tc := range cases {
		card := Card{Number: "C1", Kind: KindStudent, Status: tc.status, ExpiresAt: tc.expiresAt}
		err := card.Authorized(now)
		if tc.want == nil && err != nil {
			t.Fatalf("%s: expected authorized, got %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestAuthorizeThroughService(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := s.Authorize(ctx, "ghost", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.Register(ctx, "C1", "", KindPersonnel, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Authorize(ctx, "C1", now); err != nil {
		t.Fatalf("expected authorized, got %v", err)
	}

	if _, err := s.SetStatus(ctx, "C1", StatusLost); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Authorize(ctx, "C1", now); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive after lost, got %v", err)
	}
}

func TestSetStatusNotFound(t *testing.T) {
	s := NewInMemory()
	if _, err := s.SetStatus(context.Background(), "ghost", StatusInactive); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
