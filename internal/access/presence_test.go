package access

import (
	"testing"
	"time"
)

func evAt(card string, dir Direction, seq uint64, at time.Time) Event {
	return Event{
		ID:         "ev",
		CardNumber: card,
		Direction:  dir,
		RecordedAt: at,
		Sequence:   seq,
	}
}

func TestReplayDuplicateIn(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []Event{
		evAt("C1", DirectionIn, 1, base),
		evAt("C1", DirectionIn, 2, base.Add(time.Minute)),
		evAt("C1", DirectionOut, 3, base.Add(2*time.Minute)),
	}
	if inside := Replay(events); len(inside) != 0 {
		t.Fatalf("[in,in,out] must end outside, got %v", inside)
	}
}

func TestReplayDuplicateOut(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []Event{
		evAt("C1", DirectionIn, 1, base),
		evAt("C1", DirectionOut, 2, base.Add(time.Minute)),
		evAt("C1", DirectionOut, 3, base.Add(2*time.Minute)),
	}
	if inside := Replay(events); len(inside) != 0 {
		t.Fatalf("[in,out,out] must end outside, got %v", inside)
	}
}

func TestReplaySpuriousExitFirst(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []Event{
		evAt("C1", DirectionOut, 1, base),
		evAt("C1", DirectionIn, 2, base.Add(time.Minute)),
	}
	inside := Replay(events)
	entered, ok := inside["C1"]
	if !ok {
		t.Fatal("expected C1 inside after [out,in]")
	}
	if !entered.Equal(base.Add(time.Minute)) {
		t.Fatalf("entry time must be the in transition, got %v", entered)
	}
}

func TestReplayEntryTimeIsFirstEffectiveIn(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []Event{
		evAt("C1", DirectionIn, 1, base),
		evAt("C1", DirectionIn, 2, base.Add(time.Hour)), // duplicate, must not move entry time
	}
	inside := Replay(events)
	if entered := inside["C1"]; !entered.Equal(base) {
		t.Fatalf("entry time moved on duplicate in: %v", entered)
	}
}

func TestReplayIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []Event{
		evAt("C1", DirectionIn, 1, base),
		evAt("C2", DirectionIn, 2, base.Add(time.Minute)),
		evAt("C1", DirectionOut, 3, base.Add(2*time.Minute)),
		evAt("C3", DirectionOut, 4, base.Add(3*time.Minute)),
		evAt("C2", DirectionIn, 5, base.Add(4*time.Minute)),
	}
	first := Replay(events)
	second := Replay(events)
	if len(first) != len(second) {
		t.Fatalf("replay not idempotent: %v vs %v", first, second)
	}
	for card, at := range first {
		if other, ok := second[card]; !ok || !other.Equal(at) {
			t.Fatalf("replay not idempotent for %s: %v vs %v", card, at, other)
		}
	}
	if _, ok := first["C2"]; !ok {
		t.Fatal("expected C2 inside")
	}
	if _, ok := first["C1"]; ok {
		t.Fatal("C1 tapped out, must not be inside")
	}
}

func TestReplayIndependentCards(t *testing.T) {
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	events := []Event{
		evAt("C1", DirectionIn, 1, base),
		evAt("C2", DirectionOut, 2, base.Add(time.Second)),
	}
	inside := Replay(events)
	if _, ok := inside["C1"]; !ok {
		t.Fatal("C2's exit must not affect C1")
	}
}
