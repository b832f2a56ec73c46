package access

import "time"

// insideState is the per-card accumulator of the presence fold.
type insideState struct {
	inside    bool
	enteredAt time.Time
}

// Replay folds an ordered event slice into the per-card inside state and
// returns, for every card that ends up inside, the timestamp of the
// transition that put it there.
//
// Events must be sorted ascending by (RecordedAt, Sequence). The fold is a
// pure function of the slice: replaying the same log always yields the same
// result, which is what makes presence reconcilable after any storage
// hiccup. Duplicate same-direction taps are no-ops — hardware can't dedupe
// scans, so the gate records them verbatim and the fold absorbs them:
//
//	in  while outside -> inside, entry time recorded
//	in  while inside  -> no-op
//	out while inside  -> outside
//	out while outside -> no-op
func Replay(events []Event) map[string]time.Time {
	states := make(map[string]*insideState)
	for _, ev := range events {
		st := states[ev.CardNumber]
		if st == nil {
			st = &insideState{}
			states[ev.CardNumber] = st
		}
		switch ev.Direction {
		case DirectionIn:
			if !st.inside {
				st.inside = true
				st.enteredAt = ev.RecordedAt
			}
		case DirectionOut:
			st.inside = false
		}
	}

	inside := make(map[string]time.Time)
	for number, st := range states {
		if st.inside {
			inside[number] = st.enteredAt
		}
	}
	return inside
}

// dayBounds returns the local-midnight start of the service-day containing
// t, and t itself as the upper bound.
func dayBounds(t time.Time, loc *time.Location) (from, to time.Time) {
	local := t.In(loc)
	from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return from, t
}
