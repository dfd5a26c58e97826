// Package session reshapes logged interaction turns into one row per
// conversation session.
package session

import (
	"sort"

	"golang.org/x/xerrors"
)

var (
	// ErrMissingSessionID means no event carried a session identifier field.
	ErrMissingSessionID = xerrors.New("input has no session identifier field")

	// ErrMissingTimestamp means an event came without a timestamp.
	ErrMissingTimestamp = xerrors.New("input event has no timestamp")
)

// Transform reduces raw events to one Session per distinct session
// identifier. Events without a session identifier are dropped. The result is
// ordered by session start, latest first.
func Transform(events []RawEvent) ([]*Session, error) {
	if len(events) == 0 {
		return nil, nil
	}

	rows := make([]*Row, 0, len(events))
	sawSessionID := false

	for i, e := range events {
		if e.Timestamp.IsZero() {
			return nil, xerrors.Errorf("event %d: %w", i, ErrMissingTimestamp)
		}

		f := Flatten(e)
		if f.Has(FieldSessionID) {
			sawSessionID = true
		}

		r := newRow(f)
		if r.SessionID == "" {
			continue
		}
		rows = append(rows, r)
	}

	if !sawSessionID {
		return nil, ErrMissingSessionID
	}

	groups := partition(rows)

	byID := make(map[string][]*Row, len(groups))
	for _, r := range rows {
		byID[r.SessionID] = append(byID[r.SessionID], r)
	}

	sessions := make([]*Session, 0, len(groups))
	for _, g := range groups {
		g.overrideTransactional()
		g.fill()

		start, end := g.span()
		c := resolveContact(g.id, byID[g.id])

		sessions = append(sessions, newSession(g.representative(), start, end, c))
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Start.After(sessions[j].Start)
	})

	return sessions, nil
}
