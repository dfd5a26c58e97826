package session

import (
	"sort"
	"time"
)

// group holds the rows of one session ordered by timestamp.
type group struct {
	id   string
	rows []*Row
}

// partition splits rows by session identifier. Groups come out ordered by
// identifier and rows inside a group by timestamp; equal keys keep input order.
func partition(rows []*Row) []*group {
	sorted := make([]*Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SessionID != sorted[j].SessionID {
			return sorted[i].SessionID < sorted[j].SessionID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var groups []*group
	for _, r := range sorted {
		if n := len(groups); n > 0 && groups[n-1].id == r.SessionID {
			groups[n-1].rows = append(groups[n-1].rows, r)
			continue
		}
		groups = append(groups, &group{id: r.SessionID, rows: []*Row{r}})
	}

	return groups
}

// overrideTransactional marks every row of the group as transactional when
// any of them carries a slot type.
func (g *group) overrideTransactional() {
	for _, r := range g.rows {
		if r.hasSlotType() {
			for _, r := range g.rows {
				r.Transactional = transactionalValue
			}
			return
		}
	}
}

// fill resolves intent and knowledge domain to the first value the session
// carried, in timestamp order, and gives every row that value.
func (g *group) fill() {
	fillField(g.rows, func(r *Row) *string { return &r.Intent })
	fillField(g.rows, func(r *Row) *string { return &r.KnowledgeDomain })
}

func fillField(rows []*Row, field func(*Row) *string) {
	first := ""
	for _, r := range rows {
		if v := *field(r); v != "" {
			first = v
			break
		}
	}
	if first == "" {
		return
	}

	for _, r := range rows {
		*field(r) = first
	}
}

// representative returns the row that best summarizes the session: a turn
// that resolved an intent itself first, then the longest conversation log,
// then the latest turn.
func (g *group) representative() *Row {
	ranked := make([]*Row, len(g.rows))
	copy(ranked, g.rows)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.HasIntent() != b.HasIntent() {
			return a.HasIntent()
		}
		if la, lb := a.ConversationLogLength(), b.ConversationLogLength(); la != lb {
			return la > lb
		}
		return a.Timestamp.After(b.Timestamp)
	})

	return ranked[0]
}

// span returns the first and last timestamps of the session.
func (g *group) span() (time.Time, time.Time) {
	start, end := g.rows[0].Timestamp, g.rows[0].Timestamp
	for _, r := range g.rows[1:] {
		if r.Timestamp.Before(start) {
			start = r.Timestamp
		}
		if r.Timestamp.After(end) {
			end = r.Timestamp
		}
	}
	return start, end
}
