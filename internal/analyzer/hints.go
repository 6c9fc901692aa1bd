// Package analyzer derives per-tab hints from a listing. Tabs are never
// modified; hints are keyed by tab ID.
package analyzer

import (
	"time"

	"github.com/lotas/tabnav/internal/types"
)

// Hints annotate tabs of one listing.
type Hints struct {
	Duplicate map[int]bool
	StaleDays map[int]int
}

// Analyze computes all hints. staleDays <= 0 disables the stale check.
func Analyze(tabs []*types.Tab, staleDays int, now time.Time) Hints {
	return Hints{
		Duplicate: Duplicates(tabs),
		StaleDays: Stale(tabs, staleDays, now),
	}
}

// Markers returns the short marker text for a tab, empty when it has none.
func (h Hints) Markers(id int) string {
	m := ""
	if h.Duplicate[id] {
		m += "⇄"
	}
	if _, ok := h.StaleDays[id]; ok {
		m += "◷"
	}
	return m
}

// Counts returns the number of duplicate and stale tabs.
func (h Hints) Counts() (dup, stale int) {
	return len(h.Duplicate), len(h.StaleDays)
}
