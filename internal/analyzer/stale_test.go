package analyzer

import (
	"testing"
	"time"

	"github.com/lotas/tabnav/internal/types"
)

func TestStale(t *testing.T) {
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	tabs := []*types.Tab{
		{ID: 1, URL: "https://fresh.com", LastAccessed: now.Add(-1 * time.Hour)},
		{ID: 2, URL: "https://stale.com", LastAccessed: now.Add(-10 * 24 * time.Hour)},
		{ID: 3, URL: "https://very-stale.com", LastAccessed: now.Add(-30 * 24 * time.Hour)},
		{ID: 4, URL: "https://unknown.com"},
	}

	stale := Stale(tabs, 7, now)

	if _, ok := stale[1]; ok {
		t.Error("fresh tab should not be stale")
	}
	if stale[2] != 10 {
		t.Errorf("expected 10 stale days, got %d", stale[2])
	}
	if stale[3] != 30 {
		t.Errorf("expected 30 stale days, got %d", stale[3])
	}
	if _, ok := stale[4]; ok {
		t.Error("tab without access time should not be stale")
	}

	if len(Stale(tabs, 0, now)) != 0 {
		t.Error("threshold 0 should disable the check")
	}
}

func TestHints(t *testing.T) {
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	tabs := []*types.Tab{
		{ID: 1, URL: "https://go.dev/doc", LastAccessed: now.Add(-9 * 24 * time.Hour)},
		{ID: 2, URL: "https://go.dev/doc#install"},
		{ID: 3, URL: "https://go.dev/blog"},
	}

	h := Analyze(tabs, 7, now)

	if got := h.Markers(1); got != "⇄◷" {
		t.Errorf("Markers(1) = %q", got)
	}
	if got := h.Markers(2); got != "⇄" {
		t.Errorf("Markers(2) = %q", got)
	}
	if got := h.Markers(3); got != "" {
		t.Errorf("Markers(3) = %q", got)
	}
	if dup, stale := h.Counts(); dup != 2 || stale != 1 {
		t.Errorf("Counts() = %d, %d", dup, stale)
	}
}
