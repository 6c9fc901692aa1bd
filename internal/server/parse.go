package server

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/lotas/tabnav/internal/types"
)

type wireTab struct {
	ID           int     `json:"id"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	LastAccessed float64 `json:"lastAccessed"`
	WindowID     int     `json:"windowId"`
	Index        int     `json:"index"`
	FavIconURL   string  `json:"favIconUrl"`
	Highlighted  bool    `json:"highlighted"`
	Active       bool    `json:"active"`
	Pinned       bool    `json:"pinned"`
}

// tab converts the wire form. byActive selects the active flag as the
// highlight; otherwise the extension's highlighted flag is used.
func (wt wireTab) tab(byActive bool) *types.Tab {
	current := wt.Highlighted
	if byActive {
		current = wt.Active
	}
	tab := &types.Tab{
		ID:          wt.ID,
		URL:         wt.URL,
		Title:       wt.Title,
		FavIconURL:  wt.FavIconURL,
		Highlighted: current,
		WindowID:    wt.WindowID,
		Index:       wt.Index,
		Pinned:      wt.Pinned,
	}
	if wt.LastAccessed > 0 {
		tab.LastAccessed = time.UnixMilli(int64(wt.LastAccessed))
	}
	return tab
}

// ParseTabs converts the tab array of a query response.
func ParseTabs(raw json.RawMessage) ([]*types.Tab, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wts []wireTab
	if err := json.Unmarshal(raw, &wts); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	// Multi-selected tabs are all highlighted; the active one is the current
	// tab whenever the extension reports it.
	byActive := slices.ContainsFunc(wts, func(wt wireTab) bool { return wt.Active })
	tabs := make([]*types.Tab, 0, len(wts))
	for _, wt := range wts {
		tabs = append(tabs, wt.tab(byActive))
	}
	return tabs, nil
}

// ParseTab converts a raw JSON tab into a Tab.
func ParseTab(raw json.RawMessage) (*types.Tab, error) {
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, err
	}
	return wt.tab(wt.Active), nil
}
