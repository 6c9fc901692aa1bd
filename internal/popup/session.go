// Package popup holds the state of one popup open: the group index, the
// side navigation, the expanded group and the tab actions on top of a host.
package popup

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/groups"
	"github.com/lotas/tabnav/internal/types"
)

// State is the popup lifecycle state.
type State int

const (
	StateLoading State = iota
	StateRendered
	StateEmpty // no group selected
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateRendered:
		return "rendered"
	case StateEmpty:
		return "empty"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	confirmTitleMax = 25
	confirmTitleCut = 24
)

var (
	ErrUnknownGroup = errors.New("unknown group")
	ErrUnknownTab   = errors.New("unknown tab")
	ErrNotDeletable = errors.New("highlighted tab cannot be deleted")
)

// Session is the popup state for one open. It is owned by a single
// goroutine; none of its methods are safe for concurrent use.
type Session struct {
	state       State
	index       *groups.Index
	nav         []types.NavEntry
	ordinals    map[int]string
	expanded    string
	highlighted int // tab ID, 0 if none
}

// NewSession returns a session in the loading state.
func NewSession() *Session {
	return &Session{
		state:    StateLoading,
		index:    groups.Build(nil),
		ordinals: make(map[int]string),
	}
}

// Load replaces the session contents with a fresh tab listing, renders the
// navigation and expands the highlighted group.
func (s *Session) Load(tabs []*types.Tab) {
	s.index = groups.Build(tabs)
	s.highlighted = 0
	if _, tab, ok := s.index.Highlighted(); ok {
		s.highlighted = tab.ID
	}
	s.renderNavigation()

	if len(s.nav) == 0 {
		s.expanded = ""
		s.state = StateEmpty
		applog.Info("popup.empty")
		return
	}
	// The highlighted entry is pinned first; without one the first group wins.
	s.expanded = s.nav[0].Key
	s.state = StateRendered
	applog.Info("popup.rendered", "groups", len(s.nav), "tabs", s.index.TabCount(), "expanded", s.expanded)
}

// renderNavigation rebuilds the navigation entries and the ordinal table.
func (s *Session) renderNavigation() {
	hlKey, _, hasHL := s.index.Highlighted()

	s.ordinals = make(map[int]string, s.index.Len())
	s.nav = s.nav[:0]
	var pinned *types.NavEntry
	for ordinal, key := range s.index.Keys() {
		s.ordinals[ordinal] = key
		tabs := s.index.Tabs(key)
		entry := types.NavEntry{
			Ordinal:     ordinal,
			Key:         key,
			Icon:        tabs[0].FavIconURL,
			Highlighted: hasHL && key == hlKey,
			Count:       len(tabs),
		}
		if entry.Icon == "" {
			entry.Icon = types.DefaultIcon
		}
		if entry.Highlighted {
			pinned = &entry
			continue
		}
		s.nav = append(s.nav, entry)
	}
	if pinned != nil {
		s.nav = slices.Insert(s.nav, 0, *pinned)
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Navigation returns the navigation entries, highlighted group first.
func (s *Session) Navigation() []types.NavEntry {
	return slices.Clone(s.nav)
}

// KeyForOrdinal resolves a navigation ordinal from the current render.
func (s *Session) KeyForOrdinal(n int) (string, bool) {
	key, ok := s.ordinals[n]
	return key, ok
}

// Expanded returns the expanded group key, empty when none is selected.
func (s *Session) Expanded() string {
	return s.expanded
}

// HighlightedID returns the ID of the highlighted tab, 0 if none.
func (s *Session) HighlightedID() int {
	return s.highlighted
}

// TabCount returns the number of tabs still listed.
func (s *Session) TabCount() int {
	return s.index.TabCount()
}

// Expand makes key the single expanded group.
func (s *Session) Expand(key string) error {
	if !s.index.Has(key) {
		return fmt.Errorf("%w: %q", ErrUnknownGroup, key)
	}
	s.expanded = key
	s.state = StateRendered
	return nil
}

// ExpandOrdinal expands the group behind a navigation ordinal.
func (s *Session) ExpandOrdinal(n int) error {
	key, ok := s.KeyForOrdinal(n)
	if !ok {
		return fmt.Errorf("%w: ordinal %d", ErrUnknownGroup, n)
	}
	return s.Expand(key)
}

// Rows renders the expanded group. The highlighted tab comes first and can
// be neither switched to nor deleted.
func (s *Session) Rows() []types.Row {
	if s.expanded == "" {
		return nil
	}
	tabs := s.index.Tabs(s.expanded)
	rows := make([]types.Row, 0, len(tabs))
	for _, tab := range tabs {
		row := types.Row{Tab: tab, Switchable: true, Deletable: true}
		if s.isHighlighted(tab) {
			row.Switchable = false
			row.Deletable = false
			rows = slices.Insert(rows, 0, row)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func (s *Session) isHighlighted(tab *types.Tab) bool {
	return s.highlighted != 0 && tab.ID == s.highlighted
}

// GroupTabs returns the tabs of a group in fetch order.
func (s *Session) GroupTabs(key string) []*types.Tab {
	return s.index.Tabs(key)
}

// AllTabs returns every listed tab, group by group.
func (s *Session) AllTabs() []*types.Tab {
	tabs := make([]*types.Tab, 0, s.index.TabCount())
	for _, key := range s.index.Keys() {
		tabs = append(tabs, s.index.Tabs(key)...)
	}
	return tabs
}

// Tab returns a listed tab by ID.
func (s *Session) Tab(id int) (*types.Tab, bool) {
	_, tab, ok := s.index.Find(id)
	return tab, ok
}

// CheckDeletable reports why a tab cannot be closed from the popup.
func (s *Session) CheckDeletable(id int) (*types.Tab, error) {
	tab, ok := s.Tab(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTab, id)
	}
	if s.isHighlighted(tab) {
		return nil, fmt.Errorf("%w: %d", ErrNotDeletable, id)
	}
	return tab, nil
}

// TabClosed applies a confirmed host removal. An emptied group loses its
// navigation entry and the first remaining entry is expanded.
func (s *Session) TabClosed(id int) bool {
	key, emptied, ok := s.index.Remove(id)
	if !ok {
		return false
	}
	if !emptied {
		s.refreshCount(key)
		return true
	}

	s.nav = slices.DeleteFunc(s.nav, func(e types.NavEntry) bool { return e.Key == key })
	applog.Info("popup.group.removed", "group", key)
	if s.expanded != key {
		return true
	}
	if len(s.nav) == 0 {
		s.expanded = ""
		s.state = StateEmpty
		return true
	}
	s.expanded = s.nav[0].Key
	return true
}

func (s *Session) refreshCount(key string) {
	for i := range s.nav {
		if s.nav[i].Key == key {
			s.nav[i].Count = len(s.index.Tabs(key))
			return
		}
	}
}

// ConfirmPrompt is the question asked before closing a tab.
func ConfirmPrompt(tab *types.Tab) string {
	return "Are you sure to delete this tab? " + ConfirmTitle(tab.Title)
}

// ConfirmTitle shortens titles longer than 25 characters.
func ConfirmTitle(title string) string {
	if len([]rune(title)) <= confirmTitleMax {
		return title
	}
	return string([]rune(title)[:confirmTitleCut]) + "..."
}

