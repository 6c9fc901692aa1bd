// Package groups maintains the ordered mapping from group key to tabs.
package groups

import (
	"slices"

	"github.com/lotas/tabnav/internal/applog"
	"github.com/lotas/tabnav/internal/domainkey"
	"github.com/lotas/tabnav/internal/types"
)

// Index maps group keys to tabs. Keys iterate in first-appearance order and
// tabs within a group keep fetch order. Empty groups never remain.
type Index struct {
	keys        []string
	tabs        map[string][]*types.Tab
	highlighted int // first highlighted tab in fetch order, 0 if none
}

// Build groups tabs by their domain key in a single pass.
func Build(tabs []*types.Tab) *Index {
	idx := &Index{tabs: make(map[string][]*types.Tab)}
	for _, tab := range tabs {
		key, err := domainkey.Extract(tab)
		if err != nil {
			applog.Error("groups.key", err, "tab", tab.ID)
			key = domainkey.Others
		}
		idx.add(key, tab)
		if tab.Highlighted && idx.highlighted == 0 {
			idx.highlighted = tab.ID
		}
	}
	return idx
}

func (idx *Index) add(key string, tab *types.Tab) {
	if _, ok := idx.tabs[key]; !ok {
		idx.keys = append(idx.keys, key)
	}
	idx.tabs[key] = append(idx.tabs[key], tab)
}

// Keys returns group keys in first-appearance order.
func (idx *Index) Keys() []string {
	return slices.Clone(idx.keys)
}

// Tabs returns the tabs of a group, or nil if the key is unknown.
func (idx *Index) Tabs(key string) []*types.Tab {
	return slices.Clone(idx.tabs[key])
}

// Has reports whether the group exists.
func (idx *Index) Has(key string) bool {
	_, ok := idx.tabs[key]
	return ok
}

// Len returns the number of groups.
func (idx *Index) Len() int {
	return len(idx.keys)
}

// TabCount returns the number of tabs across all groups.
func (idx *Index) TabCount() int {
	n := 0
	for _, tabs := range idx.tabs {
		n += len(tabs)
	}
	return n
}

// Find locates a tab by its host ID.
func (idx *Index) Find(id int) (string, *types.Tab, bool) {
	for _, key := range idx.keys {
		for _, tab := range idx.tabs[key] {
			if tab.ID == id {
				return key, tab, true
			}
		}
	}
	return "", nil, false
}

// Highlighted returns the highlighted tab and the key of its group. When the
// host flags several tabs, the first one in fetch order wins.
func (idx *Index) Highlighted() (string, *types.Tab, bool) {
	if idx.highlighted == 0 {
		return "", nil, false
	}
	return idx.Find(idx.highlighted)
}

// Remove drops a tab by ID. When its group becomes empty the group is
// deleted and emptied is true.
func (idx *Index) Remove(id int) (key string, emptied bool, ok bool) {
	key, _, ok = idx.Find(id)
	if !ok {
		return "", false, false
	}
	if id == idx.highlighted {
		idx.highlighted = 0
	}
	idx.tabs[key] = slices.DeleteFunc(idx.tabs[key], func(t *types.Tab) bool {
		return t.ID == id
	})
	if len(idx.tabs[key]) == 0 {
		delete(idx.tabs, key)
		idx.keys = slices.DeleteFunc(idx.keys, func(k string) bool { return k == key })
		return key, true, true
	}
	return key, false, true
}
