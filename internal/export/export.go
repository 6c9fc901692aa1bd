// Package export renders the grouped navigation as Markdown or JSON.
package export

import (
	"time"

	"github.com/lotas/tabnav/internal/popup"
	"github.com/lotas/tabnav/internal/types"
)

// Group is one navigation entry with its tabs.
type Group struct {
	Key         string
	Icon        string
	Highlighted bool
	Tabs        []*types.Tab
}

// Data is everything an export needs.
type Data struct {
	Source     types.Source
	ExportedAt time.Time
	Current    int // highlighted tab ID, 0 if none
	Groups     []Group
}

// FromSession collects the groups in navigation order.
func FromSession(s *popup.Session, source types.Source, now time.Time) *Data {
	nav := s.Navigation()
	data := &Data{
		Source:     source,
		ExportedAt: now,
		Current:    s.HighlightedID(),
		Groups:     make([]Group, 0, len(nav)),
	}
	for _, e := range nav {
		data.Groups = append(data.Groups, Group{
			Key:         e.Key,
			Icon:        e.Icon,
			Highlighted: e.Highlighted,
			Tabs:        s.GroupTabs(e.Key),
		})
	}
	return data
}
