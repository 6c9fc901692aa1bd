package export

import (
	"encoding/json"
	"net/url"
	"time"
)

type jsonExport struct {
	Source     string      `json:"source"`
	ExportedAt time.Time   `json:"exported_at"`
	Groups     []jsonGroup `json:"groups"`
}

type jsonGroup struct {
	Key         string    `json:"key"`
	Icon        string    `json:"icon"`
	Highlighted bool      `json:"highlighted,omitempty"`
	Tabs        []jsonTab `json:"tabs"`
}

type jsonTab struct {
	ID                 int        `json:"id"`
	Title              string     `json:"title"`
	URL                string     `json:"url"`
	Domain             string     `json:"domain"`
	FavIconURL         string     `json:"favicon_url,omitempty"`
	Highlighted        bool       `json:"highlighted,omitempty"`
	Pinned             bool       `json:"pinned,omitempty"`
	LastAccessed       *time.Time `json:"last_accessed,omitempty"`
	LastAccessedPretty string     `json:"last_accessed_pretty,omitempty"`
}

// JSON formats the groups as a JSON document.
func JSON(data *Data) (string, error) {
	out := jsonExport{
		Source:     string(data.Source),
		ExportedAt: data.ExportedAt,
		Groups:     make([]jsonGroup, 0, len(data.Groups)),
	}

	for _, g := range data.Groups {
		group := jsonGroup{
			Key:         g.Key,
			Icon:        g.Icon,
			Highlighted: g.Highlighted,
			Tabs:        make([]jsonTab, 0, len(g.Tabs)),
		}
		for _, tab := range g.Tabs {
			jt := jsonTab{
				ID:          tab.ID,
				Title:       tab.Title,
				URL:         tab.URL,
				Domain:      extractDomain(tab.URL),
				FavIconURL:  tab.FavIconURL,
				Highlighted: data.Current != 0 && tab.ID == data.Current,
				Pinned:      tab.Pinned,
			}
			if !tab.LastAccessed.IsZero() {
				at := tab.LastAccessed
				jt.LastAccessed = &at
				jt.LastAccessedPretty = relativeTime(at, data.ExportedAt)
			}
			group.Tabs = append(group.Tabs, jt)
		}
		out.Groups = append(out.Groups, group)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
