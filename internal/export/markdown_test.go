package export

import (
	"strings"
	"testing"
	"time"

	"github.com/lotas/tabnav/internal/popup"
	"github.com/lotas/tabnav/internal/types"
)

var exportedAt = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleData() *Data {
	return &Data{
		Source:     types.SourceBridge,
		ExportedAt: exportedAt,
		Current:    3,
		Groups: []Group{
			{
				Key:         "github",
				Icon:        "gh.ico",
				Highlighted: true,
				Tabs: []*types.Tab{
					{ID: 3, Title: "Bubble Tea", URL: "https://github.com/charmbracelet/bubbletea", Highlighted: true, LastAccessed: exportedAt.Add(-24 * time.Hour)},
				},
			},
			{
				Key:  "go",
				Icon: "go.ico",
				Tabs: []*types.Tab{
					{ID: 1, Title: "Go docs", URL: "https://go.dev/doc", LastAccessed: exportedAt.Add(-3 * 24 * time.Hour)},
					{ID: 4, Title: "Tour", URL: "https://tour.go.dev"},
				},
			},
		},
	}
}

func TestMarkdown_Groups(t *testing.T) {
	result := Markdown(sampleData())

	for _, want := range []string{
		"# Tabs by site (bridge)",
		"> Exported 2026-06-01 12:00",
		"## github (1 tab) *",
		"## go (2 tabs)\n",
		"[Bubble Tea](https://github.com/charmbracelet/bubbletea) — 1d ago",
		"[Go docs](https://go.dev/doc) — 3d ago",
		"- [Tour](https://tour.go.dev)\n",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("missing %q, got:\n%s", want, result)
		}
	}
	if strings.Index(result, "## github") > strings.Index(result, "## go") {
		t.Error("groups must keep navigation order")
	}
}

func TestMarkdown_TitleFallbackToURL(t *testing.T) {
	data := &Data{
		Source:     types.SourceCDP,
		ExportedAt: exportedAt,
		Groups: []Group{
			{Key: "notitle", Tabs: []*types.Tab{{URL: "https://notitle.com/page"}}},
		},
	}

	result := Markdown(data)

	if !strings.Contains(result, "[https://notitle.com/page](https://notitle.com/page)") {
		t.Errorf("expected URL as title fallback, got:\n%s", result)
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{3 * 24 * time.Hour, "3d ago"},
		{5 * time.Hour, "5h ago"},
		{30 * time.Minute, "30m ago"},
		{10 * time.Second, "just now"},
	}
	for _, tt := range tests {
		if got := relativeTime(exportedAt.Add(-tt.ago), exportedAt); got != tt.want {
			t.Errorf("relativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestMarkdown_Empty(t *testing.T) {
	result := Markdown(&Data{Source: types.SourceFirefox, ExportedAt: exportedAt})

	if !strings.Contains(result, "# Tabs by site (firefox)") {
		t.Errorf("expected header even for empty export, got:\n%s", result)
	}
	if strings.Contains(result, "##") {
		t.Errorf("empty export has group headings:\n%s", result)
	}
}

func TestFromSession(t *testing.T) {
	s := popup.NewSession()
	s.Load([]*types.Tab{
		{ID: 1, URL: "https://go.dev", FavIconURL: "go.ico"},
		{ID: 2, URL: "http://localhost:8080"},
		{ID: 3, URL: "https://github.com", FavIconURL: "gh.ico", Highlighted: true},
		{ID: 4, URL: "https://pkg.go.dev", FavIconURL: "go.ico", Highlighted: true},
	})

	data := FromSession(s, types.SourceBridge, exportedAt)

	if len(data.Groups) != 3 {
		t.Fatalf("got %d groups", len(data.Groups))
	}
	keys := []string{data.Groups[0].Key, data.Groups[1].Key, data.Groups[2].Key}
	if keys[0] != "github" || keys[1] != "go" || keys[2] != "others" {
		t.Errorf("keys = %v, want navigation order", keys)
	}
	if !data.Groups[0].Highlighted || data.Groups[2].Icon != types.DefaultIcon {
		t.Errorf("groups = %+v", data.Groups)
	}
	if data.Current != 3 {
		t.Errorf("Current = %d, want the first highlighted tab", data.Current)
	}
	if len(data.Groups[1].Tabs) != 2 || data.Groups[1].Tabs[1].ID != 4 {
		t.Errorf("go tabs = %+v", data.Groups[1].Tabs)
	}
}
