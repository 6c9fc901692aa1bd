package export

import (
	"fmt"
	"strings"
	"time"
)

// Markdown formats the groups as a markdown document.
func Markdown(data *Data) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tabs by site (%s)\n", data.Source)
	fmt.Fprintf(&b, "> Exported %s\n", data.ExportedAt.Format("2006-01-02 15:04"))

	for _, g := range data.Groups {
		n := len(g.Tabs)
		noun := "tabs"
		if n == 1 {
			noun = "tab"
		}
		marker := ""
		if g.Highlighted {
			marker = " *"
		}
		fmt.Fprintf(&b, "\n## %s (%d %s)%s\n\n", g.Key, n, noun, marker)

		for _, tab := range g.Tabs {
			title := tab.Title
			if title == "" {
				title = tab.URL
			}
			fmt.Fprintf(&b, "- [%s](%s)", title, tab.URL)
			if !tab.LastAccessed.IsZero() {
				fmt.Fprintf(&b, " — %s", relativeTime(tab.LastAccessed, data.ExportedAt))
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
