package tui

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabnav/internal/analyzer"
	"github.com/lotas/tabnav/internal/types"
	"github.com/mattn/go-runewidth"
)

// NavWidthPct is the share of terminal width used by the site column.
const NavWidthPct = 30

var (
	cursorStyle    = lipgloss.NewStyle().Bold(true).Reverse(true)
	expandedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	countStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	currentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	highlightGlyph = "●"
)

// TruncateWidth cuts s to at most w terminal cells, ending in "…" when cut.
func TruncateWidth(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}

// padWidth right-pads s with spaces to w terminal cells.
func padWidth(s string, w int) string {
	if gap := w - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

// listPane keeps the cursor and scroll offset of one column.
type listPane struct {
	Cursor int
	Offset int
	Width  int
	Height int
}

func (p *listPane) visibleRows() int {
	if p.Height < 1 {
		return 20
	}
	return p.Height
}

// MoveUp moves the cursor up.
func (p *listPane) MoveUp() {
	if p.Cursor > 0 {
		p.Cursor--
	}
	if p.Cursor < p.Offset {
		p.Offset = p.Cursor
	}
}

// MoveDown moves the cursor down within n items.
func (p *listPane) MoveDown(n int) {
	if p.Cursor < n-1 {
		p.Cursor++
	}
	p.follow()
}

// Clamp keeps the cursor on one of n items and in view.
func (p *listPane) Clamp(n int) {
	if p.Cursor >= n {
		p.Cursor = n - 1
	}
	if p.Cursor < 0 {
		p.Cursor = 0
	}
	if p.Offset > p.Cursor {
		p.Offset = p.Cursor
	}
	p.follow()
}

func (p *listPane) follow() {
	if rows := p.visibleRows(); p.Cursor >= p.Offset+rows {
		p.Offset = p.Cursor - rows + 1
	}
}

// render lays out pre-rendered lines, highlighting the cursor line when
// the pane has focus.
func (p listPane) render(lines []string, focused bool) string {
	end := p.Offset + p.visibleRows()
	if end > len(lines) {
		end = len(lines)
	}
	var b strings.Builder
	for i := p.Offset; i < end; i++ {
		line := lines[i]
		if focused && i == p.Cursor {
			line = cursorStyle.Render(padWidth(line, p.Width))
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// navLines renders one line per navigation entry: position, key and count.
// The group holding the current tab carries a marker.
func navLines(nav []types.NavEntry, expanded string, width int) []string {
	lines := make([]string, len(nav))
	for i, e := range nav {
		marker := " "
		if e.Highlighted {
			marker = currentStyle.Render(highlightGlyph)
		}
		count := fmt.Sprintf(" (%d)", e.Count)
		pos := "  "
		if i < 9 {
			pos = fmt.Sprintf("%d ", i+1)
		}
		room := width - 2 - len(pos) - len(count)
		label := TruncateWidth(e.Key, room)
		if e.Key == expanded {
			label = expandedStyle.Render(label)
		}
		lines[i] = marker + " " + dimStyle.Render(pos) + label + countStyle.Render(count)
	}
	return lines
}

// rowLines renders the expanded group. The current tab leads with a marker
// and reads as not actionable; duplicate and stale tabs carry their hints.
func rowLines(rows []types.Row, hints analyzer.Hints, width int) []string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		title := r.Tab.Title
		if title == "" {
			title = r.Tab.URL
		}
		prefix := "  "
		if !r.Switchable {
			prefix = currentStyle.Render(highlightGlyph) + " "
		}
		marker := ""
		if mk := hints.Markers(r.Tab.ID); mk != "" {
			marker = hintStyle.Render(mk) + " "
		}
		host := displayHost(r.Tab.URL)
		titleRoom := width - 2 - lipgloss.Width(marker)
		if host != "" {
			titleRoom -= runewidth.StringWidth(host) + 2
		}
		if titleRoom < 10 {
			titleRoom = width - 2 - lipgloss.Width(marker)
			host = ""
		}
		line := prefix + marker + TruncateWidth(title, titleRoom)
		if host != "" {
			line = padWidth(line, width-runewidth.StringWidth(host)) + dimStyle.Render(host)
		}
		lines[i] = line
	}
	return lines
}

// rowsTitle heads the rows pane with the expanded group's key.
func rowsTitle(key string, count int, width int) string {
	suffix := fmt.Sprintf(" (%d)", count)
	label := TruncateWidth(key, width-len(suffix))
	return expandedStyle.Render(label) + countStyle.Render(suffix)
}

func displayHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}
