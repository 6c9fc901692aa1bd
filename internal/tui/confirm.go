package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabnav/internal/popup"
	"github.com/lotas/tabnav/internal/types"
)

// ConfirmDialog asks before a tab is closed.
type ConfirmDialog struct {
	TabID  int
	Prompt string
	URL    string
}

func NewConfirmDialog(tab *types.Tab) *ConfirmDialog {
	return &ConfirmDialog{
		TabID:  tab.ID,
		Prompt: popup.ConfirmPrompt(tab),
		URL:    tab.URL,
	}
}

func (d ConfirmDialog) View(width int) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	urlWidth := width - 12
	if urlWidth < 20 {
		urlWidth = 20
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Prompt) + "\n")
	b.WriteString(normalStyle.Render(dimStyle.Render(TruncateWidth(d.URL, urlWidth))) + "\n\n")
	b.WriteString(normalStyle.Render("y close · n/esc keep"))

	return boxStyle.Render(b.String())
}
