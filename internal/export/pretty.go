package export

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Pretty renders the markdown export for a terminal. style is a glamour
// style name such as "dark", "light" or "notty".
func Pretty(data *Data, style string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(Markdown(data))
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out, nil
}
