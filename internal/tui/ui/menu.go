package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// menuRows is how many hints fit in the header before a new column starts.
const menuRows = 5

// Menu displays keyboard shortcut hints in columns.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders hints top to bottom, then left to right.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	_, _ = fmt.Fprint(m, m.layout(hints))
}

func (m *Menu) layout(hints []MenuHint) string {
	kc := colorName(m.theme.MenuKeyColor)
	rows := make([]string, min(len(hints), menuRows))
	for i, h := range hints {
		key := fmt.Sprintf("%-7s", "<"+h.Key+">")
		rows[i%menuRows] += fmt.Sprintf("[%s::b]%s[-:-:-] %-16s", kc, tview.Escape(key), h.Description)
	}
	return strings.Join(rows, "\n")
}
