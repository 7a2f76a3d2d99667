package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/imsm/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpEntry is one line of the help page.
type HelpEntry struct {
	Key         string
	Description string
}

// HelpSection groups entries under a heading.
type HelpSection struct {
	Title   string
	Entries []HelpEntry
}

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a help page listing sections.
func NewHelpView(theme *ui.Theme, sections []HelpSection) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{TextView: tv, theme: theme}
	hv.render(sections)
	return hv
}

// Name implements ui.Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements ui.Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render(sections []HelpSection) {
	kc := ui.Color(hv.theme.MenuKeyColor)
	width := 0
	for _, s := range sections {
		for _, e := range s.Entries {
			width = max(width, len(e.Key))
		}
	}

	var sb strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&sb, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, e := range s.Entries {
			pad := strings.Repeat(" ", width-len(e.Key))
			fmt.Fprintf(&sb, "  [%s]%s[-:-:-]%s  %s\n", kc, tview.Escape(e.Key), pad, e.Description)
		}
	}
	_, _ = fmt.Fprint(hv, sb.String())
}
