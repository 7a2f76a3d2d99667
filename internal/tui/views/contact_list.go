package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imsm/internal/roster"
	"github.com/matheus3301/imsm/internal/tui/ui"
	"github.com/rivo/tview"
)

// ContactList shows the roster.
type ContactList struct {
	*tview.Table
	theme    *ui.Theme
	contacts []roster.Contact
}

// NewContactList creates the roster table.
func NewContactList(theme *ui.Theme) *ContactList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ContactList{Table: table, theme: theme}
	cl.Update(nil)
	return cl
}

// Name implements ui.Component.
func (cl *ContactList) Name() string { return "Contacts" }

// Hints implements ui.Component.
func (cl *ContactList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Chat"},
		{Key: "Esc", Description: "Back"},
	}
}

// Update replaces the contacts.
func (cl *ContactList) Update(contacts []roster.Contact) {
	cl.contacts = contacts
	cl.Clear()
	for col, h := range []string{" IDENTIFIER", " ALIAS", " SUBSCRIPTION", " ASK"} {
		cl.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(1))
	}
	for i, c := range contacts {
		ask := ""
		if c.AskPending {
			ask = " pending"
		}
		cl.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(c.Identifier)).SetTextColor(cl.theme.FgColor))
		cl.SetCell(i+1, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(c.Alias))).SetTextColor(cl.theme.FgColor))
		cl.SetCell(i+1, 2, tview.NewTableCell(" "+string(c.Subscription)).SetTextColor(cl.theme.FgColor))
		cl.SetCell(i+1, 3, tview.NewTableCell(ask).SetTextColor(cl.theme.UnreadColor))
	}
	cl.SetTitle(fmt.Sprintf(" Contacts (%d) ", len(contacts)))
}

// Selected returns the highlighted contact's identifier, or "".
func (cl *ContactList) Selected() string {
	row, _ := cl.GetSelection()
	if row < 1 || row > len(cl.contacts) {
		return ""
	}
	return cl.contacts[row-1].Identifier
}
