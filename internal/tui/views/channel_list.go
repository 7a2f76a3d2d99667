package views

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imsm/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChannelRow is one line of the channel list.
type ChannelRow struct {
	Path      string
	Label     string
	Unread    int
	Requested bool
	CreatedAt time.Time
}

// ChannelList is the main page: the account's live text channels.
type ChannelList struct {
	*tview.Table
	theme  *ui.Theme
	rows   []ChannelRow
	filter string
}

// NewChannelList creates the channel table.
func NewChannelList(theme *ui.Theme) *ChannelList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ChannelList{Table: table, theme: theme}
	cl.render()
	return cl
}

// Name implements ui.Component.
func (cl *ChannelList) Name() string { return "Channels" }

// Hints implements ui.Component.
func (cl *ChannelList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "1-9", Description: "Jump"},
		{Key: "/", Description: "Filter"},
	}
}

// Update replaces the rows.
func (cl *ChannelList) Update(rows []ChannelRow) {
	cl.rows = rows
	cl.render()
}

// SetFilter shows only rows whose label contains filter.
func (cl *ChannelList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

func (cl *ChannelList) visible() []ChannelRow {
	if cl.filter == "" {
		return cl.rows
	}
	var out []ChannelRow
	f := strings.ToLower(cl.filter)
	for _, r := range cl.rows {
		if strings.Contains(strings.ToLower(r.Label), f) {
			out = append(out, r)
		}
	}
	return out
}

func (cl *ChannelList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" CONTACT", 2},
		{" UNREAD", 0},
		{" ORIGIN", 0},
		{" OPENED", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	rows := cl.visible()
	for i, r := range rows {
		fg := cl.theme.FgColor
		unread := ""
		if r.Unread > 0 {
			fg = cl.theme.UnreadColor
			unread = strconv.Itoa(r.Unread)
		}
		origin := "remote"
		if r.Requested {
			origin = "local"
		}
		cl.SetCell(i+1, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(r.Label))).SetExpansion(2).SetTextColor(fg))
		cl.SetCell(i+1, 1, tview.NewTableCell(unread).SetTextColor(fg).SetAlign(tview.AlignRight))
		cl.SetCell(i+1, 2, tview.NewTableCell(" "+origin).SetTextColor(cl.theme.FgColor))
		cl.SetCell(i+1, 3, tview.NewTableCell(formatTimestamp(r.CreatedAt)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Channels (%d/%d) filter: %s ", len(rows), len(cl.rows), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Channels (%d) ", len(cl.rows)))
	}
}

// Selected returns the path of the highlighted channel, or "".
func (cl *ChannelList) Selected() string {
	row, _ := cl.GetSelection()
	return cl.ByIndex(row)
}

// ByIndex returns the path of the nth visible channel, counting from 1.
func (cl *ChannelList) ByIndex(n int) string {
	rows := cl.visible()
	if n < 1 || n > len(rows) {
		return ""
	}
	return rows[n-1].Path
}
