package ui

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
)

// Crumbs shows the account and the page stack as a breadcrumb trail,
// followed by the number of unread messages across all channels.
type Crumbs struct {
	*tview.TextView
	theme   *Theme
	account string
	stack   []string
	unread  int
}

// NewCrumbs creates a breadcrumb bar for account.
func NewCrumbs(theme *Theme, account string) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
		account:  account,
	}
}

// Update sets the page stack.
func (c *Crumbs) Update(stack []string) {
	c.stack = append(c.stack[:0], stack...)
	c.render()
}

// SetUnread sets the unread total.
func (c *Crumbs) SetUnread(n int) {
	if n == c.unread {
		return
	}
	c.unread = n
	c.render()
}

func (c *Crumbs) render() {
	c.Clear()
	_, _ = fmt.Fprint(c, c.format())
}

func (c *Crumbs) format() string {
	parts := make([]string, 0, len(c.stack)+1)
	trail := append([]string{c.account}, c.stack...)
	for i, name := range trail {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(trail)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", colorName(fg), colorName(bg), attr, tview.Escape(name)))
	}
	out := strings.Join(parts, " > ")
	if c.unread > 0 {
		out += fmt.Sprintf("  [%s::b]%d unread[-:-:-]", colorName(c.theme.UnreadColor), c.unread)
	}
	return out
}
