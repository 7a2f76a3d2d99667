package ui

import (
	"fmt"
	"time"

	"github.com/rivo/tview"
)

// AccountData is what the header shows about the account.
type AccountData struct {
	Account  string
	Backend  string
	SelfID   string
	Status   string
	Reason   string
	Channels int
	Contacts int
	Uptime   time.Duration
}

// AccountInfo displays account metadata in the header.
type AccountInfo struct {
	*tview.TextView
	theme *Theme
}

// NewAccountInfo creates a new account info panel.
func NewAccountInfo(theme *Theme) *AccountInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &AccountInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders data.
func (ai *AccountInfo) Update(data AccountData) {
	ai.Clear()

	fg := colorName(ai.theme.FgColor)
	val := colorName(ai.theme.CounterColor)
	st := colorName(ai.theme.OfflineColor)
	if data.Status == "CONNECTED" {
		st = colorName(ai.theme.OnlineColor)
	}
	status := data.Status
	if data.Reason != "" {
		status += " (" + data.Reason + ")"
	}
	self := data.SelfID
	if self == "" {
		self = "-"
	}

	_, _ = fmt.Fprintf(ai,
		"[%s::b]Account:[-:-:-]  [%s]%s[-] [::d]%s[-:-:-]\n"+
			"[%s::b]Self:[-:-:-]     [%s]%s[-]\n"+
			"[%s::b]Status:[-:-:-]   [%s]%s[-]\n"+
			"[%s::b]Channels:[-:-:-] [%s]%d[-]\n"+
			"[%s::b]Contacts:[-:-:-] [%s]%d[-]\n"+
			"[%s::b]Uptime:[-:-:-]   [%s]%s[-]",
		fg, val, tview.Escape(data.Account), data.Backend,
		fg, val, tview.Escape(self),
		fg, st, status,
		fg, val, data.Channels,
		fg, val, data.Contacts,
		fg, val, formatDuration(data.Uptime),
	)
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
