package views

import (
	"fmt"

	"github.com/matheus3301/imsm/internal/qr"
	"github.com/matheus3301/imsm/internal/tui/ui"
	"github.com/rivo/tview"
)

// PairView shows the pairing QR code.
type PairView struct {
	*tview.TextView
}

// NewPairView creates a new pairing view.
func NewPairView(theme *ui.Theme) *PairView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Pair Device ")
	tv.SetTitleColor(theme.TitleColor)

	return &PairView{TextView: tv}
}

// Name implements ui.Component.
func (pv *PairView) Name() string { return "Pair" }

// Hints implements ui.Component.
func (pv *PairView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Cancel"},
	}
}

// ShowCode renders a pairing code as a scannable QR block.
func (pv *PairView) ShowCode(code string) {
	pv.Clear()
	art, err := qr.Render(code, "  ")
	if err != nil {
		pv.ShowMessage("QR generation failed: " + err.Error())
		return
	}
	_, _ = fmt.Fprintf(pv, "\n  Scan this code from the phone's linked devices screen:\n\n%s\n  [::d]Waiting for the phone...", art)
}

// ShowMessage displays a status message.
func (pv *PairView) ShowMessage(msg string) {
	pv.Clear()
	_, _ = fmt.Fprintf(pv, "\n\n%s", tview.Escape(msg))
}
