package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/tui/model"
	"github.com/matheus3301/imsm/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageThread shows one channel's transcript and a composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField
	label    string
	onSend   func(typ backend.MessageType, text string)
}

// NewMessageThread creates a new message thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus, /me for actions) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || mt.onSend == nil {
			return
		}
		text := composer.GetText()
		if strings.TrimSpace(text) == "" {
			return
		}
		typ, body := ParseComposed(text)
		mt.onSend(typ, body)
		composer.SetText("")
	})

	return mt
}

// ParseComposed turns composer input into a typed message: "/me waves" is
// an action.
func ParseComposed(text string) (backend.MessageType, string) {
	if body, ok := strings.CutPrefix(text, "/me "); ok {
		return backend.MessageAction, body
	}
	return backend.MessageNormal, text
}

// Name implements ui.Component.
func (mt *MessageThread) Name() string { return "Chat" }

// Hints implements ui.Component.
func (mt *MessageThread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetLabel updates the title.
func (mt *MessageThread) SetLabel(label string) {
	mt.label = label
	mt.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(label)))
}

// SetOnSend sets the callback for submitted messages.
func (mt *MessageThread) SetOnSend(fn func(typ backend.MessageType, text string)) {
	mt.onSend = fn
}

// Update renders lines, oldest first.
func (mt *MessageThread) Update(lines []model.Line) {
	mt.messages.Clear()
	for _, l := range lines {
		_, _ = fmt.Fprint(mt.messages, mt.format(l))
	}
	mt.messages.ScrollToEnd()
}

func (mt *MessageThread) format(l model.Line) string {
	color := mt.theme.IncomingColor
	if l.Outgoing {
		color = mt.theme.OutgoingColor
	}
	sender := tview.Escape(sanitizeForTerminal(l.Sender))
	body := tview.Escape(sanitizeForTerminal(l.Body))

	var notes []string
	if l.Flags&backend.FlagScrollback != 0 {
		notes = append(notes, "offline")
	}
	if l.Flags&backend.FlagRescued != 0 {
		notes = append(notes, "rescued")
	}
	if l.Flags&backend.FlagTruncated != 0 {
		notes = append(notes, "truncated")
	}
	if l.Failed {
		notes = append(notes, "[red]not delivered[-]")
	}
	note := ""
	if len(notes) > 0 {
		note = " [::d](" + strings.Join(notes, ", ") + ")[-:-:-]"
	}

	ts := formatTimestamp(l.Timestamp)
	switch l.Type {
	case backend.MessageAction:
		return fmt.Sprintf("[::d]%s[-:-:-] [%s::i]* %s %s[-:-:-]%s\n", ts, ui.Color(color), sender, body, note)
	case backend.MessageNotice, backend.MessageAutoReply:
		return fmt.Sprintf("[::d]%s[-:-:-] [%s::b]%s[-:-:-] [::d]%s: %s[-:-:-]%s\n", ts, ui.Color(color), sender, l.Type, body, note)
	default:
		return fmt.Sprintf("[::d]%s[-:-:-] [%s::b]%s[-:-:-] %s%s\n", ts, ui.Color(color), sender, body, note)
	}
}

// Messages returns the transcript view for focus management.
func (mt *MessageThread) Messages() *tview.TextView {
	return mt.messages
}

// Composer returns the composer input field for focus management.
func (mt *MessageThread) Composer() *tview.InputField {
	return mt.composer
}
