package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/rivo/tview"
)

// FlashLevel represents the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// flashTTL is how long a message of each level stays up.
var flashTTL = map[FlashLevel]time.Duration{
	FlashInfo: 5 * time.Second,
	FlashWarn: 8 * time.Second,
	FlashErr:  10 * time.Second,
}

// FlashMessage is a flash notification. Repeat counts how many times the
// same text was raised while it was showing.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Repeat  int
	Expires time.Time
}

// FlashModel holds the current transient notification. Messages are
// written from RPC goroutines and read on the UI goroutine.
type FlashModel struct {
	mu      sync.Mutex
	now     func() time.Time
	current FlashMessage
	watchCh chan FlashMessage
}

// NewFlashModel creates a new flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{
		now:     time.Now,
		watchCh: make(chan FlashMessage, 8),
	}
}

func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo) }
func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn) }
func (f *FlashModel) Err(err error)   { f.set(err.Error(), FlashErr) }

// set shows msg. Raising the text that is already up bumps its repeat count
// and restarts its timer instead of replacing it.
func (f *FlashModel) set(msg string, level FlashLevel) {
	now := f.now()
	f.mu.Lock()
	if f.live(now) && f.current.Text == msg && f.current.Level == level {
		f.current.Repeat++
	} else {
		f.current = FlashMessage{Text: msg, Level: level, Repeat: 1}
	}
	f.current.Expires = now.Add(flashTTL[level])
	fm := f.current
	f.mu.Unlock()

	select {
	case f.watchCh <- fm:
	default:
	}
}

func (f *FlashModel) live(now time.Time) bool {
	return f.current.Text != "" && now.Before(f.current.Expires)
}

// Current returns the live flash message, or nil once it expired.
func (f *FlashModel) Current() *FlashMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live(f.now()) {
		return nil
	}
	m := f.current
	return &m
}

// Watch returns a channel that receives every new or repeated message.
func (f *FlashModel) Watch() <-chan FlashMessage {
	return f.watchCh
}

// FlashBar displays flash notifications.
type FlashBar struct {
	*tview.TextView
	theme *Theme
}

// NewFlashBar creates a new flash notification bar.
func NewFlashBar(theme *Theme) *FlashBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &FlashBar{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders msg, or clears the bar when msg is nil.
func (fb *FlashBar) Update(msg *FlashMessage) {
	fb.Clear()
	if msg == nil {
		return
	}
	_, _ = fmt.Fprint(fb, fb.format(*msg))
}

func (fb *FlashBar) format(msg FlashMessage) string {
	color := fb.theme.FlashInfoColor
	switch msg.Level {
	case FlashWarn:
		color = fb.theme.FlashWarnColor
	case FlashErr:
		color = fb.theme.FlashErrColor
	}
	text := tview.Escape(msg.Text)
	if msg.Repeat > 1 {
		text = fmt.Sprintf("%s (x%d)", text, msg.Repeat)
	}
	return fmt.Sprintf(" [%s]%s[-]", colorName(color), text)
}
