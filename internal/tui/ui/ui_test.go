package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rivo/tview"
)

type page struct {
	*tview.Box
	name string
}

func (p page) Name() string      { return p.name }
func (p page) Hints() []MenuHint { return []MenuHint{{Key: "Esc", Description: p.name}} }

func TestPagesStack(t *testing.T) {
	p := NewPages()
	for _, name := range []string{"Channels", "Chat", "Help"} {
		p.Add(page{Box: tview.NewBox(), name: name})
	}
	var stacks [][]string
	p.SetOnChange(func(stack []string, top Component) {
		stacks = append(stacks, stack)
		if top.Name() != stack[len(stack)-1] {
			t.Errorf("top = %s, stack = %v", top.Name(), stack)
		}
	})

	p.Reset("Channels")
	p.Push("Chat")
	p.Push("Chat")
	p.Push("Help")
	if got := p.Pop(); got != "Help" {
		t.Errorf("Pop = %q", got)
	}
	p.Pop()
	if got := p.Pop(); got != "" {
		t.Errorf("popped the last page: %q", got)
	}
	if p.Current() != "Channels" {
		t.Errorf("current = %q", p.Current())
	}

	want := [][]string{
		{"Channels"},
		{"Channels", "Chat"},
		{"Channels", "Chat", "Help"},
		{"Channels", "Chat"},
		{"Channels"},
	}
	if diff := cmp.Diff(want, stacks); diff != "" {
		t.Errorf("stack history mismatch (-want +got):\n%s", diff)
	}
}

func TestFlashModel(t *testing.T) {
	now := time.Unix(1700000000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }
	if f.Current() != nil {
		t.Fatal("fresh model has a message")
	}

	f.Err(errors.New("boom"))
	msg := f.Current()
	if msg == nil || msg.Text != "boom" || msg.Level != FlashErr || msg.Repeat != 1 {
		t.Fatalf("Current = %+v", msg)
	}
	select {
	case got := <-f.Watch():
		if got.Text != "boom" {
			t.Errorf("watched %q", got.Text)
		}
	default:
		t.Error("no message on watch channel")
	}

	now = now.Add(9 * time.Second)
	f.Err(errors.New("boom"))
	if msg := f.Current(); msg.Repeat != 2 || !msg.Expires.Equal(now.Add(10*time.Second)) {
		t.Errorf("repeated message = %+v", msg)
	}

	f.Warn("boom")
	if msg := f.Current(); msg.Repeat != 1 || msg.Level != FlashWarn {
		t.Errorf("different level should replace, got %+v", msg)
	}

	now = now.Add(time.Minute)
	if f.Current() != nil {
		t.Error("expired message still current")
	}
	f.Warn("boom")
	if msg := f.Current(); msg.Repeat != 1 {
		t.Errorf("expired message should not coalesce, got %+v", msg)
	}
}

func TestFlashBarFormat(t *testing.T) {
	fb := NewFlashBar(DefaultTheme())
	got := fb.format(FlashMessage{Text: "stream [lost]", Level: FlashWarn, Repeat: 3})
	if !strings.Contains(got, "(x3)") {
		t.Errorf("repeat count missing: %q", got)
	}
	if !strings.Contains(got, tview.Escape("stream [lost]")) {
		t.Errorf("text not escaped: %q", got)
	}
	if strings.Contains(fb.format(FlashMessage{Text: "once", Repeat: 1}), "(x") {
		t.Error("single message shows a repeat count")
	}
}

func TestMenuLayout(t *testing.T) {
	m := NewMenu(DefaultTheme())
	var hints []MenuHint
	for i := range 7 {
		hints = append(hints, MenuHint{Key: string(rune('a' + i)), Description: "hint"})
	}
	rows := strings.Split(m.layout(hints), "\n")
	if len(rows) != menuRows {
		t.Fatalf("got %d rows, want %d", len(rows), menuRows)
	}
	if !strings.Contains(rows[0], "<a>") || !strings.Contains(rows[0], "<f>") {
		t.Errorf("first row = %q, want hints a and f", rows[0])
	}
	if strings.Contains(rows[2], "<h>") {
		t.Errorf("third row = %q has an eighth hint", rows[2])
	}
	if got := m.layout(hints[:2]); strings.Count(got, "\n") != 1 {
		t.Errorf("two hints laid out as %q", got)
	}
}

func TestCrumbs(t *testing.T) {
	c := NewCrumbs(DefaultTheme(), "work")
	c.Update([]string{"Channels", "Chat"})
	got := c.format()
	for _, want := range []string{"work", "Channels", "Chat"} {
		if !strings.Contains(got, want) {
			t.Errorf("crumbs %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "unread") {
		t.Errorf("crumbs %q show unread with none", got)
	}
	c.SetUnread(4)
	if got := c.format(); !strings.Contains(got, "4 unread") {
		t.Errorf("crumbs %q missing unread total", got)
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	var submitted []string
	cancelled := 0
	p.SetOnSubmit(func(_ PromptMode, text string) { submitted = append(submitted, text) })
	p.SetOnCancel(func() { cancelled++ })

	p.Activate(PromptCommand)
	p.submit(" connect ")
	p.submit("chat amy@example.com")
	p.submit("chat amy@example.com")
	p.submit("   ")
	if diff := cmp.Diff([]string{"connect", "chat amy@example.com", "chat amy@example.com"}, submitted); diff != "" {
		t.Errorf("submitted mismatch (-want +got):\n%s", diff)
	}
	if cancelled != 1 {
		t.Errorf("blank submit cancelled %d times, want 1", cancelled)
	}
	if diff := cmp.Diff([]string{"connect", "chat amy@example.com"}, p.history); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}

	p.Activate(PromptCommand)
	p.browse(-1)
	if got := p.GetText(); got != "chat amy@example.com" {
		t.Errorf("up once = %q", got)
	}
	p.browse(-1)
	p.browse(-1)
	if got := p.GetText(); got != "connect" {
		t.Errorf("up past the oldest = %q", got)
	}
	p.browse(1)
	p.browse(1)
	if got := p.GetText(); got != "" {
		t.Errorf("down to a fresh line = %q", got)
	}

	p.Activate(PromptFilter)
	p.submit("amy")
	if len(p.history) != 2 {
		t.Errorf("filters entered the history: %v", p.history)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                             "0m",
		59 * time.Minute:              "59m",
		2*time.Hour + 5*time.Minute:   "2h5m",
		26*time.Hour + 59*time.Second: "26h0m",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
