// Package tui is the terminal front end. It talks to a running daemon over
// its RPC socket and follows the daemon's event stream.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/imsm/internal/backend"
	"github.com/matheus3301/imsm/internal/rpc"
	"github.com/matheus3301/imsm/internal/tui/client"
	"github.com/matheus3301/imsm/internal/tui/keys"
	"github.com/matheus3301/imsm/internal/tui/model"
	"github.com/matheus3301/imsm/internal/tui/ui"
	"github.com/matheus3301/imsm/internal/tui/views"
	"github.com/rivo/tview"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	callTimeout     = 10 * time.Second
	refreshInterval = 5 * time.Second
	watchRetry      = 2 * time.Second
)

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	pages    *ui.Pages
	vm       *model.ViewModel
	client   *client.Client
	account  string
	registry *keys.Registry
	flash    *ui.FlashModel

	root     *tview.Flex
	logo     *ui.Logo
	info     *ui.AccountInfo
	menu     *ui.Menu
	crumbs   *ui.Crumbs
	flashBar *ui.FlashBar
	prompt   *ui.Prompt

	channels *views.ChannelList
	contacts *views.ContactList
	thread   *views.MessageThread
	pair     *views.PairView
	help     *views.HelpView

	ctx        context.Context
	cancel     context.CancelFunc
	pairCancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, account string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		theme:    theme,
		pages:    ui.NewPages(),
		vm:       model.NewViewModel(c),
		client:   c,
		account:  account,
		registry: keys.NewRegistry(),
		flash:    ui.NewFlashModel(),
		logo:     ui.NewLogo(theme),
		info:     ui.NewAccountInfo(theme),
		menu:     ui.NewMenu(theme),
		crumbs:   ui.NewCrumbs(theme, account),
		flashBar: ui.NewFlashBar(theme),
		prompt:   ui.NewPrompt(theme),
		channels: views.NewChannelList(theme),
		contacts: views.NewContactList(theme),
		thread:   views.NewMessageThread(theme),
		pair:     views.NewPairView(theme),
		ctx:      ctx,
		cancel:   cancel,
	}
	a.setupBindings()
	a.help = views.NewHelpView(theme, a.helpSections())
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit",
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help",
		Handler: func() { a.show(a.help.Name()) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command",
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddView(a.channels.Name(), &keys.Action{
		Key: tcell.KeyRune, Rune: 'c', Description: "Contacts",
		Handler: func() { a.show(a.contacts.Name()) },
	})
	a.registry.AddView(a.channels.Name(), &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Filter",
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddView(a.thread.Name(), &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddView(a.thread.Name(), &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Description: "Close channel",
		Handler: func() { a.run(ui.PromptCommand, "close") },
	})
}

func (a *App) helpSections() []views.HelpSection {
	keysSection := views.HelpSection{Title: "Keys"}
	for _, page := range []string{a.channels.Name(), a.thread.Name()} {
		for _, h := range a.registry.Hints(page) {
			keysSection.Entries = append(keysSection.Entries, views.HelpEntry{Key: h.Key, Description: h.Description})
		}
	}
	keysSection.Entries = append(keysSection.Entries,
		views.HelpEntry{Key: "1-9", Description: "Open the nth channel"},
		views.HelpEntry{Key: "Esc", Description: "Back"},
	)
	return []views.HelpSection{keysSection, commandHelp()}
}

func (a *App) setupCallbacks() {
	a.channels.SetSelectedFunc(func(row, _ int) {
		if path := a.channels.ByIndex(row); path != "" {
			a.openChannel(path)
		}
	})
	a.contacts.SetSelectedFunc(func(_, _ int) {
		if id := a.contacts.Selected(); id != "" {
			a.openContact(id)
		}
	})
	a.thread.SetOnSend(func(typ backend.MessageType, text string) {
		a.async(func(ctx context.Context) error {
			if err := a.vm.Send(ctx, typ, text); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			return nil
		})
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		a.run(mode, text)
	})
	a.prompt.SetOnChange(func(_ ui.PromptMode, text string) {
		a.channels.SetFilter(text)
	})
	a.prompt.SetOnCancel(func() {
		a.hidePrompt()
		a.channels.SetFilter("")
	})
	a.pages.SetOnChange(func(stack []string, top ui.Component) {
		a.crumbs.Update(stack)
		if top != nil {
			a.menu.Update(append(top.Hints(), a.registry.Hints(top.Name())...))
		}
	})
}

func (a *App) setupLayout() {
	for _, c := range []ui.Component{a.channels, a.contacts, a.thread, a.pair, a.help} {
		a.pages.Add(c)
	}
	a.root = tview.NewFlex().SetDirection(tview.FlexRow)
	a.rebuildRoot(false)
	a.pages.Reset(a.channels.Name())
	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.capture)
}

func (a *App) capture(event *tcell.EventKey) *tcell.EventKey {
	focused := a.app.GetFocus()
	if event.Key() == tcell.KeyEscape {
		if focused == a.thread.Composer() {
			a.app.SetFocus(a.thread.Messages())
			return nil
		}
		if focused == a.prompt.InputField {
			return event
		}
		a.back()
		return nil
	}

	// Text inputs get every other key.
	if _, ok := focused.(*tview.InputField); ok {
		return event
	}

	current := a.pages.Current()
	if current == a.channels.Name() && event.Key() == tcell.KeyRune && event.Rune() >= '1' && event.Rune() <= '9' {
		if path := a.channels.ByIndex(int(event.Rune() - '0')); path != "" {
			a.openChannel(path)
		}
		return nil
	}
	if a.registry.HandleEvent(current, event) {
		return nil
	}
	return event
}

// show pushes a page and focuses it.
func (a *App) show(name string) {
	a.pages.Push(name)
	a.focusTop()
}

func (a *App) back() {
	switch a.pages.Pop() {
	case a.thread.Name():
		a.vm.Leave()
	case a.pair.Name():
		if a.pairCancel != nil {
			a.pairCancel()
		}
	}
	a.refresh()
	a.focusTop()
}

func (a *App) focusTop() {
	switch a.pages.Current() {
	case a.thread.Name():
		a.app.SetFocus(a.thread.Messages())
	default:
		if top := a.pages.Top(); top != nil {
			a.app.SetFocus(top)
		}
	}
}

func (a *App) showPrompt(mode ui.PromptMode) {
	a.prompt.Activate(mode)
	a.rebuildRoot(true)
	a.app.SetFocus(a.prompt.InputField)
}

func (a *App) hidePrompt() {
	a.rebuildRoot(false)
	a.focusTop()
}

// rebuildRoot lays out header, optional prompt, pages and footer.
func (a *App) rebuildRoot(withPrompt bool) {
	header := tview.NewFlex().
		AddItem(a.info, 0, 2, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(a.logo, 14, 0, false)
	footer := tview.NewFlex().
		AddItem(a.crumbs, 0, 1, false).
		AddItem(a.flashBar, 0, 2, false)

	a.root.Clear()
	a.root.AddItem(header, 7, 0, false)
	if withPrompt {
		a.root.AddItem(a.prompt, 3, 0, true)
	}
	a.root.AddItem(a.pages, 0, 1, !withPrompt)
	a.root.AddItem(footer, 1, 0, false)
}

// run executes a filter or a ':' command.
func (a *App) run(mode ui.PromptMode, text string) {
	if mode == ui.PromptFilter {
		a.channels.SetFilter(text)
		return
	}
	cmd, err := ParseCommand(text)
	if err != nil {
		a.flash.Err(err)
		return
	}

	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.show(a.help.Name())
	case "contacts":
		a.show(a.contacts.Name())
	case "pair":
		a.startPairing()
	case "chat":
		a.openContact(cmd.Args[0])
	case "connect":
		a.async(func(ctx context.Context) error { return a.client.Connect(ctx) })
	case "disconnect":
		a.async(func(ctx context.Context) error { return a.client.Disconnect(ctx) })
	case "close":
		a.async(func(ctx context.Context) error {
			if err := a.vm.CloseActive(ctx); err != nil {
				return err
			}
			a.app.QueueUpdateDraw(func() {
				a.pages.Reset(a.channels.Name())
				a.focusTop()
			})
			return nil
		})
	case "add":
		a.async(func(ctx context.Context) error {
			if err := a.client.AddContacts(ctx, &rpc.ContactsRequest{Identifiers: cmd.Args}); err != nil {
				return err
			}
			a.flash.Info("Subscription requested for " + strings.Join(cmd.Args, ", "))
			return nil
		})
	case "remove":
		a.async(func(ctx context.Context) error {
			handles, err := a.client.RequestHandles(ctx, &rpc.HandlesRequest{Identifiers: cmd.Args})
			if err != nil {
				return err
			}
			return a.client.RemoveContacts(ctx, &rpc.ContactsRequest{Handles: handles.Handles})
		})
	case "presence":
		a.async(func(ctx context.Context) error {
			return a.client.SetPresence(ctx, &rpc.PresenceRequest{
				Status:  cmd.Args[0],
				Message: strings.Join(cmd.Args[1:], " "),
			})
		})
	}
}

// async runs fn off the UI goroutine, flashes its error and redraws.
func (a *App) async(fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.flash.Err(describe(err))
		}
		a.app.QueueUpdateDraw(a.refresh)
	}()
}

func (a *App) openChannel(path string) {
	a.async(func(ctx context.Context) error {
		if err := a.vm.Open(ctx, path); err != nil {
			return fmt.Errorf("open channel: %w", err)
		}
		a.app.QueueUpdateDraw(func() { a.show(a.thread.Name()) })
		return nil
	})
}

func (a *App) openContact(id string) {
	a.async(func(ctx context.Context) error {
		if _, err := a.vm.OpenContact(ctx, id); err != nil {
			return fmt.Errorf("open %s: %w", id, err)
		}
		a.app.QueueUpdateDraw(func() {
			a.pages.Reset(a.channels.Name())
			a.show(a.thread.Name())
		})
		return nil
	})
}

// refresh redraws every view from the view model. It runs on the UI
// goroutine.
func (a *App) refresh() {
	st := a.vm.Status()
	infos := a.vm.Channels()
	contacts := a.vm.Contacts()

	a.info.Update(ui.AccountData{
		Account:  a.account,
		Backend:  st.Backend,
		SelfID:   st.SelfID,
		Status:   st.Status,
		Reason:   st.Reason,
		Channels: len(infos),
		Contacts: len(contacts),
		Uptime:   time.Duration(st.UptimeMs) * time.Millisecond,
	})

	rows := make([]views.ChannelRow, 0, len(infos))
	active := a.vm.Active()
	label := ""
	unread := 0
	for _, info := range infos {
		row := views.ChannelRow{
			Path:      info.Path,
			Label:     a.vm.Label(info),
			Unread:    a.vm.Unread(info.Path),
			Requested: info.Requested,
			CreatedAt: info.CreatedAt,
		}
		rows = append(rows, row)
		unread += row.Unread
		if info.Path == active {
			label = row.Label
		}
	}
	a.channels.Update(rows)
	a.crumbs.SetUnread(unread)
	a.contacts.Update(contacts)

	if active != "" {
		if label == "" {
			label = active
		}
		a.thread.SetLabel(label)
		a.thread.Update(a.vm.Transcript(active))
	}
	a.flashBar.Update(a.flash.Current())
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
		defer cancel()
		a.load(ctx)
		a.app.QueueUpdateDraw(a.refresh)

		if st := a.vm.Status(); st.SelfID == "" && st.Backend == "whatsapp" {
			a.app.QueueUpdateDraw(a.startPairing)
		}
	}()
	go a.watch()
	go a.tick()
	go a.flashes()

	return a.app.Run()
}

func (a *App) load(ctx context.Context) {
	for _, load := range []func(context.Context) error{a.vm.LoadStatus, a.vm.LoadChannels, a.vm.LoadContacts} {
		if err := load(ctx); err != nil {
			a.flash.Err(describe(err))
		}
	}
}

// watch follows the daemon's event stream, resubscribing after errors.
func (a *App) watch() {
	for a.ctx.Err() == nil {
		stream, err := a.client.WatchEvents(a.ctx, &rpc.WatchRequest{})
		if err == nil {
			// The daemon sends headers once subscribed; load after that so
			// nothing falls between the snapshot and the stream.
			if _, err = stream.Header(); err == nil {
				ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
				a.load(ctx)
				cancel()
				a.app.QueueUpdateDraw(a.refresh)
				err = a.follow(stream)
			}
		}
		if a.ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			a.flash.Warn("Event stream lost: " + describe(err).Error())
		}
		select {
		case <-time.After(watchRetry):
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) follow(stream interface{ Recv() (*rpc.Event, error) }) error {
	for {
		evt, err := stream.Recv()
		if err != nil {
			return err
		}
		changed, err := a.vm.Apply(a.ctx, evt)
		if err != nil {
			a.flash.Err(describe(err))
		}
		if changed {
			a.app.QueueUpdateDraw(a.refresh)
		}
	}
}

// tick keeps the status panel current.
func (a *App) tick() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(a.ctx, callTimeout)
			_ = a.vm.LoadStatus(ctx)
			cancel()
			a.app.QueueUpdateDraw(a.refresh)
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *App) flashes() {
	for {
		select {
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		case <-a.ctx.Done():
			return
		}
	}
}

// startPairing streams pairing codes into the pair page.
func (a *App) startPairing() {
	if a.pairCancel != nil {
		a.pairCancel()
	}
	ctx, cancel := context.WithCancel(a.ctx)
	a.pairCancel = cancel
	a.pair.ShowMessage("Requesting a pairing code...")
	a.show(a.pair.Name())

	go func() {
		defer cancel()
		stream, err := a.client.Pair(ctx)
		if err != nil {
			a.pairMessage("Pairing failed: " + describe(err).Error())
			return
		}
		for {
			evt, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					a.pairMessage("Pairing failed: " + describe(err).Error())
				}
				return
			}
			switch evt.Type {
			case backend.PairingCode:
				code := evt.Code
				a.app.QueueUpdateDraw(func() { a.pair.ShowCode(code) })
			case backend.PairingSuccess:
				a.pairMessage("Paired. Restart the daemon to connect with the new device.")
				a.flash.Info("Device paired")
				return
			default:
				msg := evt.Message
				if msg == "" {
					msg = "Pairing " + evt.Type
				}
				a.pairMessage(msg)
				return
			}
		}
	}()
}

func (a *App) pairMessage(msg string) {
	a.app.QueueUpdateDraw(func() { a.pair.ShowMessage(msg) })
}

// describe strips the RPC wrapping from daemon errors.
func describe(err error) error {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		if s.Code() == codes.Unimplemented {
			return fmt.Errorf("not supported by this account: %s", s.Message())
		}
		return errors.New(s.Message())
	}
	return err
}

// Stop shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
