// Package tui is the interactive terminal host. It mounts one registered
// screen at a time, renders its node tree and turns key presses into the
// intents that tree carries.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/metrics"
	"github.com/interpretive-systems/erpview/internal/node"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/screens"
	"github.com/interpretive-systems/erpview/internal/table"
	"github.com/interpretive-systems/erpview/internal/tui/components"
)

const paneStep = 2

// Options configure the host.
type Options struct {
	Registry *registry.Registry
	Bridge   *Bridge
	// Notes is read for the status bar. Sink receives the host's own
	// notifications and defaults to Notes.
	Notes   *notify.History
	Sink    notify.Sink
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Theme   string
	// Screen is opened first. Empty opens the first registered screen.
	Screen string
	Props  lifecycle.Props
}

// Program is the bubbletea model of the host.
type Program struct {
	ctx        context.Context
	state      *State
	layout     *Layout
	keyHandler *KeyHandler
	body       viewport.Model

	reg     *registry.Registry
	bridge  *Bridge
	notes   *notify.History
	sink    notify.Sink
	metrics *metrics.Metrics
	log     *slog.Logger
	initial string
	props   lifecycle.Props
	now     func() time.Time
}

// New creates a host for the screens in opts.Registry.
func New(ctx context.Context, opts Options) *Program {
	if opts.Bridge == nil {
		opts.Bridge = NewBridge()
	}
	if opts.Notes == nil {
		opts.Notes = notify.NewHistory(50)
	}
	if opts.Sink == nil {
		opts.Sink = opts.Notes
	}
	p := &Program{
		ctx:        ctx,
		state:      NewState(GetTheme(opts.Theme)),
		layout:     NewLayout(),
		keyHandler: NewKeyHandler(),
		body:       viewport.New(0, 0),
		reg:        opts.Registry,
		bridge:     opts.Bridge,
		notes:      opts.Notes,
		sink:       opts.Sink,
		metrics:    opts.Metrics,
		log:        logging.OrNop(opts.Logger).With(slog.String("component", "tui")),
		initial:    opts.Screen,
		props:      opts.Props,
		now:        time.Now,
	}

	var items []components.ScreenItem
	for _, name := range p.reg.Names() {
		info, err := p.reg.Info(name)
		if err != nil {
			continue
		}
		items = append(items, components.ScreenItem{Name: info.Name, Title: info.Title, Views: len(info.Views)})
	}
	p.state.ScreenList.SetItems(items)
	if p.initial == "" && len(items) > 0 {
		p.initial = items[0].Name
	}
	return p
}

// Run instantiates and runs the Bubble Tea program until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.bridge.Attach(prog)
	_, err := prog.Run()
	m.close()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Program) Init() tea.Cmd {
	return tea.Batch(drainNow(), open(m.initial), tickOnce())
}

func (m *Program) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.state.Width, m.state.Height = msg.Width, msg.Height
		m.layout.SetSize(msg.Width, msg.Height)
	case drainMsg:
		if n := m.bridge.drain(); n > 0 {
			m.log.Debug("drained", slog.Int("tasks", n))
		}
	case openMsg:
		m.open(msg.name)
	case confirmMsg:
		if m.state.Confirm != nil {
			// One prompt at a time; a second one is declined.
			msg.reply <- false
			break
		}
		m.state.Confirm = &msg
	case tickMsg:
		cmd = tickOnce()
	case tea.KeyMsg:
		cmd = m.handleKey(msg)
	}
	m.refresh()
	return m, cmd
}

func (m *Program) View() string {
	s := m.state
	if m.layout.Width() == 0 {
		return "Loading..."
	}

	topLeft := "ERP"
	topRight := fmt.Sprintf("%d screens", len(s.ScreenList.Items()))
	if s.Active != nil {
		topLeft = fmt.Sprintf("ERP | %s · %s", s.Active.Title(), s.Active.View())
		if s.Active.Loading() {
			topRight = "loading…"
		}
	}

	overlay := m.overlayLines()
	height := m.layout.ContentHeight(len(overlay))
	s.ScreenList.EnsureVisible(height)

	return m.layout.RenderFrame(
		topLeft, topRight,
		s.ScreenList.Render(height),
		strings.Split(m.body.View(), "\n"),
		overlay,
		s.StatusBar.Render(m.layout.Width(), m.now()),
		s.Theme,
	)
}

func (m *Program) handleKey(msg tea.KeyMsg) tea.Cmd {
	s := m.state

	if s.Confirm != nil {
		switch msg.String() {
		case "y", "Y", "enter":
			m.answer(true)
		case "n", "N", "esc", "q", "ctrl+c":
			m.answer(false)
		}
		return nil
	}

	if s.SearchEngine.IsActive() {
		res, cmd := s.SearchEngine.HandleKey(msg)
		if res.Submitted {
			in := s.Targets.search
			if !in.IsZero() {
				in.Arg = res.Query
				m.fire(in)
			}
		}
		return cmd
	}

	if s.ShowHelp {
		switch msg.String() {
		case "q", "ctrl+c":
			return tea.Quit
		case "h", "?", "esc":
			s.ShowHelp = false
		}
		return nil
	}

	t := s.Targets
	action, count := m.keyHandler.Handle(msg)
	switch action {
	case ActionQuit:
		return tea.Quit
	case ActionToggleHelp:
		s.ShowHelp = true
	case ActionMoveDown:
		m.moveCursor(count)
	case ActionMoveUp:
		m.moveCursor(-count)
	case ActionGoToTop:
		s.Cursor = 0
	case ActionGoToBottom:
		s.Cursor = max(len(t.rows)-1, 0)
	case ActionToggleRow:
		if r, ok := s.Row(); ok {
			m.fire(r.toggle)
		}
	case ActionSelectAll:
		m.fire(t.selectAll)
	case ActionActivate:
		if r, ok := s.Row(); ok {
			m.fire(nth(r.actions, count))
		}
	case ActionSort:
		m.fire(nth(t.sorts, count))
	case ActionPrevPage:
		m.fire(t.prev)
	case ActionNextPage:
		m.fire(t.next)
	case ActionCycleLimit:
		m.fire(cycle(t.limits, t.limitAt, 1))
	case ActionOpenSearch:
		if !t.search.IsZero() {
			return s.SearchEngine.Activate(t.searchText)
		}
	case ActionBulk:
		m.bulk(count)
	case ActionExport:
		m.fire(t.export)
	case ActionNextView:
		m.fire(cycle(t.views, t.activeView, 1))
	case ActionPrevView:
		m.fire(cycle(t.views, t.activeView, -1))
	case ActionCycleFilter:
		m.fire(cycle(t.filters, t.filterAt, 1))
	case ActionReload:
		m.fire(node.Intent{Kind: registry.KindReload})
	case ActionNextScreen:
		m.switchScreen(1)
	case ActionPrevScreen:
		m.switchScreen(-1)
	case ActionAdjustLeftWider:
		m.layout.AdjustLeftWidth(paneStep)
	case ActionAdjustLeftNarrower:
		m.layout.AdjustLeftWidth(-paneStep)
	}
	return nil
}

func (m *Program) moveCursor(delta int) {
	n := len(m.state.Targets.rows)
	if n == 0 {
		return
	}
	m.state.Cursor = min(max(m.state.Cursor+delta, 0), n-1)
}

func (m *Program) bulk(count int) {
	buttons := m.state.Targets.bulk
	if count < 1 || count > len(buttons) {
		return
	}
	if in := buttons[count-1]; in.IsZero() {
		notify.Send(m.sink, notify.Warning, "Select at least one row first")
		return
	}
	m.fire(buttons[count-1])
}

func (m *Program) switchScreen(delta int) {
	if !m.state.ScreenList.MoveSelection(delta) {
		return
	}
	if it, ok := m.state.ScreenList.SelectedItem(); ok {
		m.open(it.Name)
	}
}

// fire hands an intent to the active screen.
func (m *Program) fire(in node.Intent) {
	scr := m.state.Active
	if in.IsZero() || scr == nil {
		return
	}
	err := scr.HandleIntent(m.ctx, in)
	switch {
	case err == nil:
		return
	case errors.Is(err, table.ErrEmptySelection):
		notify.Send(m.sink, notify.Warning, "Select at least one row first")
	case errors.Is(err, table.ErrDisabled):
		notify.Send(m.sink, notify.Warning, capitalize(err.Error()))
	default:
		notify.Send(m.sink, notify.Error, capitalize(err.Error()))
	}
	m.log.Debug("intent failed", slog.String("kind", in.Kind), slog.String("id", in.ID), slog.Any("error", err))
}

// open mounts the named screen, releasing the current one.
func (m *Program) open(name string) {
	s := m.state
	if s.Active != nil && s.Active.Name() == name {
		return
	}
	if s.Active != nil {
		m.reg.Release(s.Active)
		s.Active = nil
	}
	s.Lines, s.Targets, s.Cursor = nil, targets{}, 0

	scr, err := m.reg.Create(name, m.props)
	if err != nil {
		notify.Send(m.sink, notify.Error, capitalize(err.Error()))
		return
	}
	if err := scr.Mount(m.ctx); err != nil {
		m.reg.Release(scr)
		notify.Send(m.sink, notify.Error, fmt.Sprintf("Failed to open %s: %v", scr.Title(), err))
		return
	}
	s.Active = scr
	s.ScreenList.Select(name)
	s.ScreenList.SetOpen(name)
	m.body.GotoTop()
	m.log.Debug("screen opened", slog.String("screen", name), slog.String("view", scr.View()))
}

func (m *Program) answer(ok bool) {
	if c := m.state.Confirm; c != nil {
		c.reply <- ok
		m.state.Confirm = nil
	}
}

func (m *Program) close() {
	m.answer(false)
	if m.state.Active != nil {
		m.reg.Release(m.state.Active)
		m.state.Active = nil
	}
}

// refresh rebuilds the body from the active screen.
func (m *Program) refresh() {
	s := m.state
	if s.Active != nil {
		root := s.Active.Build()
		lines, t := renderTree(root, s.Theme, s.Cursor)
		if n := len(t.rows); n > 0 && s.Cursor >= n {
			s.Cursor = n - 1
			lines, t = renderTree(root, s.Theme, s.Cursor)
		}
		if t.searchText != "" {
			lines = s.SearchEngine.Highlight(lines, t.searchText)
		}
		s.Lines, s.Targets = lines, t
		s.StatusBar.SetLoading(s.Active.Loading())
		s.StatusBar.SetRefreshed(root.Attr(screens.KeyRefreshed))
		if m.bridge.takeDirty() {
			s.Active.Flushed()
			m.metrics.Rendered()
		}
	}
	if n, ok := m.notes.Latest(); ok {
		s.StatusBar.SetNotification(n)
	}
	s.StatusBar.SetKeyBuffer(m.keyHandler.KeyBuffer())
	m.syncBody()
}

// syncBody sizes the viewport and keeps the cursor row in view.
func (m *Program) syncBody() {
	m.body.Width = m.layout.RightWidth()
	m.body.Height = m.layout.ContentHeight(len(m.overlayLines()))
	m.body.SetContent(strings.Join(m.state.Lines, "\n"))

	line := m.state.CursorLine()
	if line < 0 {
		return
	}
	switch {
	case line < m.body.YOffset:
		m.body.SetYOffset(line)
	case line >= m.body.YOffset+m.body.Height:
		m.body.SetYOffset(line - m.body.Height + 1)
	}
}

func (m *Program) overlayLines() []string {
	s := m.state
	width := m.layout.Width()
	divider := s.Theme.DividerText(strings.Repeat("─", width))
	switch {
	case s.Confirm != nil:
		p := s.Confirm.prompt
		return []string{
			divider,
			s.Theme.AccentText(p.Title),
			p.Message,
			s.Theme.MutedText("y: confirm   n: cancel"),
		}
	case s.SearchEngine.IsActive():
		return s.SearchEngine.RenderOverlay(width, s.Theme.DividerColor)
	case s.ShowHelp:
		return append([]string{divider}, helpLines()...)
	}
	return nil
}

func nth(ins []node.Intent, n int) node.Intent {
	if n < 1 || n > len(ins) {
		return node.Intent{}
	}
	return ins[n-1]
}

// cycle returns the intent delta steps from at, wrapping around.
func cycle(ins []node.Intent, at, delta int) node.Intent {
	if len(ins) == 0 {
		return node.Intent{}
	}
	if at < 0 {
		if delta < 0 {
			return ins[len(ins)-1]
		}
		return ins[0]
	}
	return ins[((at+delta)%len(ins)+len(ins))%len(ins)]
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
