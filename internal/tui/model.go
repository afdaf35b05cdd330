// Package tui is the interactive terminal browser: an actor selector, the
// selected actor's document cards, a document viewer with highlighted JSON,
// the timeline, and the SAP transformation player.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ktdde/internal/catalog"
	"ktdde/internal/jsonview"
	"ktdde/internal/transform"
	"ktdde/internal/view"
)

// Screen is the pane currently shown.
type Screen int

const (
	ScreenCards Screen = iota
	ScreenDocument
	ScreenTimeline
	ScreenTransform
)

// Options configure the browser.
type Options struct {
	// Interval between transform frames. Zero plays every frame at once.
	Interval  time.Duration
	Transform transform.Options
	Renderer  *lipgloss.Renderer
}

// ReloadMsg swaps in a new catalog, keeping the selected actor when it
// still exists.
type ReloadMsg struct {
	Catalog *catalog.Catalog
}

type frameMsg struct {
	doc   string
	index int
}

// Model implements tea.Model.
type Model struct {
	state  *view.Model
	keys   KeyMap
	opts   Options
	theme  jsonview.Theme
	styles styles

	screen   Screen
	cursor   int
	rowIdx   int
	viewport viewport.Model
	width    int
	height   int

	reveal   *transform.Reveal
	frame    int
	status   string
	errorMsg string
}

// New starts on the first actor's card list.
func New(c *catalog.Catalog, opts Options) Model {
	r := opts.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Model{
		state:  view.New(c),
		keys:   DefaultKeyMap,
		opts:   opts,
		theme:  jsonview.DefaultTheme(r),
		styles: newStyles(r),
		width:  80,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd { return nil }

// State exposes the view state, mainly for tests.
func (m Model) State() *view.Model { return m.state }

// Screen reports the pane being shown.
func (m Model) Screen() Screen { return m.screen }

// Cursor is the selected card or timeline row.
func (m Model) Cursor() int {
	if m.screen == ScreenTimeline {
		return m.rowIdx
	}
	return m.cursor
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = m.bodyHeight()
		return m, nil
	case ReloadMsg:
		return m.reload(msg.Catalog), nil
	case frameMsg:
		return m.advance(msg)
	case tea.KeyMsg:
		m.errorMsg = ""
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		switch m.screen {
		case ScreenCards:
			return m.updateCards(msg)
		case ScreenTimeline:
			return m.updateTimeline(msg)
		default:
			return m.updateViewer(msg)
		}
	}
	return m, nil
}

func (m Model) updateCards(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cards := m.state.Cards()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(cards)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.NextActor):
		m.shiftActor(1)
	case key.Matches(msg, m.keys.PrevActor):
		m.shiftActor(-1)
	case key.Matches(msg, m.keys.Timeline):
		m.screen = ScreenTimeline
	case key.Matches(msg, m.keys.Open):
		if len(cards) > 0 {
			return m.open(cards[m.cursor].Key), nil
		}
	case key.Matches(msg, m.keys.Transform):
		if len(cards) > 0 {
			return m.startTransform(cards[m.cursor].Key)
		}
	default:
		// Digits pick an actor tab directly.
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			tabs := m.state.Tabs()
			if i := int(s[0] - '1'); i < len(tabs) {
				m.state.SelectActor(tabs[i].Key)
				m.cursor = 0
			}
		}
	}
	return m, nil
}

func (m Model) updateTimeline(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.state.Timeline()
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.rowIdx > 0 {
			m.rowIdx--
		}
	case key.Matches(msg, m.keys.Down):
		if m.rowIdx < len(rows)-1 {
			m.rowIdx++
		}
	case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Timeline):
		m.screen = ScreenCards
	case key.Matches(msg, m.keys.Open):
		if m.rowIdx < len(rows) && rows[m.rowIdx].Interactive {
			return m.open(rows[m.rowIdx].Doc), nil
		}
	}
	return m, nil
}

func (m Model) updateViewer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Back) {
		m.state.Close()
		m.reveal = nil
		m.screen = ScreenCards
		return m, nil
	}
	if m.screen == ScreenDocument && key.Matches(msg, m.keys.Transform) {
		return m.startTransform(m.state.Doc)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) shiftActor(delta int) {
	tabs := m.state.Tabs()
	if len(tabs) == 0 {
		return
	}
	cur := 0
	for i, a := range tabs {
		if a.Key == m.state.Actor {
			cur = i
		}
	}
	next := (cur + delta + len(tabs)) % len(tabs)
	m.state.SelectActor(tabs[next].Key)
	m.cursor = 0
}

func (m Model) open(key string) Model {
	if !m.state.Open(key) {
		m.errorMsg = fmt.Sprintf("document %s not found", key)
		return m
	}
	d, _ := m.state.Current()
	out, err := jsonview.Render(d.Content, jsonview.FormatANSI, m.theme)
	if err != nil {
		m.errorMsg = err.Error()
		return m
	}
	m.screen = ScreenDocument
	m.viewport.Width = m.width
	m.viewport.Height = m.bodyHeight()
	m.viewport.SetContent(out)
	m.viewport.GotoTop()
	return m
}

func (m Model) startTransform(key string) (tea.Model, tea.Cmd) {
	d, ok := m.state.Catalog().Get(key)
	if !ok {
		m.errorMsg = fmt.Sprintf("document %s not found", key)
		return m, nil
	}
	r, err := transform.Plan(d, m.opts.Transform)
	if err != nil {
		m.errorMsg = err.Error()
		return m, nil
	}
	m.state.Open(key)
	m.reveal = &r
	m.screen = ScreenTransform
	m.viewport.Width = m.width
	m.viewport.Height = m.bodyHeight()
	return m.showFrame(0)
}

func (m Model) advance(msg frameMsg) (tea.Model, tea.Cmd) {
	if m.screen != ScreenTransform || m.reveal == nil || msg.doc != m.reveal.Doc.Key || msg.index != m.frame+1 {
		return m, nil
	}
	return m.showFrame(msg.index)
}

func (m Model) showFrame(i int) (tea.Model, tea.Cmd) {
	frames := m.reveal.Frames()
	if m.opts.Interval <= 0 {
		i = len(frames) - 1
	}
	m.frame = i
	out, err := jsonview.Render(frames[i], jsonview.FormatANSI, m.theme)
	if err != nil {
		m.errorMsg = err.Error()
		return m, nil
	}
	if i < len(m.reveal.Steps) {
		s := m.reveal.Steps[i]
		m.status = fmt.Sprintf("%s  %s → %s", s.Status, s.Mapping.Source, s.Mapping.Target)
	} else {
		m.status = "Verifiable Credential ready"
	}
	m.viewport.SetContent(out)
	if i == len(frames)-1 {
		return m, nil
	}
	doc, next := m.reveal.Doc.Key, i+1
	return m, tea.Tick(m.opts.Interval, func(time.Time) tea.Msg {
		return frameMsg{doc: doc, index: next}
	})
}

// Frame is the index of the transform frame on screen.
func (m Model) Frame() int { return m.frame }

func (m Model) reload(c *catalog.Catalog) Model {
	if c == nil {
		return m
	}
	actor, doc := m.state.Actor, m.state.Doc
	m.state = view.New(c)
	m.state.SelectActor(actor)
	m.cursor, m.rowIdx = 0, 0
	m.reveal = nil
	if doc != "" && m.state.Open(doc) {
		return m.open(doc)
	}
	m.screen = ScreenCards
	return m
}

func (m Model) bodyHeight() int {
	// Header, tabs, status and help lines.
	h := m.height - 5
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.styles.title.Render(m.state.Catalog().Info.Title))
	b.WriteString("\n")
	b.WriteString(m.tabs())
	b.WriteString("\n")
	switch m.screen {
	case ScreenCards:
		b.WriteString(m.cards())
	case ScreenTimeline:
		b.WriteString(m.timeline())
	case ScreenDocument, ScreenTransform:
		if d, ok := m.state.Current(); ok {
			b.WriteString(m.styles.heading.Render(d.Icon + " " + d.Title))
			b.WriteString("\n")
		}
		b.WriteString(m.viewport.View())
		if m.screen == ScreenTransform {
			b.WriteString("\n")
			b.WriteString(m.styles.status.Render(m.status))
		}
	}
	b.WriteString("\n")
	if m.errorMsg != "" {
		b.WriteString(m.styles.error.Render(m.errorMsg))
		b.WriteString("\n")
	}
	b.WriteString(m.help())
	return b.String()
}

func (m Model) tabs() string {
	var parts []string
	for i, a := range m.state.Tabs() {
		label := fmt.Sprintf("%d %s %s", i+1, a.Icon, a.Name)
		if a.Key == m.state.Actor {
			parts = append(parts, m.styles.activeTab.Render(label))
		} else {
			parts = append(parts, m.styles.tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) cards() string {
	cards := m.state.Cards()
	if len(cards) == 0 {
		return m.styles.muted.Render(view.NoDocuments)
	}
	var b strings.Builder
	for i, c := range cards {
		line := fmt.Sprintf("%s %s", c.Icon, c.Title)
		if c.HasMapping {
			line += " " + m.styles.badge.Render("SAP")
		}
		desc := m.styles.muted.Render("  " + c.Description)
		if i == m.cursor {
			b.WriteString(m.styles.selected.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) timeline() string {
	var b strings.Builder
	for i, r := range m.state.Timeline() {
		line := fmt.Sprintf("%s  %-32s %s", r.Date, r.Title, r.Actor)
		switch {
		case i == m.rowIdx:
			line = m.styles.selected.Render("> " + line)
		case !r.Interactive:
			line = m.styles.muted.Render("  " + line)
		case r.Visible:
			line = "  " + line
		default:
			line = m.styles.dim.Render("  " + line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) help() string {
	var parts []string
	for _, k := range m.keys.help() {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return m.styles.muted.Render(strings.Join(parts, " • "))
}
