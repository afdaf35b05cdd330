package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the document browser.
type KeyMap struct {
	Up        key.Binding
	Down      key.Binding
	NextActor key.Binding
	PrevActor key.Binding
	Open      key.Binding
	Back      key.Binding
	Timeline  key.Binding
	Transform key.Binding
	Quit      key.Binding
}

// DefaultKeyMap pairs vim-style navigation with arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	NextActor: key.NewBinding(
		key.WithKeys("tab", "l", "right"),
		key.WithHelp("tab", "next actor"),
	),
	PrevActor: key.NewBinding(
		key.WithKeys("shift+tab", "h", "left"),
		key.WithHelp("shift+tab", "previous actor"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Timeline: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "timeline"),
	),
	Transform: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "SAP transform"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.NextActor, k.Open, k.Back, k.Timeline, k.Transform, k.Quit}
}
