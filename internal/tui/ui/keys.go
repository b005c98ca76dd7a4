package ui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// KeyMap contains the key bindings for the conflict resolver.
type KeyMap struct {
	// Scrolling within the current conflict.
	Up   key.Binding
	Down key.Binding

	// Moving between conflicts.
	Next key.Binding
	Prev key.Binding

	// Deciding the current conflict.
	Local  key.Binding
	Remote key.Binding

	// Deciding every remaining conflict at once.
	AllLocal  key.Binding
	AllRemote key.Binding

	// Finishing.
	Confirm key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		Next: key.NewBinding(
			key.WithKeys("n", "tab"),
			key.WithHelp("n", "next conflict"),
		),
		Prev: key.NewBinding(
			key.WithKeys("p", "shift+tab"),
			key.WithHelp("p", "previous conflict"),
		),
		Local: key.NewBinding(
			key.WithKeys("l", "left"),
			key.WithHelp("l/←", "keep local"),
		),
		Remote: key.NewBinding(
			key.WithKeys("r", "right"),
			key.WithHelp("r/→", "keep remote"),
		),
		AllLocal: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "keep local for all"),
		),
		AllRemote: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "keep remote for all"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply decisions"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// IsUp reports whether the key message matches an up scroll key.
func (k KeyMap) IsUp(msg tea.KeyMsg) bool {
	return key.Matches(msg, k.Up)
}

// IsDown reports whether the key message matches a down scroll key.
func (k KeyMap) IsDown(msg tea.KeyMsg) bool {
	return key.Matches(msg, k.Down)
}
