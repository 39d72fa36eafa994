package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings of the tour view.
type KeyMap struct {
	// Hotspots
	PrevHotspot key.Binding
	NextHotspot key.Binding
	Follow      key.Binding

	// Scenes
	PrevScene key.Binding
	NextScene key.Binding

	// Actions
	Open key.Binding
	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevHotspot: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "previous hotspot"),
		),
		NextHotspot: key.NewBinding(
			key.WithKeys("right", "l", "tab"),
			key.WithHelp("→/l", "next hotspot"),
		),
		Follow: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "walk through hotspot"),
		),
		PrevScene: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous scene"),
		),
		NextScene: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next scene"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open in browser"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextHotspot, k.Follow, k.NextScene, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevHotspot, k.NextHotspot, k.Follow},
		{k.PrevScene, k.NextScene},
		{k.Open, k.Help, k.Quit},
	}
}
