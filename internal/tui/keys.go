package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PrevBox  key.Binding
	NextBox  key.Binding
	PrevSlot key.Binding
	NextSlot key.Binding
	Draw     key.Binding
	Confirm  key.Binding
	Cancel   key.Binding
	Dismiss  key.Binding
	Reload   key.Binding
	Login    key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		PrevBox:  key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev box")),
		NextBox:  key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next box")),
		PrevSlot: key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev slot")),
		NextSlot: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next slot")),
		Draw:     key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "draw")),
		Confirm:  key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "cancel")),
		Dismiss:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
		Reload:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Login:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "log in")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevBox, k.NextBox, k.NextSlot, k.Draw, k.Dismiss, k.Reload, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevBox, k.NextBox, k.PrevSlot, k.NextSlot},
		{k.Draw, k.Confirm, k.Cancel, k.Dismiss},
		{k.Reload, k.Login, k.Quit},
	}
}
