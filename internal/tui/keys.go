package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap is shared by the grid and the calendar; bindings a view does not
// use are disabled.
type keyMap struct {
	Prev    key.Binding
	Next    key.Binding
	Today   key.Binding
	Up      key.Binding
	Down    key.Binding
	Toggle  key.Binding
	GroupBy key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Cancel  key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Prev:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Next:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Today:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Toggle:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "expand")),
		GroupBy: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "group by")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Today, k.Edit, k.Delete, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Today},
		{k.Up, k.Down, k.Toggle, k.GroupBy},
		{k.Edit, k.Delete, k.Cancel},
		{k.Help, k.Quit},
	}
}
