// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Enter    key.Binding
	Back     key.Binding
	Grouping key.Binding
	Linger   key.Binding
	Resolve  key.Binding
	IPv4     key.Binding
	IPv6     key.Binding
	AnyAF    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Grouping: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "cycle grouping"),
		),
		Linger: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "toggle linger"),
		),
		Resolve: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "toggle resolve"),
		),
		IPv4: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "ipv4 only"),
		),
		IPv6: key.NewBinding(
			key.WithKeys("6"),
			key.WithHelp("6", "ipv6 only"),
		),
		AnyAF: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "any family"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grouping, k.Linger, k.Resolve, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Back},
		{k.Grouping, k.Linger, k.Resolve},
		{k.IPv4, k.IPv6, k.AnyAF},
		{k.Help, k.Quit},
	}
}
