// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorIce   = lipgloss.Color("45")
	ColorDeep  = lipgloss.Color("24")
	ColorFaint = lipgloss.Color("240")
	ColorNew   = lipgloss.Color("42")
	ColorWarn  = lipgloss.Color("214")
	ColorDead  = lipgloss.Color("241")
	ColorErr   = lipgloss.Color("196")
)

var (
	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorIce)

	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorIce)

	StyleGroup = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("252"))

	StyleFaint = lipgloss.NewStyle().
			Foreground(ColorFaint)

	StyleNew = lipgloss.NewStyle().
			Foreground(ColorNew)

	StyleWarn = lipgloss.NewStyle().
			Foreground(ColorWarn).
			Bold(true)

	StyleDead = lipgloss.NewStyle().
			Foreground(ColorDead).
			Strikethrough(true)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorErr)

	StyleStatusBar = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(ColorDeep)

	StyleCard = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDeep).
			Padding(0, 1)
)
