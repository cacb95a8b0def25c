package tui

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"
)

var (
	textColor      = lipgloss.Color("252")
	blurColor      = lipgloss.Color("242")
	metaColor      = lipgloss.Color("245")
	ownColor       = lipgloss.Color("117")
	errorColor     = lipgloss.Color("203")
	warnColor      = lipgloss.Color("214")
	dividerColor   = lipgloss.Color("204")
	selectedBg     = lipgloss.Color("236")
	popoverBorder  = lipgloss.Color("61")
	popoverActive  = lipgloss.Color("231")
	popoverActiveB = lipgloss.Color("61")
	statusColor    = lipgloss.Color("244")
)

var authorPalette = []lipgloss.Color{
	lipgloss.Color("111"),
	lipgloss.Color("157"),
	lipgloss.Color("216"),
	lipgloss.Color("36"),
	lipgloss.Color("183"),
	lipgloss.Color("230"),
}

// authorColor picks a stable palette entry for a user id.
func authorColor(userID string) lipgloss.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return authorPalette[int(h.Sum32()%uint32(len(authorPalette)))]
}

var (
	metaStyle     = lipgloss.NewStyle().Foreground(metaColor)
	bodyStyle     = lipgloss.NewStyle().Foreground(textColor)
	deletedStyle  = lipgloss.NewStyle().Foreground(blurColor).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(errorColor)
	warnStyle     = lipgloss.NewStyle().Foreground(warnColor)
	dividerStyle  = lipgloss.NewStyle().Foreground(dividerColor).Bold(true)
	selectedStyle = lipgloss.NewStyle().Background(selectedBg)
	popoverStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(popoverBorder).
			Padding(0, 1)
	popoverItemActive = lipgloss.NewStyle().Foreground(popoverActive).Background(popoverActiveB)
	jumpStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("25")).Padding(0, 1)
)
